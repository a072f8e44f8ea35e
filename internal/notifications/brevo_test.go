package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBrevoClientDisabledWithoutKey(t *testing.T) {
	assert.Nil(t, NewBrevoClient("", "noreply@evms.test", "EVMS", false))
	assert.Nil(t, NewBrevoClient("key", " ", "EVMS", false))
}

func TestSendAppointmentAssigned(t *testing.T) {
	var got brevoSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messageId":"<m1@brevo>"}`))
	}))
	defer srv.Close()

	c := NewBrevoClient("key-1", "noreply@evms.test", "", true)
	require.NotNil(t, c)
	c.endpoint = srv.URL

	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	id, err := c.SendAppointmentAssigned(context.Background(), AppointmentNotice{
		AppointmentID: "a1",
		CustomerName:  "Lan",
		CustomerEmail: "lan@example.com",
		BookingTime:   time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
		Location:      loc,
		Technicians:   []string{"Minh", "Huy"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<m1@brevo>", id)

	assert.Equal(t, "noreply@evms.test", got.Sender.Name)
	require.Len(t, got.To, 1)
	assert.Equal(t, "lan@example.com", got.To[0].Email)
	assert.Equal(t, "drop", got.Headers["X-Sib-Sandbox"])
	assert.Contains(t, got.HtmlContent, "10:00 02/03/2026")
	assert.Contains(t, got.HtmlContent, "Minh, Huy")
}

func TestSendFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid_parameter"}`))
	}))
	defer srv.Close()

	c := NewBrevoClient("key-1", "noreply@evms.test", "EVMS", false)
	c.endpoint = srv.URL
	_, err := c.SendConversationClaimed(context.Background(), ConversationNotice{CustomerEmail: "a@example.com", Subject: "Charging issue"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
}

func TestSendRequiresRecipient(t *testing.T) {
	c := NewBrevoClient("key-1", "noreply@evms.test", "EVMS", false)
	_, err := c.SendAppointmentCancelled(context.Background(), AppointmentNotice{AppointmentID: "a1"})
	assert.Error(t, err)

	var nilClient *BrevoClient
	_, err = nilClient.SendAppointmentBooked(context.Background(), AppointmentNotice{CustomerEmail: "a@example.com"})
	assert.Error(t, err)
}
