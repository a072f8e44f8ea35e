package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evms-backend/internal/appointments"
	"evms-backend/internal/auth"
	"evms-backend/internal/conversations"
	"evms-backend/internal/middleware"
	"evms-backend/internal/servicepackages"
	"evms-backend/internal/technicians"
	"evms-backend/internal/users"
	"evms-backend/internal/vehicles"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

// Only middleware rejections are exercised here, so the handlers carry no services.
func newTestRouter(t *testing.T) (http.Handler, *auth.Manager) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := &auth.Manager{Secret: []byte("router-secret"), AccessTTL: time.Hour, Issuer: "test"}

	h := Handlers{
		Users:           users.NewHandler(nil, nil, log),
		Technicians:     technicians.NewHandler(nil, nil, log),
		Vehicles:        vehicles.NewHandler(nil, nil, log),
		ServicePackages: servicepackages.NewHandler(nil, nil, time.Minute, nil, log),
		Appointments:    appointments.NewHandler(nil, nil, log),
		Conversations:   conversations.NewHandler(nil, nil, nil, log),
	}
	return NewRouter(h, Options{
		Tokens:          tokens,
		FrontendOrigins: []string{"http://localhost:5173"},
		AuthLimiter:     denyAll{},
		Log:             log,
	}), tokens
}

func send(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func tokenFor(t *testing.T, m *auth.Manager, role string) string {
	t.Helper()
	tok, err := m.NewAccessToken("65f1c0de0000000000000009", role)
	require.NoError(t, err)
	return tok
}

func TestRouterRejectsBeforeHandlers(t *testing.T) {
	router, tokens := newTestRouter(t)
	customer := tokenFor(t, tokens, auth.RoleCustomer)
	staff := tokenFor(t, tokens, auth.RoleStaff)

	cases := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/api/v1/appointments", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/appointments", "garbage", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/appointments/x/assign", customer, http.StatusForbidden},
		{http.MethodPost, "/api/v1/conversations/x/claim", customer, http.StatusForbidden},
		{http.MethodPost, "/api/v1/conversations", staff, http.StatusForbidden},
		{http.MethodGet, "/api/v1/users", staff, http.StatusForbidden},
		{http.MethodPost, "/api/v1/service-packages", staff, http.StatusForbidden},
		{http.MethodGet, "/api/v1/technicians/me/appointments", staff, http.StatusForbidden},
		{http.MethodPost, "/api/v1/auth/login", "", http.StatusTooManyRequests},
		{http.MethodGet, "/api/v1/conversations/x/ws", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := send(t, router, tc.method, tc.path, tc.token)
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouterAmbientHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
