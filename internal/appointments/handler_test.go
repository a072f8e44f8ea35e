package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"evms-backend/internal/auth"
	"evms-backend/internal/middleware"
	"evms-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	techA = "65f1c0de0000000000000001"
	techB = "65f1c0de0000000000000002"
)

func newTestRouter(t *testing.T, caller auth.Principal) (http.Handler, fixture) {
	t.Helper()
	f := newFixture(t)
	f.svc.users = staticUsers{
		"cust-1": {ID: "cust-1", Role: auth.RoleCustomer},
		techA:    {ID: techA, Role: auth.RoleTechnician},
		techB:    {ID: techB, Role: auth.RoleTechnician},
	}
	h := NewHandler(f.svc, validation.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), caller)))
		})
	})
	r.Get("/appointments", h.List)
	r.Get("/appointments/{id}", h.Get)
	r.Post("/appointments/{id}/assign", h.Assign)
	r.Post("/appointments/{id}/cancel", h.Cancel)
	r.Patch("/appointments/{id}/status", h.UpdateStatus)
	return r, f
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAssignConflictResponse(t *testing.T) {
	router, f := newTestRouter(t, staff)
	f.seed("a1", StatusPending, at(3, 10, 0))
	existing := f.seed("a2", StatusConfirmed, at(3, 10, 30), techA)

	rec := doJSON(t, router, http.MethodPost, "/appointments/a1/assign", map[string]string{
		"technicianLeadId": techA,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body conflictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrTechnicianConflict.Error(), body.Error)
	require.Len(t, body.Conflicts, 1)
	assert.Equal(t, existing.ID, body.Conflicts[0].ID)
	assert.Equal(t, techA, body.Conflicts[0].TechnicianLeadID)
	assert.True(t, existing.BookingTime.Equal(body.Conflicts[0].BookingTime))
}

func TestAssignHandlerValidation(t *testing.T) {
	router, f := newTestRouter(t, staff)
	f.seed("a1", StatusPending, at(3, 10, 0))

	rec := doJSON(t, router, http.MethodPost, "/appointments/a1/assign", map[string]string{
		"technicianLeadId": "not-an-id",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"technicianLeadId":"objectid"`)

	rec = doJSON(t, router, http.MethodPost, "/appointments/a1/assign", map[string]string{
		"technicianLeadId": techA, "technicianSupport1Id": techA,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrDuplicateTechnician.Error())

	rec = doJSON(t, router, http.MethodPost, "/appointments/missing/assign", map[string]string{
		"technicianLeadId": techA,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/appointments/a1/assign", map[string]string{
		"technicianLeadId": techA, "technicianSupport1Id": techB,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, StatusConfirmed, updated.Status)
	assert.Equal(t, techB, updated.TechnicianSupport1ID)
}

func TestAssignHandlerBusyLock(t *testing.T) {
	router, f := newTestRouter(t, staff)
	f.svc.locker = busyLocker{}
	f.seed("a1", StatusPending, at(3, 10, 0))

	rec := doJSON(t, router, http.MethodPost, "/appointments/a1/assign", map[string]string{
		"technicianLeadId": techA,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelHandler(t *testing.T) {
	router, f := newTestRouter(t, customer)
	f.seed("soon", StatusConfirmed, at(2, 9, 0))
	f.seed("later", StatusConfirmed, at(4, 9, 0))

	rec := doJSON(t, router, http.MethodPost, "/appointments/soon/cancel", map[string]string{"reason": "sick"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "2 hours")

	// An empty body is accepted.
	rec = doJSON(t, router, http.MethodPost, "/appointments/later/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, StatusCancelled, updated.Status)
}

func TestStatusHandlerStaleWrite(t *testing.T) {
	router, f := newTestRouter(t, staff)
	f.seed("a1", StatusPending, at(3, 10, 0))
	// The appointment moves on between the read and the conditional write.
	f.svc.repo = &racingRepo{memoryRepo: f.repo, status: StatusCancelled}

	rec := doJSON(t, router, http.MethodPatch, "/appointments/a1/status", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/appointments/a1/status", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListHandler(t *testing.T) {
	router, f := newTestRouter(t, staff)
	f.seed("a1", StatusConfirmed, at(3, 10, 0), techA)
	f.seed("a2", StatusPending, at(4, 10, 0))

	rec := doJSON(t, router, http.MethodGet, "/appointments?status=confirmed&include=vehicle&fields=id,status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []map[string]interface{} `json:"items"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Total)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "a1", body.Items[0]["id"])
	assert.Contains(t, body.Items[0], "vehicle")
	assert.NotContains(t, body.Items[0], "bookingTime")

	rec = doJSON(t, router, http.MethodGet, "/appointments?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/appointments?sort=-password", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHandlerForbidden(t *testing.T) {
	router, f := newTestRouter(t, customer2)
	f.seed("a1", StatusPending, at(3, 10, 0))

	rec := doJSON(t, router, http.MethodGet, "/appointments/a1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// racingRepo flips the stored status right before a conditional write.
type racingRepo struct {
	*memoryRepo
	status string
}

func (r *racingRepo) UpdateIfStatus(ctx context.Context, id string, expected []string, set bson.M) (Appointment, error) {
	if a, err := r.memoryRepo.GetByID(ctx, id); err == nil {
		a.Status = r.status
		r.memoryRepo.put(a)
	}
	return r.memoryRepo.UpdateIfStatus(ctx, id, expected, set)
}
