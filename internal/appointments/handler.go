package appointments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"evms-backend/internal/httpx"
	"evms-backend/internal/middleware"
	"evms-backend/internal/transport"
	"evms-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

type conflictResponse struct {
	Error     string        `json:"error"`
	Conflicts []Appointment `json:"conflicts"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())

	var req CreateRequest
	if !h.decode(w, r, "appointments create", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	appt, err := h.service.Create(ctx, caller, req)
	if err != nil {
		h.writeError(w, log, "appointments create", err)
		return
	}

	log.Info("appointments create: ok",
		slog.String("appointment_id", appt.ID),
		slog.String("user_id", appt.UserID),
		slog.Time("booking_time", appt.BookingTime),
	)
	transport.WriteJSON(w, http.StatusCreated, appt)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	q := r.URL.Query()

	page, err := httpx.ParsePage(q, 20, 100)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	sort, err := httpx.ParseSort(q, SortFields, httpx.Sort{Field: "bookingTime", Desc: true})
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	from, to, err := httpx.ParseTimeRange(q, h.service.location)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filter := ListFilter{
		UserID:       strings.TrimSpace(q.Get("userId")),
		TechnicianID: strings.TrimSpace(q.Get("technicianId")),
		VehicleID:    strings.TrimSpace(q.Get("vehicleId")),
		Statuses:     httpx.ParseList(q, "status"),
		From:         from,
		To:           to,
	}
	withVehicle := httpx.Includes(q, "vehicle")

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, caller, filter, page, sort, withVehicle)
	if err != nil {
		h.writeError(w, log, "appointments list", err)
		return
	}
	log.Info("appointments list: ok", slog.Int("count", len(items)), slog.Int64("total", total))

	fields := httpx.ParseList(q, "fields")
	if len(fields) == 0 {
		transport.WriteList(w, items, page.Page, page.Limit, total)
		return
	}
	if withVehicle {
		fields = append(fields, "vehicle")
	}
	picked := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		m, err := httpx.PickFields(item, fields)
		if err != nil {
			log.Error("appointments list: encode error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
			return
		}
		picked = append(picked, m)
	}
	transport.WriteList(w, picked, page.Page, page.Limit, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appt, err := h.service.Get(ctx, caller, id)
	if err != nil {
		h.writeError(w, log, "appointments get", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req AssignRequest
	if !h.decode(w, r, "appointments assign", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	appt, err := h.service.Assign(ctx, caller, id, req)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			log.Warn("appointments assign: technician conflict",
				slog.String("appointment_id", id),
				slog.Int("conflicts", len(conflict.Conflicts)),
			)
			transport.WriteJSON(w, http.StatusBadRequest, conflictResponse{
				Error:     ErrTechnicianConflict.Error(),
				Conflicts: conflict.Conflicts,
			})
			return
		}
		h.writeError(w, log, "appointments assign", err)
		return
	}

	log.Info("appointments assign: ok",
		slog.String("appointment_id", appt.ID),
		slog.Any("technicians", appt.TechnicianIDs()),
	)
	transport.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req CancelRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, "appointments cancel", &req) {
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	appt, err := h.service.Cancel(ctx, caller, id, req.Reason)
	if err != nil {
		h.writeError(w, log, "appointments cancel", err)
		return
	}

	log.Info("appointments cancel: ok", slog.String("appointment_id", appt.ID), slog.String("role", caller.Role))
	transport.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req StatusRequest
	if !h.decode(w, r, "appointments status", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	appt, err := h.service.UpdateStatus(ctx, caller, id, req.Status)
	if err != nil {
		h.writeError(w, log, "appointments status", err)
		return
	}

	log.Info("appointments status: ok", slog.String("appointment_id", appt.ID), slog.String("status", appt.Status))
	transport.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, op string, v interface{}) bool {
	log := h.logWithRequest(r)
	if err := httpx.DecodeJSON(r.Body, v); err != nil {
		log.Warn(op + ": invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return false
	}
	if err := h.val.Struct(v); err != nil {
		log.Warn(op + ": validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
	case errors.Is(err, ErrForbidden):
		log.Warn(op + ": forbidden")
		transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
	case errors.Is(err, ErrStatusChanged), errors.Is(err, ErrAssignmentBusy):
		log.Warn(op+": conflict", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ErrBookingInPast):
		transport.WriteError(w, http.StatusBadRequest, err.Error(), map[string]string{"bookingTime": "future"})
	case errors.Is(err, ErrOutsideOpeningHours):
		transport.WriteError(w, http.StatusBadRequest, err.Error(), map[string]string{"bookingTime": "opening_hours"})
	case errors.Is(err, ErrServiceRequired):
		transport.WriteError(w, http.StatusBadRequest, err.Error(), map[string]string{"serviceType": "required_without", "packageId": "required_without"})
	case errors.Is(err, ErrPackageUnavailable):
		transport.WriteError(w, http.StatusBadRequest, err.Error(), map[string]string{"packageId": "active"})
	case errors.Is(err, ErrVehicleNotFound), errors.Is(err, ErrVehicleNotOwned):
		transport.WriteError(w, http.StatusBadRequest, err.Error(), map[string]string{"vehicleId": "owner"})
	case errors.Is(err, ErrInvalidTechnician):
		log.Warn(op+": invalid technician", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrNoTechnician),
		errors.Is(err, ErrDuplicateTechnician),
		errors.Is(err, ErrNotAssignable),
		errors.Is(err, ErrNotCancellable),
		errors.Is(err, ErrCancelCutoff),
		errors.Is(err, ErrInvalidTransition):
		log.Warn(op+": rejected", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrInvalidStatus):
		transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	return middleware.RequestLogger(h.log, r)
}
