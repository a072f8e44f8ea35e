package vehicles

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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	q := r.URL.Query()

	page, err := httpx.ParsePage(q, 20, 100)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	sort, err := httpx.ParseSort(q, SortFields, httpx.Sort{Field: "createdAt", Desc: true})
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, caller, ListFilter{OwnerID: q.Get("ownerId"), Query: q.Get("q")}, page, sort)
	if err != nil {
		h.writeError(w, log, "vehicles list", err)
		return
	}
	log.Info("vehicles list: ok", slog.Int("count", len(items)))
	transport.WriteList(w, items, page.Page, page.Limit, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vehicle, err := h.service.Get(ctx, caller, id)
	if err != nil {
		h.writeError(w, log, "vehicles get", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, vehicle)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("vehicles create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("vehicles create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	vehicle, err := h.service.Create(ctx, caller, req)
	if err != nil {
		h.writeError(w, log, "vehicles create", err)
		return
	}
	log.Info("vehicles create: ok", slog.String("vehicle_id", vehicle.ID), slog.String("owner_id", vehicle.OwnerID))
	transport.WriteJSON(w, http.StatusCreated, vehicle)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req UpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("vehicles update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("vehicles update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	vehicle, err := h.service.Update(ctx, caller, id, req)
	if err != nil {
		h.writeError(w, log, "vehicles update", err)
		return
	}
	log.Info("vehicles update: ok", slog.String("vehicle_id", vehicle.ID))
	transport.WriteJSON(w, http.StatusOK, vehicle)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, caller, id); err != nil {
		h.writeError(w, log, "vehicles delete", err)
		return
	}
	log.Info("vehicles delete: ok", slog.String("vehicle_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		transport.WriteError(w, http.StatusNotFound, "vehicle not found", nil)
	case errors.Is(err, ErrForbidden):
		log.Warn(op + ": forbidden")
		transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
	case errors.Is(err, ErrDuplicatePlate):
		transport.WriteError(w, http.StatusBadRequest, "license plate already registered", map[string]string{"licensePlate": "unique"})
	case errors.Is(err, ErrOwnerRequired):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"ownerId": "required"})
	case errors.Is(err, ErrOwnerNotFound):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"ownerId": "customer"})
	case errors.Is(err, ErrHasActiveAppointments):
		log.Warn(op + ": vehicle has active appointments")
		transport.WriteError(w, http.StatusBadRequest, "vehicle has active appointments", nil)
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	return middleware.RequestLogger(h.log, r)
}
