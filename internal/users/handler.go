package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"evms-backend/internal/auth"
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

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req RegisterRequest
	if !h.decode(w, r, log, "auth register", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.Register(ctx, req)
	if err != nil {
		h.writeError(w, log, "auth register", err)
		return
	}

	log.Info("auth register: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req LoginRequest
	if !h.decode(w, r, log, "auth login", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := h.service.Login(ctx, req)
	if err != nil {
		h.writeError(w, log, "auth login", err)
		return
	}

	log.Info("auth login: ok", slog.String("user_id", result.User.ID), slog.String("role", result.User.Role))
	transport.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.Get(ctx, caller.UserID)
	if err != nil {
		h.writeError(w, log, "auth me", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	var req ProfileRequest
	if !h.decode(w, r, log, "users update me", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.UpdateProfile(ctx, caller, req)
	if err != nil {
		h.writeError(w, log, "users update me", err)
		return
	}
	log.Info("users update me: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
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

	filter := ListFilter{
		Role:  q.Get("role"),
		Query: q.Get("q"),
	}
	if raw := strings.TrimSpace(q.Get("disabled")); raw != "" {
		disabled, err := strconv.ParseBool(raw)
		if err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"disabled": "boolean"})
			return
		}
		filter.Disabled = &disabled
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, filter, page, sort)
	if err != nil {
		h.writeError(w, log, "users list", err)
		return
	}

	log.Info("users list: ok", slog.Int("count", len(items)))
	transport.WriteList(w, items, page.Page, page.Limit, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(w, log, "users get", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req CreateRequest
	if !h.decode(w, r, log, "users create", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.Create(ctx, req)
	if err != nil {
		h.writeError(w, log, "users create", err)
		return
	}

	log.Info("users create: ok", slog.String("user_id", user.ID), slog.String("role", user.Role))
	transport.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req UpdateRequest
	if !h.decode(w, r, log, "users update", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.writeError(w, log, "users update", err)
		return
	}

	log.Info("users update: ok", slog.String("user_id", id))
	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req StatusRequest
	if !h.decode(w, r, log, "users status", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.SetDisabled(ctx, caller, id, *req.Disabled)
	if err != nil {
		h.writeError(w, log, "users status", err)
		return
	}

	log.Info("users status: ok", slog.String("user_id", id), slog.Bool("disabled", user.Disabled))
	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req PasswordRequest
	if !h.decode(w, r, log, "users password", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.SetPassword(ctx, id, req.Password); err != nil {
		h.writeError(w, log, "users password", err)
		return
	}

	log.Info("users password: ok", slog.String("user_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, v interface{}) bool {
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
		log.Warn(op + ": not found")
		transport.WriteError(w, http.StatusNotFound, "user not found", nil)
	case errors.Is(err, ErrDuplicateEmail):
		log.Warn(op + ": duplicate email")
		transport.WriteError(w, http.StatusBadRequest, "email already registered", map[string]string{"email": "unique"})
	case errors.Is(err, ErrInvalidCredentials):
		log.Warn(op + ": invalid credentials")
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.Is(err, ErrDisabled):
		log.Warn(op + ": account disabled")
		transport.WriteError(w, http.StatusForbidden, "account disabled", nil)
	case errors.Is(err, ErrSelfDisable):
		transport.WriteError(w, http.StatusBadRequest, "cannot disable own account", nil)
	case errors.Is(err, auth.ErrInvalidRole):
		transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"role": "oneof"})
	case errors.Is(err, auth.ErrPasswordTooShort):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"password": "min"})
	case errors.Is(err, ErrAuthNotConfigured):
		transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	return middleware.RequestLogger(h.log, r)
}
