package servicepackages

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"evms-backend/internal/auth"
	"evms-backend/internal/cache"
	"evms-backend/internal/httpx"
	"evms-backend/internal/middleware"
	"evms-backend/internal/transport"
	"evms-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

const cachePrefix = "service_packages:"

type Handler struct {
	service  *Service
	cache    cache.Cache
	cacheTTL time.Duration
	val      *validation.Validator
	log      *slog.Logger
}

func NewHandler(service *Service, c cache.Cache, cacheTTL time.Duration, val *validation.Validator, log *slog.Logger) *Handler {
	if c == nil {
		c = cache.NewNoop()
	}
	return &Handler{
		service:  service,
		cache:    c,
		cacheTTL: cacheTTL,
		val:      val,
		log:      log,
	}
}

// List is public; only admins may ask for inactive packages with active=all.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	includeInactive := false
	if strings.EqualFold(r.URL.Query().Get("active"), "all") {
		caller, ok := middleware.PrincipalFromContext(r.Context())
		if !ok || !caller.Is(auth.RoleAdmin) {
			transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
		includeInactive = true
	}

	cacheKey := cachePrefix + "active"
	if includeInactive {
		cacheKey = cachePrefix + "all"
	}
	if cached, ok, err := h.cache.Get(r.Context(), cacheKey); err == nil && ok {
		log.Info("service packages list: cache hit")
		transport.WriteCachedJSON(w, http.StatusOK, cached)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.List(ctx, includeInactive)
	if err != nil {
		log.Error("service packages list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	response := map[string]interface{}{"items": items}
	if payload, err := json.Marshal(response); err == nil {
		_ = h.cache.Set(r.Context(), cacheKey, payload, h.cacheTTL)
	}

	log.Info("service packages list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pkg, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(w, log, "service packages get", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, pkg)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("service packages create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("service packages create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	pkg, err := h.service.Create(ctx, req)
	if err != nil {
		h.writeError(w, log, "service packages create", err)
		return
	}
	h.invalidate(ctx, log)

	log.Info("service packages create: ok", slog.String("package_id", pkg.ID), slog.String("slug", pkg.Slug))
	transport.WriteJSON(w, http.StatusCreated, pkg)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req UpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("service packages update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("service packages update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	pkg, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.writeError(w, log, "service packages update", err)
		return
	}
	h.invalidate(ctx, log)

	log.Info("service packages update: ok", slog.String("package_id", pkg.ID))
	transport.WriteJSON(w, http.StatusOK, pkg)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	pkg, err := h.service.Deactivate(ctx, id)
	if err != nil {
		h.writeError(w, log, "service packages delete", err)
		return
	}
	h.invalidate(ctx, log)

	log.Info("service packages delete: ok", slog.String("package_id", pkg.ID))
	transport.WriteJSON(w, http.StatusOK, pkg)
}

func (h *Handler) invalidate(ctx context.Context, log *slog.Logger) {
	if err := h.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		log.Warn("service packages: cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		transport.WriteError(w, http.StatusNotFound, "service package not found", nil)
	case errors.Is(err, ErrDuplicateSlug):
		transport.WriteError(w, http.StatusBadRequest, "slug already used", map[string]string{"slug": "unique"})
	case errors.Is(err, ErrInvalidSlug):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"slug": "slug"})
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	return middleware.RequestLogger(h.log, r)
}
