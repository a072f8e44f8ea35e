package technicians

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"evms-backend/internal/httpx"
	"evms-backend/internal/middleware"
	"evms-backend/internal/storage"
	"evms-backend/internal/transport"
	"evms-backend/internal/users"
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
	q := r.URL.Query()
	page, err := httpx.ParsePage(q, 20, 100)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, page, httpx.Includes(q, "certificates"))
	if err != nil {
		h.writeError(w, log, "technicians list", err)
		return
	}
	log.Info("technicians list: ok", slog.Int("count", len(items)))
	transport.WriteList(w, items, page.Page, page.Limit, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := h.service.Get(ctx, id, httpx.Includes(r.URL.Query(), "certificates"))
	if err != nil {
		h.writeError(w, log, "technicians get", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req CreateRequest
	if !h.decode(w, r, "technicians create", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	view, err := h.service.Create(ctx, req)
	if err != nil {
		h.writeError(w, log, "technicians create", err)
		return
	}
	log.Info("technicians create: ok", slog.String("technician_id", view.ID), slog.String("user_id", view.UserID))
	transport.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req UpdateRequest
	if !h.decode(w, r, "technicians update", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	tech, err := h.service.Update(ctx, caller, id, req)
	if err != nil {
		h.writeError(w, log, "technicians update", err)
		return
	}
	log.Info("technicians update: ok", slog.String("technician_id", tech.ID))
	transport.WriteJSON(w, http.StatusOK, tech)
}

func (h *Handler) AddCertificate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req CertificateRequest
	if !h.decode(w, r, "certificates create", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	cert, err := h.service.AddCertificate(ctx, caller, id, req)
	if err != nil {
		h.writeError(w, log, "certificates create", err)
		return
	}
	log.Info("certificates create: ok", slog.String("technician_id", id), slog.String("certificate_id", cert.ID))
	transport.WriteJSON(w, http.StatusCreated, cert)
}

func (h *Handler) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	certID := strings.TrimSpace(chi.URLParam(r, "certId"))

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	cert, err := h.service.DeleteCertificate(ctx, caller, id, certID)
	if err != nil {
		h.writeError(w, log, "certificates delete", err)
		return
	}

	if cert.FileKey != "" {
		go func(key string) {
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 8*time.Second)
			defer cleanupCancel()
			if err := h.service.RemoveFile(cleanupCtx, key); err != nil {
				h.log.Warn("certificates delete: file cleanup failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		}(cert.FileKey)
	}

	log.Info("certificates delete: ok", slog.String("technician_id", id), slog.String("certificate_id", certID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UploadCertificateFile(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	certID := strings.TrimSpace(chi.URLParam(r, "certId"))

	r.Body = http.MaxBytesReader(w, r.Body, MaxCertificateFileSize+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		log.Warn("certificates upload: invalid form", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"file": "required"})
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	cert, err := h.service.UploadCertificateFile(ctx, caller, id, certID, Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}, file)
	if err != nil {
		h.writeError(w, log, "certificates upload", err)
		return
	}
	log.Info("certificates upload: ok", slog.String("certificate_id", cert.ID), slog.Int64("size", header.Size))
	transport.WriteJSON(w, http.StatusOK, cert)
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
		transport.WriteError(w, http.StatusNotFound, "technician not found", nil)
	case errors.Is(err, ErrCertificateNotFound):
		transport.WriteError(w, http.StatusNotFound, "certificate not found", nil)
	case errors.Is(err, ErrForbidden):
		log.Warn(op + ": forbidden")
		transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
	case errors.Is(err, users.ErrDuplicateEmail):
		transport.WriteError(w, http.StatusBadRequest, "email already registered", map[string]string{"email": "unique"})
	case errors.Is(err, ErrFileTooLarge):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"file": "max"})
	case errors.Is(err, ErrUnsupportedFile):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"file": "content_type"})
	case errors.Is(err, storage.ErrNotConfigured):
		transport.WriteError(w, http.StatusServiceUnavailable, "file storage not configured", nil)
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	return middleware.RequestLogger(h.log, r)
}
