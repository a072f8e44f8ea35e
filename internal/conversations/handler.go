package conversations

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
	hub     *Hub
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, hub *Hub, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		val:     val,
		log:     log,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())

	var req CreateRequest
	if !h.decode(w, r, "conversations create", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	created, err := h.service.Create(ctx, caller, req)
	if err != nil {
		h.writeError(w, log, "conversations create", err)
		return
	}
	log.Info("conversations create: ok", slog.String("conversation_id", created.ID))
	transport.WriteJSON(w, http.StatusCreated, created)
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
	filter := ListFilter{
		CustomerID: strings.TrimSpace(q.Get("customerId")),
		Statuses:   httpx.ParseList(q, "status"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, caller, filter, page)
	if err != nil {
		h.writeError(w, log, "conversations list", err)
		return
	}
	transport.WriteList(w, items, page.Page, page.Limit, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	conv, err := h.service.Get(ctx, caller, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, log, "conversations get", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, conv)
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	conv, err := h.service.Claim(ctx, caller, id)
	if err != nil {
		h.writeError(w, log, "conversations claim", err)
		return
	}
	log.Info("conversations claim: ok", slog.String("conversation_id", conv.ID), slog.String("staff_id", conv.StaffID))
	transport.WriteJSON(w, http.StatusOK, conv)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	conv, err := h.service.Close(ctx, caller, id)
	if err != nil {
		h.writeError(w, log, "conversations close", err)
		return
	}
	log.Info("conversations close: ok", slog.String("conversation_id", conv.ID))
	transport.WriteJSON(w, http.StatusOK, conv)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())

	page, err := httpx.ParsePage(r.URL.Query(), 50, 200)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.service.Messages(ctx, caller, chi.URLParam(r, "id"), page)
	if err != nil {
		h.writeError(w, log, "conversations messages", err)
		return
	}
	transport.WriteList(w, items, page.Page, page.Limit, total)
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())

	var req MessageRequest
	if !h.decode(w, r, "conversations message", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	msg, err := h.service.PostMessage(ctx, caller, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, log, "conversations message", err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, msg)
}

// Stream upgrades to a websocket carrying new messages and status changes of one conversation.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	caller, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	conv, err := h.service.Join(ctx, caller, chi.URLParam(r, "id"))
	cancel()
	if err != nil {
		h.writeError(w, log, "conversations stream", err)
		return
	}

	log.Info("conversations stream: connected", slog.String("conversation_id", conv.ID))
	if err := h.hub.Serve(w, r, conv.ID, caller.UserID); err != nil {
		if errors.Is(err, ErrRoomClosed) || errors.Is(err, ErrNotParticipant) {
			log.Info("conversations stream: refused", slog.String("conversation_id", conv.ID), slog.String("reason", err.Error()))
			return
		}
		// The upgrader has already written an error response.
		log.Warn("conversations stream: upgrade failed", slog.String("error", err.Error()))
		return
	}
	log.Info("conversations stream: disconnected", slog.String("conversation_id", conv.ID))
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
		transport.WriteError(w, http.StatusNotFound, "conversation not found", nil)
	case errors.Is(err, ErrForbidden):
		log.Warn(op + ": forbidden")
		transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
	case errors.Is(err, ErrAlreadyClaimed):
		log.Warn(op + ": already claimed")
		transport.WriteError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ErrClosed):
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
