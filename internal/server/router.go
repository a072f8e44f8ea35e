package server

import (
	"log/slog"
	"net/http"
	"time"

	"evms-backend/internal/appointments"
	"evms-backend/internal/auth"
	"evms-backend/internal/conversations"
	"evms-backend/internal/middleware"
	"evms-backend/internal/servicepackages"
	"evms-backend/internal/technicians"
	"evms-backend/internal/users"
	"evms-backend/internal/vehicles"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Users           *users.Handler
	Technicians     *technicians.Handler
	Vehicles        *vehicles.Handler
	ServicePackages *servicepackages.Handler
	Appointments    *appointments.Handler
	Conversations   *conversations.Handler
}

type Options struct {
	Tokens          *auth.Manager
	FrontendOrigins []string
	AuthLimiter     middleware.Limiter
	BookingLimiter  middleware.Limiter
	RequestTimeout  time.Duration
	Log             *slog.Logger
}

// NewRouter mounts every route under /api/v1.
func NewRouter(h Handlers, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(opts.Log))
	r.Use(middleware.CORS(opts.FrontendOrigins))

	r.Route("/api/v1", func(api chi.Router) {
		// Websocket streams outlive the request timeout.
		api.With(middleware.Authenticate(opts.Tokens)).Get("/conversations/{id}/ws", h.Conversations.Stream)

		api.Group(func(api chi.Router) {
			api.Use(chiMiddleware.Timeout(opts.RequestTimeout))
			registerRoutes(api, h, opts)
		})
	})
	return r
}

func registerRoutes(api chi.Router, h Handlers, opts Options) {
	backOffice := middleware.RequireRoles(auth.RoleStaff, auth.RoleAdmin)
	adminOnly := middleware.RequireRoles(auth.RoleAdmin)

	api.Route("/auth", func(r chi.Router) {
		r.With(rateLimited(opts.AuthLimiter, opts.Log)...).Post("/register", h.Users.Register)
		r.With(rateLimited(opts.AuthLimiter, opts.Log)...).Post("/login", h.Users.Login)
		r.With(middleware.Authenticate(opts.Tokens)).Get("/me", h.Users.Me)
	})

	api.With(middleware.OptionalAuthenticate(opts.Tokens)).Get("/service-packages", h.ServicePackages.List)
	api.Get("/service-packages/{id}", h.ServicePackages.Get)

	api.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.Tokens))

		r.Put("/users/me", h.Users.UpdateMe)
		r.Route("/users", func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/", h.Users.List)
			r.Post("/", h.Users.Create)
			r.Get("/{id}", h.Users.Get)
			r.Put("/{id}", h.Users.Update)
			r.Patch("/{id}/status", h.Users.SetStatus)
			r.Patch("/{id}/password", h.Users.SetPassword)
		})

		r.Route("/technicians", func(r chi.Router) {
			r.With(middleware.RequireRoles(auth.RoleTechnician)).Get("/me/appointments", h.Appointments.List)
			r.Get("/", h.Technicians.List)
			r.With(adminOnly).Post("/", h.Technicians.Create)
			r.Get("/{id}", h.Technicians.Get)
			r.Put("/{id}", h.Technicians.Update)
			r.Post("/{id}/certificates", h.Technicians.AddCertificate)
			r.Delete("/{id}/certificates/{certId}", h.Technicians.DeleteCertificate)
			r.Put("/{id}/certificates/{certId}/file", h.Technicians.UploadCertificateFile)
		})

		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.Vehicles.List)
			r.Post("/", h.Vehicles.Create)
			r.Get("/{id}", h.Vehicles.Get)
			r.Put("/{id}", h.Vehicles.Update)
			r.Delete("/{id}", h.Vehicles.Delete)
		})

		r.With(adminOnly).Post("/service-packages", h.ServicePackages.Create)
		r.With(adminOnly).Put("/service-packages/{id}", h.ServicePackages.Update)
		r.With(adminOnly).Delete("/service-packages/{id}", h.ServicePackages.Delete)

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.Appointments.List)
			r.With(rateLimited(opts.BookingLimiter, opts.Log)...).Post("/", h.Appointments.Create)
			r.Get("/{id}", h.Appointments.Get)
			r.With(backOffice).Post("/{id}/assign", h.Appointments.Assign)
			r.Post("/{id}/cancel", h.Appointments.Cancel)
			r.Patch("/{id}/status", h.Appointments.UpdateStatus)
		})

		// Flat paths: the websocket route shares this prefix outside the timeout group.
		r.Get("/conversations", h.Conversations.List)
		r.With(middleware.RequireRoles(auth.RoleCustomer)).Post("/conversations", h.Conversations.Create)
		r.Get("/conversations/{id}", h.Conversations.Get)
		r.With(middleware.RequireRoles(auth.RoleStaff)).Post("/conversations/{id}/claim", h.Conversations.Claim)
		r.Post("/conversations/{id}/close", h.Conversations.Close)
		r.Get("/conversations/{id}/messages", h.Conversations.ListMessages)
		r.Post("/conversations/{id}/messages", h.Conversations.PostMessage)
	})
}

func rateLimited(l middleware.Limiter, log *slog.Logger) []func(http.Handler) http.Handler {
	if l == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{middleware.RateLimit(l, log)}
}
