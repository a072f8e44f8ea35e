package middleware

import (
	"context"
	"net/http"
	"strings"

	"evms-backend/internal/auth"
	"evms-backend/internal/transport"
)

type principalKey struct{}

func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	// Browsers cannot set headers on websocket upgrades.
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// Authenticate requires a valid bearer token and stores the caller in the request context.
func Authenticate(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
				return
			}
			token := bearerToken(r)
			if token == "" {
				transport.WriteError(w, http.StatusUnauthorized, "missing bearer token", nil)
				return
			}
			claims, err := manager.Parse(token)
			if err != nil {
				transport.WriteError(w, http.StatusUnauthorized, "invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Principal())))
		})
	}
}

// OptionalAuthenticate attaches the caller when a valid token is present and never rejects.
func OptionalAuthenticate(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if manager == nil || token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := manager.Parse(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Principal())))
		})
	}
}

// RequireRoles must run after Authenticate.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if !p.Is(roles...) {
				transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
