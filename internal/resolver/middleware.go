package resolver

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/centinela-ac/centinela/internal/shared"
)

// Middleware wires authorization checks for the service's own HTTP surface.
// Centinela guards its admin endpoints with the same engine it offers to the
// platform.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the current principal holds at least one of the required
// capabilities.
func (m Middleware) RequireAny(caps ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(caps) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			effective, err := m.Service.EffectiveCapabilities(r.Context(), principal.UserID)
			if err != nil {
				if errors.Is(err, ErrUnknownUser) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				if m.Logger != nil {
					m.Logger.Error("authz require any", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			held := make(map[string]struct{}, len(effective))
			for _, code := range effective {
				held[code] = struct{}{}
			}
			for _, required := range caps {
				if _, ok := held[required]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the current principal holds every required capability.
func (m Middleware) RequireAll(caps ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(caps) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			effective, err := m.Service.EffectiveCapabilities(r.Context(), principal.UserID)
			if err != nil {
				if errors.Is(err, ErrUnknownUser) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				if m.Logger != nil {
					m.Logger.Error("authz require all", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			held := make(map[string]struct{}, len(effective))
			for _, code := range effective {
				held[code] = struct{}{}
			}
			for _, required := range caps {
				if _, ok := held[required]; !ok {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
