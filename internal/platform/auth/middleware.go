package auth

import (
	"errors"
	"net/http"

	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/httpserver"
)

// RequireUser rejects requests without a valid bearer token and injects
// the session into context.
func RequireUser(verifier JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := verifier.Authenticate(r)
			if err != nil {
				api.Unauthorized(w, "UNAUTHENTICATED", "sign in required", httpserver.RequestIDFromContext(r.Context()))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// OptionalUser injects the session when a valid token is present and lets
// anonymous requests through. A present but invalid token is still a 401.
func OptionalUser(verifier JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := verifier.Authenticate(r)
			switch {
			case errors.Is(err, errNoBearer):
				next.ServeHTTP(w, r)
			case err != nil:
				api.Unauthorized(w, "UNAUTHENTICATED", "invalid session", httpserver.RequestIDFromContext(r.Context()))
			default:
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
			}
		})
	}
}

// RequireAdmin runs after RequireUser and admits admin sessions only.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, _ := SessionFromContext(r.Context()); !s.IsAdmin() {
			api.Forbidden(w, "FORBIDDEN", "admin role required", httpserver.RequestIDFromContext(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
