package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/globetrotter/identity-service/internal/http/response"
	"github.com/globetrotter/identity-service/internal/service"
)

type contextKey string

const adminContextKey contextKey = "admin"

// RequireAdmin verifies the bearer token and rejects non-admin roles before
// the handler runs. The verified identity is stashed on the request context.
func RequireAdmin(admins service.AdminServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "missing_token", "Authorization header with bearer token is required", nil)
				return
			}

			identity, err := admins.Authenticate(raw)
			if err != nil {
				if errors.Is(err, service.ErrForbidden) {
					response.Error(w, r, http.StatusForbidden, "forbidden", "Admin privileges required", nil)
					return
				}
				response.Error(w, r, http.StatusUnauthorized, "invalid_token", "Token is invalid or expired", nil)
				return
			}

			ctx := context.WithValue(r.Context(), adminContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext returns the identity placed by RequireAdmin.
func AdminFromContext(ctx context.Context) (*service.AdminIdentity, bool) {
	identity, ok := ctx.Value(adminContextKey).(*service.AdminIdentity)
	return identity, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
