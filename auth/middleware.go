package auth

import (
	"context"
	"net/http"
	"strings"

	"cinematch/domain"
)

type contextKey string

// userKey carries the authenticated identity through the request context.
const userKey contextKey = "user"

// Middleware handles JWT validation for incoming HTTP calls.
// The token comes from the Authorization header, or from the "token"
// query parameter for websocket handshakes where browsers cannot set
// headers.
func Middleware(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Retrieve the raw token
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				http.Error(w, "authorization token is missing", http.StatusUnauthorized)
				return
			}

			// 2. Validate the JWT and extract claims
			claims, err := manager.Validate(tokenStr)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			// 3. Inject user identity into context for downstream layers
			ctx := context.WithValue(r.Context(), userKey, claims.User())

			// Continue the execution chain with the enriched context
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// FromContext returns the authenticated user injected by Middleware.
func FromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userKey).(domain.User)
	return user, ok
}
