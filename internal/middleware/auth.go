package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/skintrack/server/internal/models"
)

type contextKey string

const OwnerContextKey contextKey = "owner"

// GetOwnerID returns the owner id the request was authenticated as
func GetOwnerID(ctx context.Context) string {
	if owner, ok := ctx.Value(OwnerContextKey).(string); ok {
		return owner
	}
	return ""
}

// WithOwnerID returns a context carrying ownerID
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, OwnerContextKey, ownerID)
}

// OwnerAuth checks the shared API key and takes the owner id from the
// user header. Authentication proper happens upstream; this only maps a
// trusted caller to an owner. An empty apiKey disables the key check.
//
// The /ws route also accepts the key and owner as apiKey and userId query
// parameters, since browsers cannot set headers on a WebSocket handshake.
func OwnerAuth(apiKey, keyHeader, userHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health endpoints
			path := r.URL.Path
			if path == "/health" || path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			// Only authenticate API and websocket routes
			isWS := path == "/ws"
			if !strings.HasPrefix(path, "/api") && !isWS {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get(keyHeader)
			ownerID := strings.TrimSpace(r.Header.Get(userHeader))
			if isWS {
				if providedKey == "" {
					providedKey = r.URL.Query().Get("apiKey")
				}
				if ownerID == "" {
					ownerID = strings.TrimSpace(r.URL.Query().Get("userId"))
				}
			}

			if apiKey != "" {
				if providedKey == "" {
					respondUnauthorized(w, "API key is required.")
					return
				}

				// Constant-time comparison to prevent timing attacks
				if !constantTimeEquals(apiKey, providedKey) {
					respondUnauthorized(w, "Invalid API key.")
					return
				}
			}

			if ownerID == "" {
				respondUnauthorized(w, userHeader+" header is required.")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}

// constantTimeEquals performs a constant-time string comparison
func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
