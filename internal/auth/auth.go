// Package auth resolves bearer tokens to user identities.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/musclelog/server/internal/store"
)

type contextKey int

const (
	userIDKey contextKey = iota
	serviceCallKey
)

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// IsServiceCall reports whether the request authenticated with the
// service-level credential rather than a user token.
func IsServiceCall(ctx context.Context) bool {
	v, ok := ctx.Value(serviceCallKey).(bool)
	return ok && v
}

// WithUserID returns a context carrying the given user ID. Used by trusted
// webhook handlers that resolve the user themselves.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// HashToken returns the hex-encoded SHA-256 of a bearer token. Only hashes
// are persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// bearerToken extracts the token from an Authorization header, or "".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware authenticates requests via bearer token. Unknown or missing
// tokens are rejected with 401 before any handler runs. The serviceToken, if
// configured, authenticates trusted internal callers; those requests carry no
// user ID of their own and must name the user explicitly.
func Middleware(repo store.Repository, serviceToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, `{"error": "missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			if serviceToken != "" && token == serviceToken {
				ctx := context.WithValue(r.Context(), serviceCallKey, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			userID, err := repo.GetUserIDByTokenHash(r.Context(), HashToken(token))
			if err != nil {
				slog.Error("token lookup failed", "error", err)
				http.Error(w, `{"error": "authentication unavailable"}`, http.StatusInternalServerError)
				return
			}
			if userID == "" {
				http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
