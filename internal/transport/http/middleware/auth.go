package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtinfra "github.com/go-auth-sms/internal/infrastructure/jwt"
)

type contextKey string

const userIDKey contextKey = "user_id"

type accessDecoder interface {
	DecodeAccess(tokenStr string) (*jwtinfra.Claims, error)
}

// Auth returns middleware that validates the Bearer access token and injects
// the subject user id into the request context.
func Auth(tokens accessDecoder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := tokens.DecodeAccess(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated user id from the request context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
