package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Identity extracts the opaque user identifier supplied by the upstream
// identity provider. Anonymous requests pass through; nothing here
// validates sessions, that is the identity provider's job.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			if auth := r.Header.Get("Authorization"); auth != "" {
				userID = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if userID != "" {
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// UserID returns the authenticated requester id, or "" for anonymous.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
