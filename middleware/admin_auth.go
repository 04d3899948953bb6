package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireAdminAuth validates a static bearer token (ADMIN_TOKEN). An empty
// token disables admin access entirely. Missing or mismatch → 403.
func RequireAdminAuth(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminToken == "" {
				respondWithError(w, http.StatusForbidden, "Forbidden", "Admin access not configured")
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				respondWithError(w, http.StatusForbidden, "Forbidden", "Authorization header required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
				respondWithError(w, http.StatusForbidden, "Forbidden", "Invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
