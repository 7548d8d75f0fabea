package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"imgforge/pkg/utils"
)

// AuthMiddleware gates every endpoint behind a bearer token when a server
// secret is configured. A missing token is 401, a wrong one 403.
func AuthMiddleware(secret string, next http.Handler) http.Handler {
	if secret == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			utils.WriteError(w, http.StatusUnauthorized, utils.ErrAuthRequired, "Missing authorization token.")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			utils.WriteError(w, http.StatusForbidden, utils.ErrAuthForbidden, "Invalid authorization token.")
			return
		}

		next.ServeHTTP(w, r)
	})
}
