package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"imgforge/pkg/utils"
)

// RecoverMiddleware converts handler panics into 500 responses instead of
// dropping the connection.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("request_id", RequestID(r.Context())).
					Msg("handler panicked")
				utils.WriteError(w, http.StatusInternalServerError, utils.ErrServerInternal, "Internal error.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
