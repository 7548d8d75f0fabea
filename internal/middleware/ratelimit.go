package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"imgforge/pkg/utils"
)

// NewRateLimiter builds the global token bucket from a requests-per-minute
// quota. A zero or negative quota disables rate limiting.
func NewRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
}

// RateLimitMiddleware enforces the global request quota. The bucket is shared
// by all clients; an empty bucket rejects immediately, before any fetch or
// processing work.
func RateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.Allow() {
			utils.WriteError(
				w,
				http.StatusTooManyRequests,
				utils.ErrRequestRateLimited,
				"Too many requests.",
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}
