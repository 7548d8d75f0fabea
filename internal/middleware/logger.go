package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"imgforge/internal/metrics"
	"imgforge/pkg/utils"
)

// statusWriter captures the status code and body size for access logging.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	length     int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.length += len(b)
	return w.ResponseWriter.Write(b)
}

// LoggerMiddleware emits one structured access log line per request.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		metrics.RequestsTotal.WithLabelValues(strconv.Itoa(ww.statusCode)).Inc()

		log.Info().
			Str("request_id", RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.EscapedPath()).
			Str("remote", utils.GetRealIP(r)).
			Int("status", ww.statusCode).
			Int("bytes", ww.length).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
