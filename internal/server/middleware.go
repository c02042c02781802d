package server

import (
	"log/slog"
	"net/http"
	"time"
)

// maxQueryLogLen is the maximum length for logged query strings before truncation.
const maxQueryLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 500 * time.Millisecond

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs all requests with timing. Slow requests are logged
// at WARN level; server errors at ERROR.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", duration.Milliseconds(),
			}
			if q := r.URL.RawQuery; q != "" {
				attrs = append(attrs, "query", truncate(q, maxQueryLogLen))
			}

			switch {
			case rec.status >= http.StatusInternalServerError:
				logger.Error("request failed", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
		})
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
