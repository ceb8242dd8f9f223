package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	appctx "3tcapital/saftprocessor/internal/infrastructure/context"
)

// responseWriter captures the status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// RequestLogger logs one line per request and stores the chi request id as the
// correlation id. Successful requests to quietPaths, such as probes, are logged at debug.
func RequestLogger(log *slog.Logger, quietPaths ...string) func(http.Handler) http.Handler {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := chimw.GetReqID(r.Context())
			ctx := appctx.WithCorrelationID(r.Context(), requestID)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", rw.statusCode,
				"duration_ms", float64(time.Since(start).Nanoseconds()) / 1e6,
				"bytes", rw.bytesWritten,
			}
			if requestID != "" {
				attrs = append(attrs, "correlation_id", requestID)
			}
			if ua := r.Header.Get("User-Agent"); ua != "" {
				attrs = append(attrs, "user_agent", ua)
			}

			_, isQuiet := quiet[r.URL.Path]
			switch {
			case rw.statusCode >= 500:
				log.Error("HTTP request", attrs...)
			case rw.statusCode >= 400:
				log.Warn("HTTP request", attrs...)
			case isQuiet:
				log.Debug("HTTP request", attrs...)
			default:
				log.Info("HTTP request", attrs...)
			}
		})
	}
}
