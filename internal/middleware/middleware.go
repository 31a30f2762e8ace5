package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/metrics"
	"ms-lunch/internal/utils"
)

// RequestLogger logs every request by status class and records its latency
// under the matched route pattern.
func RequestLogger(log *logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			switch {
			case status >= 500:
				log.Error("API", fmt.Sprintf("%s %s - %d (%s)", r.Method, r.URL.Path, status, duration))
			case status >= 400:
				log.Warn("API", fmt.Sprintf("%s %s - %d (%s) - Client Error", r.Method, r.URL.Path, status, duration))
			default:
				log.LogAPI(r.Method, r.URL.Path, status, duration)
			}

			if m != nil {
				route := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(duration.Seconds())
			}
		})
	}
}

func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("PANIC", fmt.Sprintf("Recovered from panic on %s %s: %v", r.Method, r.URL.Path, rec))
					utils.WriteError(w, fmt.Errorf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
