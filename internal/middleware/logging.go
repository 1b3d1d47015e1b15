package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Logging writes one access log line per request and counts requests by
// method and status. Query strings are never logged since they may carry
// credentials. Requests for quietPaths, such as probes, log at debug level.
// The line is written even when the handler panics; place Recovery inside
// Logging so the recorded status is the 500 it writes.
func Logging(logger observability.Logger, quietPaths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				GetMetrics().requestsTotal.WithLabelValues(r.Method, strconv.Itoa(rw.status)).Inc()

				log := logger.WithContext(r.Context()).Info
				if slices.Contains(quietPaths, r.URL.Path) {
					log = logger.WithContext(r.Context()).Debug
				}
				log("http request",
					observability.String("method", r.Method),
					observability.String("path", r.URL.Path),
					observability.Int("status", rw.status),
					observability.Int("size", rw.size),
					observability.Duration("duration", time.Since(start)),
					observability.String("remote_addr", r.RemoteAddr),
					observability.String("user_agent", r.UserAgent()),
				)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// Chain applies middlewares so that the first one is outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
