package middleware

import (
	"io"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

// Recovery turns a panic into a 500 whose body is "500", the same
// status-as-body form the auth endpoints use. The proxy treats it as an
// error and denies the request.
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithContext(r.Context()).Error("panic recovered",
						observability.String("path", r.URL.Path),
						observability.String("method", r.Method),
						observability.Any("panic", rec),
						observability.String("stack", string(debug.Stack())),
					)
					GetMetrics().panicsRecovered.Inc()

					w.Header().Set(HeaderContentType, ContentTypeText)
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = io.WriteString(w, strconv.Itoa(http.StatusInternalServerError))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
