package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

// RequestID tags each request with an id, reusing the proxy's X-Request-ID
// when it is usable so keygate logs line up with the proxy's.
func RequestID() func(http.Handler) http.Handler {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator is RequestID with a custom id source.
func RequestIDWithGenerator(generator func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderXRequestID)
			if !validRequestID(requestID) {
				requestID = generator()
			}

			w.Header().Set(HeaderXRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(observability.ContextWithRequestID(r.Context(), requestID)))
		})
	}
}

// validRequestID accepts non-empty printable ASCII ids of bounded length.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
