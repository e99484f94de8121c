package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/campusgate/campusgate/pkg/contextkeys"
)

// RequestIDHeader carries the request ID on both requests and responses
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an ID for log and audit
// correlation. An ID supplied by the caller is kept; otherwise a fresh
// one is generated. The ID is echoed on the response.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, requestID)
			ctx := contextkeys.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
