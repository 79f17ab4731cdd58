package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds request handling. Handlers cancel
// cooperatively: outbound call control commands carry the request
// context and abort when it expires.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
