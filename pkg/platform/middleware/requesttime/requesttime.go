// Package requesttime pins one "now" per request, so every ledger rule in an
// operation (cooldown, day index, timestamps) evaluates the same instant.
package requesttime

import (
	"net/http"
	"time"

	"tokenledger/pkg/requestcontext"
)

// Middleware stamps the request with time.Now.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps the request with clock(); tests inject a fixed clock.
func WithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
