// Package requesttime pins one "now" per HTTP request so every timestamp the
// engine writes while serving it (reviewedAt, submittedAt, completedAt) agrees.
package requesttime

import (
	"net/http"
	"time"

	"trustlane/pkg/requestcontext"
)

// Middleware stamps the request with the current UTC time unless an earlier
// layer already did.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, ok := ctx.Value(requestcontext.ContextKeyRequestTime).(time.Time); !ok {
			r = r.WithContext(requestcontext.WithTime(ctx, time.Now().UTC()))
		}
		next.ServeHTTP(w, r)
	})
}
