package middleware

import (
	"net/http"
	"time"

	"medverify/pkg/requestcontext"
)

// RequestTime captures "now" once per request so every stage of a
// verification attempt evaluates expiry against the same instant.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
