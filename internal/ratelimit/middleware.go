package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"medverify/pkg/platform/httputil"
	"medverify/pkg/platform/privacy"
	"medverify/pkg/requestcontext"
)

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Limiter applies one limit per client IP.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

// New creates a Limiter. A limit below 1 disables limiting.
func New(store Store, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Limiter{store: store, limit: limit, window: window, logger: logger}
}

// Middleware rejects clients over the limit with 429. Store failures let
// the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l.limit < 1 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		result, err := l.store.Allow(ctx, "ip:"+ip, l.limit, l.window)
		if err != nil {
			l.logger.ErrorContext(ctx, "rate limit check failed",
				"ip_prefix", privacy.AnonymizeIP(ip),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := result.RetryAfter(time.Now())
			l.logger.WarnContext(ctx, "rate limit exceeded",
				"ip_prefix", privacy.AnonymizeIP(ip),
				"path", r.URL.Path,
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, ExceededResponse{
				Error:      "rate_limit_exceeded",
				Message:    "Too many requests from this client. Please try again later.",
				RetryAfter: retryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
