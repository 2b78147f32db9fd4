package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// Limiter decides whether one more call by identifier is allowed. When it
// returns an error the bool is still the decision to apply.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// KeyFunc picks the identifier a request is counted against. An empty key
// skips limiting for that request.
type KeyFunc func(r *http.Request) string

// RateLimit rejects requests over the limiter's budget with 429.
func RateLimit(limiter Limiter, key KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := key(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), id)
			if err != nil {
				logger.Warn("rate limiter unavailable",
					slog.String("identifier", id),
					slog.Bool("allowed", allowed),
					slog.String("error", err.Error()))
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many submissions, try again in a minute"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
