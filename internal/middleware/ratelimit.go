package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles requests with a Redis fixed-window counter. Each
// limiter gets its own scope, so the edge-wide and per-API limits count
// independently. Authenticated requests are keyed by user, anonymous ones
// by client IP.
type RateLimiter struct {
	cache  *redis.Client
	scope  string
	limit  int
	window time.Duration
}

func NewRateLimiter(cache *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		cache:  cache,
		scope:  scope,
		limit:  limit,
		window: window,
	}
}

// Limit rejects requests over the window budget with 429 and a Retry-After
// hint. A Redis failure lets the request through: throttling must not take
// the checkout path down with it.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "rl:" + rl.scope + ":" + rl.clientKey(r)

		pipe := rl.cache.TxPipeline()
		count := pipe.Incr(r.Context(), key)
		pipe.ExpireNX(r.Context(), key, rl.window)
		if _, err := pipe.Exec(r.Context()); err != nil {
			next.ServeHTTP(w, r)
			return
		}

		remaining := int64(rl.limit) - count.Val()
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count.Val() > int64(rl.limit) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) clientKey(r *http.Request) string {
	if userID, ok := r.Context().Value(ctxUserIDKey).(uuid.UUID); ok && userID != uuid.Nil {
		return "u:" + userID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
