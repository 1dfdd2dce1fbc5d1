package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRateLimitFailsOpenWhenRedisDown(t *testing.T) {
	cache := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer cache.Close()

	called := false
	handler := NewRateLimiter(cache, "api", 1, time.Minute).Limit(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/orders/purchases", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitClientKey(t *testing.T) {
	rl := NewRateLimiter(nil, "edge", 10, time.Minute)

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:41234"
	assert.Equal(t, "ip:203.0.113.9", rl.clientKey(r))

	userID := uuid.New()
	r = r.WithContext(context.WithValue(r.Context(), ctxUserIDKey, userID))
	assert.Equal(t, "u:"+userID.String(), rl.clientKey(r))
}

func TestRateLimitScopesKeysIndependently(t *testing.T) {
	edge := NewRateLimiter(nil, "edge", 10, time.Minute)
	api := NewRateLimiter(nil, "api", 10, time.Minute)

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:41234"

	assert.NotEqual(t, "rl:"+edge.scope+":"+edge.clientKey(r), "rl:"+api.scope+":"+api.clientKey(r))
}
