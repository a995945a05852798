package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(t *testing.T, limit int64, window time.Duration) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(NewRateLimiter(client, limit, window).RateLimitMiddleware)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, mr
}

func ping(r *gin.Engine) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitWindow(t *testing.T) {
	r, mr := limitedRouter(t, 2, time.Minute)

	assert.Equal(t, http.StatusNoContent, ping(r))
	assert.Equal(t, http.StatusNoContent, ping(r))
	assert.Equal(t, http.StatusTooManyRequests, ping(r))

	ttl := mr.TTL("ratelimit:10.0.0.7")
	assert.True(t, ttl > 0 && ttl <= time.Minute, ttl.String())

	mr.FastForward(time.Minute)
	assert.False(t, mr.Exists("ratelimit:10.0.0.7"))
	assert.Equal(t, http.StatusNoContent, ping(r))
}

func TestRateLimitFailsOpenWithoutRedis(t *testing.T) {
	r, mr := limitedRouter(t, 1, time.Minute)
	mr.Close()

	assert.Equal(t, http.StatusNoContent, ping(r))
	assert.Equal(t, http.StatusNoContent, ping(r))
}
