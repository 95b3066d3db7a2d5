package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig configures a sliding-window limiter
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyPrefix         string
	// Key identifies the caller; defaults to the authenticated user, then the client IP
	Key func(c *gin.Context) string
}

// slidingWindow returns {allowed, remaining, reset_at_ms}
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('PEXPIRE', key, window + 1000)
    return {1, limit - count - 1, 0}
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset_at = 0
if #oldest >= 2 then
    reset_at = tonumber(oldest[2]) + window
end
return {0, 0, reset_at}
`)

func callerKey(c *gin.Context) string {
	if id := GetUserID(c); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

// RateLimit throttles callers per minute. Without Redis, or when Redis
// errors, requests pass.
func RateLimit(redisClient *redis.Client, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Key == nil {
		cfg.Key = callerKey
	}
	return func(c *gin.Context) {
		if redisClient == nil || cfg.RequestsPerMinute <= 0 {
			c.Next()
			return
		}

		now := time.Now().UnixMilli()
		window := time.Minute.Milliseconds()

		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		result, err := slidingWindow.Run(ctx, redisClient, []string{cfg.KeyPrefix + cfg.Key(c)},
			cfg.RequestsPerMinute, window, now,
		).Int64Slice()
		cancel()
		if err != nil || len(result) != 3 {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result[1], 10))

		if result[0] != 1 {
			retryAfter := (result[2] - now) / 1000
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			common.ErrorResponse(c, http.StatusTooManyRequests, "too many generation requests, try again shortly", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
