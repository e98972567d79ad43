package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/pkg/i18n"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitWindow = time.Minute

// rateLimitScript sliding window counter, atomic per key
var rateLimitScript = redis.NewScript(`
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
local reset_at = now + window
if #oldest >= 2 then
    reset_at = tonumber(oldest[2]) + window
end
return {0, 0, reset_at}
`)

// RateLimitOptions per-user write limiter
type RateLimitOptions struct {
	WritesPerMinute int
	KeyPrefix       string
	Bundle          *i18n.Bundle
	// Now defaults to time.Now
	Now func() time.Time
}

// RateLimitWrites limits mutating requests per authenticated user.
// GET/HEAD/OPTIONS pass through; a Redis failure fails open.
// A nil client disables the limiter.
func RateLimitWrites(client redis.Scripter, opts RateLimitOptions) gin.HandlerFunc {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return func(c *gin.Context) {
		if client == nil || opts.WritesPerMinute <= 0 {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		subject := GetUserID(c)
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}

		now := opts.Now().UnixMilli()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()
		result, err := rateLimitScript.Run(ctx, client, []string{opts.KeyPrefix + subject},
			opts.WritesPerMinute, rateLimitWindow.Milliseconds(), now,
		).Int64Slice()
		if err != nil || len(result) != 3 {
			logger.GetLogger().Warn().Err(err).Str("subject", subject).Msg("rate limiter unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(opts.WritesPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result[1], 10))
		if result[0] == 1 {
			c.Next()
			return
		}

		retryAfter := max((result[2]-now)/1000, 1)
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		const key = "error.too_many_requests"
		common.ErrorResponse(c, http.StatusTooManyRequests, key, opts.Bundle.T(GetLocale(c), key))
		c.Abort()
	}
}
