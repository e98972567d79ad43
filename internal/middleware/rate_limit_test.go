package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/pkg/i18n"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingScripter 키별 호출 횟수로 슬라이딩 윈도우 흉내
type countingScripter struct {
	calls map[string]int64
	err   error
}

func (s *countingScripter) eval(keys []string, args ...interface{}) *redis.Cmd {
	if s.err != nil {
		return redis.NewCmdResult(nil, s.err)
	}
	limit := int64(args[0].(int))
	window := args[1].(int64)
	now := args[2].(int64)
	if s.calls[keys[0]] < limit {
		s.calls[keys[0]]++
		return redis.NewCmdResult([]interface{}{int64(1), limit - s.calls[keys[0]], int64(0)}, nil)
	}
	return redis.NewCmdResult([]interface{}{int64(0), int64(0), now + window}, nil)
}

func (s *countingScripter) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.eval(keys, args...)
}

func (s *countingScripter) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.eval(keys, args...)
}

func (s *countingScripter) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.eval(keys, args...)
}

func (s *countingScripter) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.eval(keys, args...)
}

func (s *countingScripter) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (s *countingScripter) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func rateLimitedRouter(t *testing.T, scripter redis.Scripter, perMinute int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bundle, err := i18n.Load(i18n.LocaleKo, "")
	require.NoError(t, err)

	r := gin.New()
	r.Use(I18n(bundle))
	r.Use(func(c *gin.Context) {
		c.Set(userIDKey, c.GetHeader("X-Test-User"))
		c.Next()
	})
	r.Use(RateLimitWrites(scripter, RateLimitOptions{WritesPerMinute: perMinute, KeyPrefix: "rl:", Bundle: bundle}))
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.POST("/write", ok)
	r.GET("/read", ok)
	return r
}

func send(r *gin.Engine, method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Test-User", user)
	req.Header.Set("Accept-Language", "en")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitWrites(t *testing.T) {
	scripter := &countingScripter{calls: map[string]int64{}}
	r := rateLimitedRouter(t, scripter, 2)

	assert.Equal(t, http.StatusNoContent, send(r, http.MethodPost, "/write", "1").Code)
	w := send(r, http.MethodPost, "/write", "1")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = send(r, http.MethodPost, "/write", "1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "error.too_many_requests")
	assert.Contains(t, w.Body.String(), "Too many requests")

	// 다른 사용자, 읽기 요청은 영향 없음
	assert.Equal(t, http.StatusNoContent, send(r, http.MethodPost, "/write", "2").Code)
	assert.Equal(t, http.StatusNoContent, send(r, http.MethodGet, "/read", "1").Code)
	assert.EqualValues(t, 2, scripter.calls["rl:1"])
}

func TestRateLimitWrites_FailsOpen(t *testing.T) {
	r := rateLimitedRouter(t, &countingScripter{err: errors.New("connection refused")}, 1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, send(r, http.MethodPost, "/write", "1").Code)
	}

	r = rateLimitedRouter(t, nil, 1)
	assert.Equal(t, http.StatusNoContent, send(r, http.MethodPost, "/write", "1").Code)
	assert.Equal(t, http.StatusNoContent, send(r, http.MethodPost, "/write", "1").Code)
}

func TestRateLimitWrites_FixedClock(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	scripter := &countingScripter{calls: map[string]int64{"rl:1": 1}}
	bundle, err := i18n.Load(i18n.LocaleKo, "")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(userIDKey, "1") })
	r.Use(RateLimitWrites(scripter, RateLimitOptions{WritesPerMinute: 1, KeyPrefix: "rl:", Bundle: bundle, Now: func() time.Time { return now }}))
	r.POST("/write", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}
