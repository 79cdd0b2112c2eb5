package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRedis is an in-memory RedisClient
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRequestID_GeneratesNew(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	headerID := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, headerID)
	assert.Equal(t, headerID, w.Body.String())
}

func TestRequestID_UsesExisting(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "kiosk-7-req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "kiosk-7-req-1", w.Body.String())
}

func TestUserContext(t *testing.T) {
	r := gin.New()
	r.Use(UserContext())
	r.GET("/me", func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			c.String(http.StatusUnauthorized, "")
			return
		}
		c.String(http.StatusOK, userID)
	})

	t.Run("header present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(UserIDHeader, "  user-1 ")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", w.Body.String())
	})

	t.Run("header missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLogger_LevelsByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.New(zap.New(core))

	r := gin.New()
	r.Use(RequestID(), Logger(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusConflict) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/bad", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
}

func newIdempotentRouter(store *fakeRedis, required bool, calls *int, status int) *gin.Engine {
	cfg := DefaultIdempotencyConfig(store)
	cfg.Required = required

	r := gin.New()
	r.Use(UserContext(), IdempotencyMiddleware(cfg))
	r.POST("/orders", func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"call": *calls})
	})
	return r
}

func post(r *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	req.Header.Set(UserIDHeader, "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	calls := 0
	r := newIdempotentRouter(newFakeRedis(), false, &calls, http.StatusCreated)

	first := post(r, "k1", `{"item":"a"}`)
	second := post(r, "k1", `{"item":"a"}`)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Empty(t, first.Header().Get(ReplayedHeader))
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
}

func TestIdempotency_KeysAreScopedPerUser(t *testing.T) {
	calls := 0
	r := newIdempotentRouter(newFakeRedis(), false, &calls, http.StatusCreated)

	post(r, "k1", `{"item":"a"}`)
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"item":"a"}`))
	req.Header.Set(IdempotencyKeyHeader, "k1")
	req.Header.Set(UserIDHeader, "user-2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	calls := 0
	r := newIdempotentRouter(newFakeRedis(), false, &calls, http.StatusCreated)

	post(r, "k1", `{"item":"a"}`)
	w := post(r, "k1", `{"item":"b"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_KEY_REUSED")
	assert.Equal(t, 1, calls)
}

func TestIdempotency_MissingKey(t *testing.T) {
	calls := 0

	optional := newIdempotentRouter(newFakeRedis(), false, &calls, http.StatusOK)
	assert.Equal(t, http.StatusOK, post(optional, "", `{}`).Code)
	assert.Equal(t, http.StatusOK, post(optional, "", `{}`).Code)
	assert.Equal(t, 2, calls)

	required := newIdempotentRouter(newFakeRedis(), true, &calls, http.StatusOK)
	w := post(required, "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_IDEMPOTENCY_KEY")
}

func TestIdempotency_ServerErrorIsNotCached(t *testing.T) {
	calls := 0
	store := newFakeRedis()
	r := newIdempotentRouter(store, false, &calls, http.StatusServiceUnavailable)

	post(r, "k2", `{}`)
	post(r, "k2", `{}`)

	assert.Equal(t, 2, calls)
	_, err := replayStore{redis: store}.get(context.Background(), replayKey("user-1", "k2"))
	assert.ErrorIs(t, err, redis.Nil)
}

func TestIdempotency_InProgress(t *testing.T) {
	store := newFakeRedis()
	calls := 0
	r := newIdempotentRouter(store, false, &calls, http.StatusCreated)

	// Turn the stored response back into an open claim
	post(r, "k3", `{}`)
	rs := replayStore{redis: store}
	key := replayKey("user-1", "k3")
	rec, err := rs.get(context.Background(), key)
	require.NoError(t, err)
	rec.Done = false
	require.NoError(t, rs.put(context.Background(), key, rec, time.Minute))

	w := post(r, "k3", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, calls)
}

func TestMatchPath(t *testing.T) {
	assert.True(t, matchPath("/health", "/health"))
	assert.True(t, matchPath("/api/v1/venues/x/events", "/api/v1/venues/*"))
	assert.False(t, matchPath("/ready", "/health"))
}
