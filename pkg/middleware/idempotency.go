package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/pkg/response"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyHeader carries the client-chosen key of a write
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// ReplayedHeader is set on responses served from a stored record
	ReplayedHeader = "X-Idempotent-Replay"
	// DefaultIdempotencyTTL bounds how long a completed response is replayed
	DefaultIdempotencyTTL = 5 * time.Minute

	idempotencyKeyPrefix = "booth:idem:"
	anonymousUser        = "-"
)

// RedisClient is the subset of go-redis the middleware needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	Redis RedisClient
	// TTL of a completed record
	TTL time.Duration
	// ProcessingTTL of the claim held while the handler runs
	ProcessingTTL time.Duration
	// SkipPaths are exact paths or prefixes ending in "*"
	SkipPaths []string
	// Methods that are deduplicated
	Methods []string
	// Required rejects writes without a key; otherwise they pass through
	Required bool
}

// DefaultIdempotencyConfig returns default configuration
func DefaultIdempotencyConfig(redis RedisClient) *IdempotencyConfig {
	return &IdempotencyConfig{
		Redis:         redis,
		TTL:           DefaultIdempotencyTTL,
		ProcessingTTL: time.Minute,
		Methods:       []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}
}

// replayRecord is what one key stores: a claim while the first request runs,
// then the response to replay
type replayRecord struct {
	Fingerprint string    `json:"fingerprint"`
	Done        bool      `json:"done"`
	Status      int       `json:"status,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Body        string    `json:"body,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type replayStore struct {
	redis RedisClient
}

// replayKey scopes client keys per caller so two users can't collide
func replayKey(userID, key string) string {
	if userID == "" {
		userID = anonymousUser
	}
	return idempotencyKeyPrefix + userID + ":" + key
}

func (s replayStore) get(ctx context.Context, key string) (*replayRecord, error) {
	raw, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var rec replayRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s replayStore) claim(ctx context.Context, key string, rec *replayRecord, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	return s.redis.SetNX(ctx, key, string(data), ttl).Result()
}

func (s replayStore) put(ctx context.Context, key string, rec *replayRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, string(data), ttl).Err()
}

func (s replayStore) release(ctx context.Context, key string) error {
	return s.redis.Del(ctx, key).Err()
}

// IdempotencyMiddleware replays the stored response of a write that already
// completed under the same key. A key reused for a different request is
// rejected. 5xx responses are not stored so the client can retry.
// Redis failures fail open.
func IdempotencyMiddleware(cfg *IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultIdempotencyTTL
	}
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = time.Minute
	}
	store := replayStore{redis: cfg.Redis}

	return func(c *gin.Context) {
		if skipIdempotency(c, cfg) {
			c.Next()
			return
		}

		clientKey := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if clientKey == "" {
			if cfg.Required {
				c.AbortWithStatusJSON(http.StatusBadRequest, response.ErrorBody("MISSING_IDEMPOTENCY_KEY", "X-Idempotency-Key header is required"))
				return
			}
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		ctx := c.Request.Context()
		userID, _ := GetUserID(c)
		key := replayKey(userID, clientKey)
		rec := &replayRecord{Fingerprint: fingerprint(c, body), CreatedAt: time.Now()}

		claimed, err := store.claim(ctx, key, rec, cfg.ProcessingTTL)
		if err != nil {
			c.Next()
			return
		}
		if !claimed {
			existing, err := store.get(ctx, key)
			switch {
			case errors.Is(err, redis.Nil):
				// expired between claim and read; run unprotected
				c.Next()
			case err != nil:
				c.Next()
			default:
				replay(c, existing, rec.Fingerprint)
			}
			return
		}

		rw := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = rw
		c.Next()

		status := rw.Status()
		if status >= http.StatusInternalServerError {
			_ = store.release(ctx, key)
			return
		}
		rec.Done = true
		rec.Status = status
		rec.ContentType = rw.Header().Get("Content-Type")
		rec.Body = rw.body.String()
		_ = store.put(ctx, key, rec, cfg.TTL)
	}
}

func replay(c *gin.Context, rec *replayRecord, fp string) {
	switch {
	case rec.Fingerprint != fp:
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, response.ErrorBody("IDEMPOTENCY_KEY_REUSED", "Idempotency key already used with a different request"))
	case !rec.Done:
		c.AbortWithStatusJSON(http.StatusConflict, response.ErrorBody("REQUEST_IN_PROGRESS", "A request with this idempotency key is still being processed"))
	default:
		contentType := rec.ContentType
		if contentType == "" {
			contentType = "application/json; charset=utf-8"
		}
		c.Header(ReplayedHeader, "true")
		c.Data(rec.Status, contentType, []byte(rec.Body))
		c.Abort()
	}
}

func skipIdempotency(c *gin.Context, cfg *IdempotencyConfig) bool {
	for _, p := range cfg.SkipPaths {
		if matchPath(c.Request.URL.Path, p) {
			return true
		}
	}
	for _, m := range cfg.Methods {
		if c.Request.Method == m {
			return false
		}
	}
	return true
}

func matchPath(path, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}
	return path == pattern
}

// fingerprint identifies a request by method, path and body
func fingerprint(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte{0})
	h.Write([]byte(c.Request.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// capturingWriter tees the response body for storage
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
