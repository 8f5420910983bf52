// Package cache is a Redis-backed response cache for public GET endpoints.
// Cached entries are grouped under tags so writes can drop every page that
// might show the changed entity.
package cache

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Tags used by the catalog and invalidated by admin writes.
const (
	TagCourses  = "courses"
	TagEvents   = "events"
	TagArticles = "articles"
	TagMentors  = "mentors"
	TagReviews  = "reviews"
)

// Invalidator drops cached responses carrying any of the given tags.
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

// Nop is an Invalidator that does nothing.
type Nop struct{}

func (Nop) Invalidate(context.Context, ...string) error { return nil }

// Config controls the cache.
type Config struct {
	Enabled      bool
	Prefix       string
	TTL          time.Duration
	MaxBodyBytes int
}

// Cache stores full responses in Redis.
type Cache struct {
	rdb    redis.Cmdable
	cfg    Config
	logger *zap.Logger
}

// New returns a Cache. A nil client or disabled config yields a pass-through cache.
func New(rdb redis.Cmdable, cfg Config, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	return &Cache{rdb: rdb, cfg: cfg, logger: logger}
}

func (c *Cache) active() bool { return c != nil && c.cfg.Enabled && c.rdb != nil }

// Key returns the cache key for a request path and raw query.
func (c *Cache) Key(path, rawQuery string) string {
	sum := sha1.Sum([]byte(path + "?" + rawQuery))
	return fmt.Sprintf("%s:resp:%x", c.cfg.Prefix, sum[:])
}

func (c *Cache) tagKey(tag string) string { return c.cfg.Prefix + ":tag:" + tag }

// Middleware caches successful GET responses of the wrapped route under tags.
func (c *Cache) Middleware(tags ...string) gin.HandlerFunc {
	if !c.active() {
		return func(ctx *gin.Context) { ctx.Next() }
	}
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet {
			ctx.Next()
			return
		}
		key := c.Key(ctx.Request.URL.Path, ctx.Request.URL.RawQuery)
		reqCtx := ctx.Request.Context()

		if bs, err := c.rdb.Get(reqCtx, key).Bytes(); err == nil {
			if status, hdr, body, ok := decodePayload(bs); ok {
				for k, vals := range hdr {
					if strings.EqualFold(k, "Content-Length") {
						continue
					}
					for _, v := range vals {
						ctx.Writer.Header().Add(k, v)
					}
				}
				ctx.Header("X-Cache", "HIT")
				ctx.Data(status, hdr.Get("Content-Type"), body)
				ctx.Abort()
				return
			}
		}

		cw := &captureWriter{ResponseWriter: ctx.Writer, limit: int64(c.cfg.MaxBodyBytes)}
		ctx.Writer = cw
		ctx.Header("X-Cache", "MISS")
		ctx.Next()

		if cw.Status() != http.StatusOK || cw.truncated {
			return
		}
		hdr := http.Header{"Content-Type": {cw.Header().Get("Content-Type")}}
		payload, err := encodePayload(http.StatusOK, hdr, cw.buf.Bytes())
		if err != nil {
			return
		}
		c.store(key, payload, tags)
	}
}

func (c *Cache) store(key string, payload []byte, tags []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := c.rdb.TxPipeline()
	pipe.SetEx(ctx, key, payload, c.cfg.TTL)
	for _, tag := range tags {
		pipe.SAdd(ctx, c.tagKey(tag), key)
		pipe.Expire(ctx, c.tagKey(tag), c.cfg.TTL*2)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate deletes every cached response registered under tags.
func (c *Cache) Invalidate(ctx context.Context, tags ...string) error {
	if !c.active() {
		return nil
	}
	for _, tag := range tags {
		tk := c.tagKey(tag)
		keys, err := c.rdb.SMembers(ctx, tk).Result()
		if err != nil {
			return fmt.Errorf("cache tag %s: %w", tag, err)
		}
		keys = append(keys, tk)
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache invalidate %s: %w", tag, err)
		}
		c.logger.Debug("cache invalidated", zap.String("tag", tag), zap.Int("keys", len(keys)-1))
	}
	return nil
}

// captureWriter tees the response body while forwarding it to the client.
type captureWriter struct {
	gin.ResponseWriter
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.capture(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *captureWriter) capture(b []byte) {
	if w.truncated {
		return
	}
	if w.limit > 0 && int64(w.buf.Len()+len(b)) > w.limit {
		w.truncated = true
		w.buf.Reset()
		return
	}
	w.buf.Write(b)
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (int, http.Header, []byte, bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status := int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	hdr := make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, hdr, bs[8+hlen:], true
}
