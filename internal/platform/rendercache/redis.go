package rendercache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache shares rendered responses between replicas. Because every
// replica reads the same keys it is also its own Invalidator.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

var (
	_ Cache       = (*RedisCache)(nil)
	_ Invalidator = (*RedisCache)(nil)
)

// NewRedisCache connects using a redis:// URL.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration, log *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "render:", log: log}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("render cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte) {
	if err := c.rdb.Set(ctx, c.prefix+key, val, c.ttl).Err(); err != nil {
		c.log.Warn("render cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidatePaths deletes each bare path and scans for its query variants.
func (c *RedisCache) InvalidatePaths(ctx context.Context, paths ...string) {
	for _, p := range paths {
		keys := []string{c.prefix + p}
		iter := c.rdb.Scan(ctx, 0, variantPattern(c.prefix+p), 200).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			c.log.Warn("render cache scan failed", zap.String("path", p), zap.Error(err))
		}
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			c.log.Warn("render cache delete failed", zap.String("path", p), zap.Error(err))
		}
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, paths ...string) {
	c.InvalidatePaths(ctx, paths...)
}

func (c *RedisCache) Close() error { return c.rdb.Close() }

// variantPattern matches key+"?"+anything with glob metacharacters in key
// escaped.
func variantPattern(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteString(`\?*`)
	return b.String()
}
