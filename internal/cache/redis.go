// Package cache provides Redis-backed caches for the latest-version pointer
// and the external rule-code feed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/repository"
)

const (
	defaultPrefix   = "kodeverk:"
	externalCodeKey = "external:regelkoder"
)

// RedisCache stores small JSON values under a common key prefix.
type RedisCache struct {
	client      *redis.Client
	prefix      string
	latestTTL   time.Duration
	externalTTL time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:      client,
		prefix:      defaultPrefix,
		latestTTL:   24 * time.Hour,
		externalTTL: 15 * time.Minute,
	}
}

// WithExternalTTL sets how long a fetched external code list is reused.
func (c *RedisCache) WithExternalTTL(ttl time.Duration) *RedisCache {
	if ttl > 0 {
		c.externalTTL = ttl
	}
	return c
}

var _ repository.LatestCache = (*RedisCache)(nil)

func (c *RedisCache) latestKey(kind model.DocumentKind) string {
	return c.prefix + "latest:" + string(kind)
}

func (c *RedisCache) generationKey(kind model.DocumentKind) string {
	return c.prefix + "latest-gen:" + string(kind)
}

// setLatestScript writes the pointer hash only when the generation is
// unchanged and the stored order key does not sort at or after the new one.
var setLatestScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '0' end
if gen ~= ARGV[1] then return 0 end
local cur = redis.call('HGET', KEYS[1], 'order')
if cur and cur >= ARGV[2] then return 0 end
redis.call('HSET', KEYS[1], 'order', ARGV[2], 'info', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// GetLatest returns the cached latest-version pointer for kind.
func (c *RedisCache) GetLatest(ctx context.Context, kind model.DocumentKind) (model.VersionInfo, bool, error) {
	raw, err := c.client.HGet(ctx, c.latestKey(kind), "info").Bytes()
	if errors.Is(err, redis.Nil) {
		return model.VersionInfo{}, false, nil
	}
	if err != nil {
		return model.VersionInfo{}, false, fmt.Errorf("get latest pointer: %w", err)
	}
	var info model.VersionInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return model.VersionInfo{}, false, fmt.Errorf("unmarshal latest pointer: %w", err)
	}
	if info.Kind != kind || info.VersionID == "" {
		return model.VersionInfo{}, false, nil
	}
	return info, true, nil
}

// Generation returns the invalidation counter for kind; zero when never invalidated.
func (c *RedisCache) Generation(ctx context.Context, kind model.DocumentKind) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(kind)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get latest generation: %w", err)
	}
	return gen, nil
}

// SetLatest atomically records info as the latest version of its kind. It is
// a no-op when kind was invalidated after gen was read or a later pointer is stored.
func (c *RedisCache) SetLatest(ctx context.Context, info model.VersionInfo, gen int64) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal latest pointer: %w", err)
	}
	keys := []string{c.latestKey(info.Kind), c.generationKey(info.Kind)}
	err = setLatestScript.Run(ctx, c.client, keys,
		strconv.FormatInt(gen, 10), orderKey(info), string(raw), c.latestTTL.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("set latest pointer: %w", err)
	}
	return nil
}

// InvalidateLatest drops the pointer for kind and bumps its generation so
// listings that started earlier cannot write it back.
func (c *RedisCache) InvalidateLatest(ctx context.Context, kind model.DocumentKind) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey(kind))
		pipe.Del(ctx, c.latestKey(kind))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate latest pointer: %w", err)
	}
	return nil
}

// GetCodes returns the cached external code list.
func (c *RedisCache) GetCodes(ctx context.Context) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+externalCodeKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get external codes: %w", err)
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, false, fmt.Errorf("unmarshal external codes: %w", err)
	}
	return codes, true, nil
}

// SetCodes stores the external code list with the configured TTL.
func (c *RedisCache) SetCodes(ctx context.Context, codes []string) error {
	raw, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("marshal external codes: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+externalCodeKey, raw, c.externalTTL).Err(); err != nil {
		return fmt.Errorf("set external codes: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// orderKey sorts like the listing order: backend update time, then version id.
func orderKey(info model.VersionInfo) string {
	ns := info.UpdatedAt.UnixNano()
	if info.UpdatedAt.IsZero() || ns < 0 {
		ns = 0
	}
	return fmt.Sprintf("%020d|%s", ns, info.VersionID)
}
