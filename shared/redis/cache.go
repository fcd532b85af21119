package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// setIfNewer stores "<version>|<payload>" unless the key already holds an
// entry whose version is equal or higher. An empty payload is a tombstone.
var setIfNewer = goredis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local sep = string.find(cur, '|', 1, true)
  if sep and tonumber(string.sub(cur, 1, sep - 1)) >= tonumber(ARGV[1]) then
    return 0
  end
end
local entry = ARGV[1] .. '|' .. ARGV[2]
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], entry, 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], entry)
end
return 1
`)

// ViewCache is a versioned, JSON-backed Redis cache for one value type T.
// Keys are namespaced with prefix; ttl of 0 means keys never expire. Every
// write carries a version and loses to an entry that is already newer, so
// writers racing on one key converge on the highest version.
type ViewCache[T any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Get returns (nil, false) on a miss, a transport error, or a value that no
// longer decodes. A tombstoned key is a hit with a nil value.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("view cache read failed", zap.String("key", c.prefix+key), zap.Error(err))
		}
		return nil, false
	}
	_, payload, ok := strings.Cut(data, "|")
	if !ok {
		c.logger.Warn("view cache entry has no version", zap.String("key", c.prefix+key))
		return nil, false
	}
	if payload == "" {
		return nil, true
	}
	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		c.logger.Warn("view cache entry is corrupt", zap.String("key", c.prefix+key), zap.Error(err))
		return nil, false
	}
	return &v, true
}

// Set stores value under key at version. Write errors are logged, not
// returned.
func (c *ViewCache[T]) Set(ctx context.Context, key string, version int64, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("view cache marshal failed", zap.String("key", c.prefix+key), zap.Error(err))
		return
	}
	c.write(ctx, key, version, data)
}

// Tombstone marks key as deleted at version. Later Sets with a lower or
// equal version are ignored until the tombstone expires.
func (c *ViewCache[T]) Tombstone(ctx context.Context, key string, version int64) {
	c.write(ctx, key, version, nil)
}

func (c *ViewCache[T]) write(ctx context.Context, key string, version int64, payload []byte) {
	written, err := setIfNewer.Run(ctx, c.client, []string{c.prefix + key}, version, string(payload), c.ttl.Milliseconds()).Int()
	if err != nil {
		c.logger.Warn("view cache write failed", zap.String("key", c.prefix+key), zap.Error(err))
		return
	}
	if written == 0 {
		c.logger.Debug("view cache kept newer entry",
			zap.String("key", c.prefix+key),
			zap.Int64("version", version),
		)
	}
}
