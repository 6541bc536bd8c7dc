package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultPrefix = "tlm_cache:"

// Store is the subset of the redis client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisResponseCache wraps a Sender and keeps successful responses in Redis.
// Cache errors are logged and never fail a prompt.
type RedisResponseCache struct {
	next      tlm.Sender
	store     Store
	prefix    string
	namespace string
	ttl       time.Duration
	logger    *zerolog.Logger
}

// NewRedisResponseCache caches responses of next. namespace separates entries
// produced under different settings, e.g. provider and quality preset.
func NewRedisResponseCache(next tlm.Sender, store Store, namespace string, ttl time.Duration, logger *zerolog.Logger) *RedisResponseCache {
	return &RedisResponseCache{
		next:      next,
		store:     store,
		prefix:    DefaultPrefix,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger,
	}
}

func (c *RedisResponseCache) Send(ctx context.Context, prompt string) (*models.Response, error) {
	key := c.key(prompt)

	cached, err := c.store.Get(ctx, key).Result()
	switch {
	case err == nil:
		var resp models.Response
		if err := json.Unmarshal([]byte(cached), &resp); err == nil && resp.Validate() == nil {
			c.logger.Debug().Str("key", key).Msg("response cache hit")
			return &resp, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding unreadable cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Msg("response cache lookup failed")
	}

	resp, err := c.next.Send(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if resp.Validate() != nil {
		return resp, nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return resp, nil
	}
	if err := c.store.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("response cache store failed")
	}

	return resp, nil
}

func (c *RedisResponseCache) key(prompt string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + prompt))
	return c.prefix + hex.EncodeToString(sum[:])
}
