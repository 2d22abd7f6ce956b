package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by a VectorCache when no vector is stored for the
// key and model.
var ErrCacheMiss = errors.New("embedding not cached")

const (
	defaultVectorTTL = 24 * time.Hour
	vectorKeyPrefix  = "matchscore:embedding:"
)

// VectorCache stores embeddings keyed by text hash and embedding model.
type VectorCache interface {
	Get(ctx context.Context, key, model string) ([]float32, error)
	Set(ctx context.Context, key, model string, vector []float32) error
}

// RedisVectorCache keeps embeddings in Redis hashes holding the vector JSON and
// the model that produced it.
type RedisVectorCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisVectorCache creates a cache over the given client. A non-positive ttl
// falls back to one day.
func NewRedisVectorCache(client redis.UniversalClient, ttl time.Duration) *RedisVectorCache {
	if ttl <= 0 {
		ttl = defaultVectorTTL
	}
	return &RedisVectorCache{client: client, ttl: ttl}
}

func (c *RedisVectorCache) Get(ctx context.Context, key, model string) ([]float32, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("redis client is not initialized")
	}

	vals, err := c.client.HMGet(ctx, vectorKeyPrefix+key, "vector", "model").Result()
	if err != nil {
		return nil, fmt.Errorf("get cached embedding: %w", err)
	}

	if len(vals) < 2 || vals[0] == nil {
		return nil, ErrCacheMiss
	}

	// A vector from another model is unusable.
	if cachedModel, _ := vals[1].(string); cachedModel != model {
		return nil, ErrCacheMiss
	}

	raw, ok := vals[0].(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("cached embedding %s has unexpected format", key)
	}

	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return nil, fmt.Errorf("decode cached embedding: %w", err)
	}

	return vector, nil
}

func (c *RedisVectorCache) Set(ctx context.Context, key, model string, vector []float32) error {
	if c == nil || c.client == nil {
		return errors.New("redis client is not initialized")
	}

	payload, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}

	redisKey := vectorKeyPrefix + key
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, redisKey, "vector", payload, "model", model)
	pipe.Expire(ctx, redisKey, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache embedding: %w", err)
	}
	return nil
}
