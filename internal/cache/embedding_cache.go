package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"finrag/internal/embedding"
)

// EmbeddingCache keeps query embeddings in Redis so repeated searches skip
// the upstream call.
type EmbeddingCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewEmbeddingCache(client *redisv9.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &EmbeddingCache{client: client, ttl: ttl}
}

type cachedEmbedding struct {
	Vector    []float32 `json:"v"`
	Model     string    `json:"m"`
	NativeDim int       `json:"d"`
}

func (c *EmbeddingCache) Get(ctx context.Context, key string) (embedding.Result, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return embedding.Result{}, false, nil
	}
	if err != nil {
		return embedding.Result{}, false, fmt.Errorf("redis get embedding failed: %w", err)
	}

	var cached cachedEmbedding
	if err := json.Unmarshal(raw, &cached); err != nil {
		return embedding.Result{}, false, fmt.Errorf("unmarshal cached embedding failed: %w", err)
	}
	return embedding.Result{Vector: cached.Vector, Model: cached.Model, NativeDim: cached.NativeDim}, true, nil
}

func (c *EmbeddingCache) Set(ctx context.Context, key string, res embedding.Result) error {
	if res.Fallback {
		return nil
	}
	payload, err := json.Marshal(cachedEmbedding{Vector: res.Vector, Model: res.Model, NativeDim: res.NativeDim})
	if err != nil {
		return fmt.Errorf("marshal embedding cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set embedding failed: %w", err)
	}
	return nil
}

func (c *EmbeddingCache) key(k string) string {
	return "finrag:emb:" + k
}
