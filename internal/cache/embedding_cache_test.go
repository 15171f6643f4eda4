package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/embedding"
)

func TestEmbeddingCacheRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewEmbeddingCache(client, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	want := embedding.Result{Vector: []float32{0.25, 0.5}, Model: "m", NativeDim: 2}
	require.NoError(t, c.Set(ctx, "k", want))
	assert.True(t, mr.Exists("finrag:emb:k"))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCacheSkipsFallback(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewEmbeddingCache(client, 0)
	require.NoError(t, c.Set(context.Background(), "k", embedding.Result{Vector: []float32{0}, Fallback: true}))
	assert.False(t, mr.Exists("finrag:emb:k"))
}
