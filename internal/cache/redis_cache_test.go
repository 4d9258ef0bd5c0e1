package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func makeCache(t *testing.T) (CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "test:", slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := makeCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", payload{Name: "a", Count: 2}, time.Minute))
	assert.True(t, mr.Exists("test:k1"))

	var got payload
	require.NoError(t, c.Get(ctx, "k1", &got))
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
}

func TestRedisCache_MissAndExpiry(t *testing.T) {
	c, mr := makeCache(t)
	ctx := context.Background()

	var got payload
	assert.ErrorIs(t, c.Get(ctx, "missing", &got), ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "short", payload{Name: "x"}, time.Second))
	mr.FastForward(2 * time.Second)
	assert.ErrorIs(t, c.Get(ctx, "short", &got), ErrCacheMiss)
}

func TestRedisCache_CorruptEntryIsAMiss(t *testing.T) {
	c, mr := makeCache(t)
	require.NoError(t, mr.Set("test:bad", "{not json"))

	var got payload
	assert.ErrorIs(t, c.Get(context.Background(), "bad", &got), ErrCacheMiss)
	assert.False(t, mr.Exists("test:bad"))
}

func TestRedisCache_DeletePattern(t *testing.T) {
	c, mr := makeCache(t)
	ctx := context.Background()

	for _, k := range []string{"questions:a1", "questions:a2", "sandbox:x"} {
		require.NoError(t, c.Set(ctx, k, payload{Name: k}, time.Minute))
	}

	require.NoError(t, c.DeletePattern(ctx, "questions:*"))
	assert.False(t, mr.Exists("test:questions:a1"))
	assert.False(t, mr.Exists("test:questions:a2"))
	assert.True(t, mr.Exists("test:sandbox:x"))

	require.NoError(t, c.Delete(ctx, "sandbox:x"))
	assert.False(t, mr.Exists("test:sandbox:x"))
}
