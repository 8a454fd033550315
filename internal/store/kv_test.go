package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, NewRedisKV(c)
}

func TestRedisKV_GetSetMiss(t *testing.T) {
	mr, kv := setupKV(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "calendar:window:2024-01-01:35")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "calendar:window:2024-01-01:35", `{"status":true}`, time.Minute))
	v, err := kv.Get(ctx, "calendar:window:2024-01-01:35")
	require.NoError(t, err)
	assert.Equal(t, `{"status":true}`, v)

	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "calendar:window:2024-01-01:35")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestDeletePattern(t *testing.T) {
	_, kv := setupKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "calendar:window:2024-01-01:7", "a", 0))
	require.NoError(t, kv.Set(ctx, "calendar:window:2024-02-01:14", "b", 0))
	require.NoError(t, kv.Set(ctx, "other:key", "c", 0))

	n, err := DeletePattern(ctx, kv, "calendar:window:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := kv.ScanKeys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"other:key"}, keys)

	n, err = DeletePattern(ctx, kv, "calendar:window:*")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
