package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublishJSONToStream_ReadWithGroup(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "test:stream", "g1"))
	// 组已存在不报错
	require.NoError(t, CreateConsumerGroup(ctx, client, "test:stream", "g1"))

	id, err := PublishJSONToStream(ctx, client, "test:stream", map[string]any{"machine_sn": "A01", "count": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := ReadFromStream(ctx, client, "test:stream", "g1", "c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)

	data, ok := msgs[0].Data()
	require.True(t, ok)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	assert.Equal(t, "A01", decoded["machine_sn"])

	require.NoError(t, Ack(ctx, client, "test:stream", "g1", id))
	pending, err := client.XPending(ctx, "test:stream", "g1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestStringify(t *testing.T) {
	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, time.FixedZone("CST", 8*3600))
	cases := []struct {
		in   any
		want string
	}{
		{"x", "x"},
		{42, "42"},
		{int64(7), "7"},
		{2.5, "2.5"},
		{true, "true"},
		{ts, "2024-06-01T00:00:00Z"},
		{[]int{1, 2}, "[1,2]"},
	}
	for _, c := range cases {
		got, err := stringify(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}
