package service

import (
	"context"
	"testing"
	"time"

	commonredis "lys-mes/common/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRetryQueueNotifier_QueuesFailures(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	const stream = "smart-schedule:retry"
	require.NoError(t, commonredis.CreateConsumerGroup(ctx, client, stream, "g"))

	inner := &fakeNotifier{fail: true}
	n := NewRetryQueueNotifier(inner, client, stream, zap.NewNop())

	end := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))
	err := n.UpdateByEndTime(ctx, 7, end)
	assert.ErrorIs(t, err, ErrNotifierUnavailable)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	err = n.UpdateByResumption(ctx, 8, start, start.Add(4*time.Hour))
	assert.ErrorIs(t, err, ErrNotifierUnavailable)

	msgs, err := commonredis.ReadFromStream(ctx, client, stream, "g", "c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	data, ok := msgs[0].Data()
	require.True(t, ok)
	p, err := ParsePendingNotification(data)
	require.NoError(t, err)
	assert.Equal(t, NotificationUpdateByEndTime, p.Kind)
	assert.Equal(t, int64(7), p.ProductionScheduleID)
	assert.True(t, end.Equal(*p.EndTime))
	assert.NotEmpty(t, p.Error)

	data, _ = msgs[1].Data()
	p, err = ParsePendingNotification(data)
	require.NoError(t, err)
	assert.Equal(t, NotificationUpdateByResumption, p.Kind)

	// 补发
	inner.fail = false
	require.NoError(t, p.Send(ctx, inner))
	calls := inner.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, int64(8), last.ScheduleID)
	assert.True(t, start.Add(4*time.Hour).Equal(last.PostponeTime))
}

func TestRetryQueueNotifier_SuccessNotQueued(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	n := NewRetryQueueNotifier(&fakeNotifier{}, client, "smart-schedule:retry", zap.NewNop())
	require.NoError(t, n.UpdateByEndTime(ctx, 7, time.Now()))

	length, err := client.XLen(ctx, "smart-schedule:retry").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)
}

func TestParsePendingNotification_Invalid(t *testing.T) {
	_, err := ParsePendingNotification(`not json`)
	assert.Error(t, err)

	_, err = ParsePendingNotification(`{"kind":"updateByEndTime","productionScheduleId":1}`)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ParsePendingNotification(`{"kind":"other","productionScheduleId":1}`)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
