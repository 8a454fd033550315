package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	commonredis "lys-mes/common/redis"
	mqttcommon "lys-mes/common/mqtt"
	"lys-mes/internal/domain"
	"lys-mes/internal/repository"
	"lys-mes/internal/service"
	"lys-mes/internal/telemetry"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// ---- telemetry ----

type stubConn struct {
	mu       sync.Mutex
	handlers map[string]mqttcommon.MessageHandler
}

func (c *stubConn) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[string]mqttcommon.MessageHandler)
	}
	c.handlers[topic] = handler
	return nil
}

func (c *stubConn) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return nil
}

func (c *stubConn) IsConnected() bool { return true }
func (c *stubConn) Disconnect()       {}

func (c *stubConn) deliver(sub, topic string, payload []byte) error {
	c.mu.Lock()
	h := c.handlers[sub]
	c.mu.Unlock()
	if h == nil {
		return errors.New("not subscribed")
	}
	return h(topic, payload)
}

func TestMachineSNFromTopic(t *testing.T) {
	sn, err := machineSNFromTopic("mes/A01/telemetry")
	require.NoError(t, err)
	assert.Equal(t, "A01", sn)

	for _, bad := range []string{"mes/A01", "radar/A01/telemetry", "mes//telemetry", "mes/A01/data"} {
		_, err := machineSNFromTopic(bad)
		assert.ErrorIs(t, err, ErrInvalidTopic, bad)
	}
}

func TestMQTTConsumer_PublishesStandardizedTelemetry(t *testing.T) {
	ctx := context.Background()
	client := newRedis(t)
	machines := repository.NewMemoryMachinesRepository()
	require.NoError(t, machines.UpsertMachine(ctx, &domain.Machine{MachineSN: "A01", MachineName: "A-01", ProductionArea: "A", Status: domain.MachineStatusActive}))

	conn := &stubConn{}
	pool := telemetry.NewConnPool(map[string]string{"gw1": "tcp://gw1:1883"}, func(id, broker string) (telemetry.Conn, error) {
		return conn, nil
	}, zap.NewNop())
	require.NoError(t, pool.Init())

	c := NewMQTTConsumer(pool, client, machines, "mes/+/telemetry", "machine:telemetry:stream", 1, zap.NewNop())
	received := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return received }
	require.NoError(t, c.Start(ctx))

	err := conn.deliver("mes/+/telemetry", "mes/A01/telemetry", []byte(`{"shot_count": 1200, "cycleSecond": 14.5, "state": "RUNNING"}`))
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, "machine:telemetry:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var event domain.MachineTelemetry
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &event))
	assert.Equal(t, "A01", event.MachineSN)
	assert.Equal(t, "A", event.ProductionArea)
	assert.Equal(t, "gw1", event.GatewayID)
	require.NotNil(t, event.ShotCount)
	assert.Equal(t, int64(1200), *event.ShotCount)
	require.NotNil(t, event.CycleSecond)
	assert.Equal(t, 14.5, *event.CycleSecond)
	assert.Equal(t, "running", event.RunState)
	assert.True(t, event.ReceivedAt.Equal(received))

	c.Stop()
	assert.Error(t, conn.deliver("mes/+/telemetry", "mes/A01/telemetry", []byte(`{}`)))
}

func TestMQTTConsumer_RejectsUnknownMachineAndBadPayload(t *testing.T) {
	ctx := context.Background()
	client := newRedis(t)
	machines := repository.NewMemoryMachinesRepository()

	pool := telemetry.NewConnPool(map[string]string{"gw1": "tcp://gw1:1883"}, func(id, broker string) (telemetry.Conn, error) {
		return &stubConn{}, nil
	}, zap.NewNop())
	c := NewMQTTConsumer(pool, client, machines, "mes/+/telemetry", "machine:telemetry:stream", 1, zap.NewNop())

	assert.Error(t, c.HandleMessage(ctx, "gw1", "mes/X99/telemetry", []byte(`{}`)))
	assert.Error(t, c.HandleMessage(ctx, "gw1", "mes/X99/telemetry", []byte(`not json`)))
	assert.ErrorIs(t, c.HandleMessage(ctx, "gw1", "bad/topic", []byte(`{}`)), ErrInvalidTopic)

	n, err := client.XLen(ctx, "machine:telemetry:stream").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ---- reconciler ----

type recordingNotifier struct {
	mu    sync.Mutex
	fail  bool
	calls []int64
}

func (n *recordingNotifier) UpdateByEndTime(ctx context.Context, scheduleID int64, endTime time.Time) error {
	return n.record(scheduleID)
}

func (n *recordingNotifier) UpdateByResumption(ctx context.Context, scheduleID int64, startTime, postponeTime time.Time) error {
	return n.record(scheduleID)
}

func (n *recordingNotifier) record(id int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, id)
	if n.fail {
		return service.ErrNotifierUnavailable
	}
	return nil
}

const retryStream = "smart-schedule:retry"

func newReconciler(t *testing.T, client *redis.Client, notifier service.ScheduleNotifier, maxAttempts int) *Reconciler {
	r := NewReconciler(client, notifier, ReconcilerOptions{
		Stream:      retryStream,
		Group:       "reconciler",
		Consumer:    "c1",
		MaxAttempts: maxAttempts,
	}, zap.NewNop())
	require.NoError(t, commonredis.CreateConsumerGroup(context.Background(), client, retryStream, "reconciler"))
	return r
}

func enqueue(t *testing.T, client *redis.Client, p *service.PendingNotification) {
	_, err := commonredis.PublishJSONToStream(context.Background(), client, retryStream, p)
	require.NoError(t, err)
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	pending, err := client.XPending(context.Background(), retryStream, "reconciler").Result()
	require.NoError(t, err)
	return pending.Count
}

func TestReconciler_DeliversQueuedNotification(t *testing.T) {
	ctx := context.Background()
	client := newRedis(t)
	notifier := &recordingNotifier{}
	r := newReconciler(t, client, notifier, 3)

	end := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	enqueue(t, client, &service.PendingNotification{Kind: service.NotificationUpdateByEndTime, ProductionScheduleID: 7, EndTime: &end})

	handled, requeued, err := r.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	assert.Zero(t, requeued)
	assert.Equal(t, []int64{7}, notifier.calls)
	assert.Zero(t, pendingCount(t, client))

	handled, _, err = r.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, handled)
}

func TestReconciler_RequeuesThenDrops(t *testing.T) {
	ctx := context.Background()
	client := newRedis(t)
	notifier := &recordingNotifier{fail: true}
	r := newReconciler(t, client, notifier, 2)

	start := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	postpone := start.Add(40 * time.Hour)
	enqueue(t, client, &service.PendingNotification{
		Kind:                 service.NotificationUpdateByResumption,
		ProductionScheduleID: 9,
		StartTime:            &start,
		PostponeTime:         &postpone,
	})

	_, requeued, err := r.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	msgs, err := client.XRange(ctx, retryStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	p, err := service.ParsePendingNotification(msgs[1].Values["data"].(string))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Attempts)
	assert.NotEmpty(t, p.Error)

	// 第二次失败达到上限，丢弃
	_, requeued, err = r.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, requeued)
	assert.Len(t, notifier.calls, 2)
	assert.Zero(t, pendingCount(t, client))

	n, err := client.XLen(ctx, retryStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestReconciler_DropsMalformed(t *testing.T) {
	ctx := context.Background()
	client := newRedis(t)
	notifier := &recordingNotifier{}
	r := newReconciler(t, client, notifier, 3)

	_, err := commonredis.PublishToStream(ctx, client, retryStream, map[string]interface{}{"data": `{"kind":"bogus"}`})
	require.NoError(t, err)
	_, err = commonredis.PublishToStream(ctx, client, retryStream, map[string]interface{}{"other": "x"})
	require.NoError(t, err)

	handled, requeued, err := r.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Zero(t, requeued)
	assert.Empty(t, notifier.calls)
	assert.Zero(t, pendingCount(t, client))
}

func TestReconciler_StartStopsOnCancel(t *testing.T) {
	client := newRedis(t)
	r := NewReconciler(client, &recordingNotifier{}, ReconcilerOptions{
		Stream:   retryStream,
		Group:    "reconciler",
		Consumer: "c1",
		Block:    50 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
