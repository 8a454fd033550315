package telemetry

import (
	"errors"
	"sync"
	"testing"

	mqttcommon "lys-mes/common/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu           sync.Mutex
	id           string
	connected    bool
	disconnected bool
	handlers     map[string]mqttcommon.MessageHandler
}

func (c *fakeConn) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[string]mqttcommon.MessageHandler)
	}
	c.handlers[topic] = handler
	return nil
}

func (c *fakeConn) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return nil
}

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

type fakeDialer struct {
	mu    sync.Mutex
	fail  map[string]bool
	dials map[string]int
	conns []*fakeConn
}

func (d *fakeDialer) dial(id, broker string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dials == nil {
		d.dials = make(map[string]int)
	}
	d.dials[id]++
	if d.fail[id] {
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{id: id, connected: true}
	d.conns = append(d.conns, c)
	return c, nil
}

func TestConnPool_InitAndGet(t *testing.T) {
	d := &fakeDialer{}
	pool := NewConnPool(map[string]string{"gw2": "tcp://b:1883", "gw1": "tcp://a:1883"}, d.dial, zap.NewNop())

	require.NoError(t, pool.Init())
	assert.Equal(t, []string{"gw1", "gw2"}, pool.IDs())

	conn, err := pool.Get("gw1")
	require.NoError(t, err)
	assert.True(t, conn.IsConnected())
	assert.Equal(t, 1, d.dials["gw1"])

	_, err = pool.Get("gw9")
	assert.ErrorIs(t, err, ErrUnknownConn)
}

func TestConnPool_RedialsUnhealthy(t *testing.T) {
	d := &fakeDialer{}
	pool := NewConnPool(map[string]string{"gw1": "tcp://a:1883"}, d.dial, zap.NewNop())
	require.NoError(t, pool.Init())

	first, err := pool.Get("gw1")
	require.NoError(t, err)
	first.(*fakeConn).mu.Lock()
	first.(*fakeConn).connected = false
	first.(*fakeConn).mu.Unlock()

	second, err := pool.Get("gw1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, first.(*fakeConn).disconnected)
	assert.Equal(t, 2, d.dials["gw1"])
}

func TestConnPool_PartialInitFailure(t *testing.T) {
	d := &fakeDialer{fail: map[string]bool{"gw2": true}}
	pool := NewConnPool(map[string]string{"gw1": "tcp://a:1883", "gw2": "tcp://b:1883"}, d.dial, zap.NewNop())
	require.NoError(t, pool.Init())

	_, err := pool.Get("gw2")
	assert.Error(t, err)

	d.mu.Lock()
	d.fail["gw2"] = false
	d.mu.Unlock()
	conn, err := pool.Get("gw2")
	require.NoError(t, err)
	assert.True(t, conn.IsConnected())
}

func TestConnPool_AllFail(t *testing.T) {
	d := &fakeDialer{fail: map[string]bool{"gw1": true}}
	pool := NewConnPool(map[string]string{"gw1": "tcp://a:1883"}, d.dial, zap.NewNop())
	assert.Error(t, pool.Init())
}

func TestConnPool_Close(t *testing.T) {
	d := &fakeDialer{}
	pool := NewConnPool(map[string]string{"gw1": "tcp://a:1883", "gw2": "tcp://b:1883"}, d.dial, zap.NewNop())
	require.NoError(t, pool.Init())

	pool.Close()
	for _, c := range d.conns {
		assert.True(t, c.disconnected)
	}
	_, err := pool.Get("gw1")
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, pool.Init(), ErrPoolClosed)

	pool.Close()
}
