package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	commoncfg "lys-mes/common/config"
	mqttcommon "lys-mes/common/mqtt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownConn = errors.New("unknown telemetry connection")
	ErrPoolClosed  = errors.New("telemetry connection pool closed")
)

// Conn 一个机台网关的 MQTT 连接；*mqttcommon.Client 满足该接口
type Conn interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
	IsConnected() bool
	Disconnect()
}

// Dialer 建立到 broker 的连接，id 为网关 ID
type Dialer func(id, broker string) (Conn, error)

// MQTTDialer 基于 common/mqtt 的 Dialer；ClientID 追加网关 ID 和随机后缀，避免多实例互踢
func MQTTDialer(cfg commoncfg.MQTTConfig, logger *zap.Logger) Dialer {
	return func(id, broker string) (Conn, error) {
		client, err := mqttcommon.NewClient(mqttcommon.Options{
			Broker:   broker,
			ClientID: fmt.Sprintf("%s-%s-%s", cfg.ClientID, id, uuid.NewString()[:8]),
			Username: cfg.Username,
			Password: cfg.Password,
		}, logger.With(zap.String("gateway_id", id)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// ConnPool 设备网关连接池
// 启动时 Init 建立全部连接，Get 时做健康检查并按需重连，退出时 Close
type ConnPool struct {
	mu      sync.Mutex
	brokers map[string]string
	conns   map[string]Conn
	dial    Dialer
	closed  bool
	logger  *zap.Logger
}

// NewConnPool 创建连接池，brokers 为 网关 ID -> broker URL
func NewConnPool(brokers map[string]string, dial Dialer, logger *zap.Logger) *ConnPool {
	b := make(map[string]string, len(brokers))
	for id, url := range brokers {
		b[id] = url
	}
	return &ConnPool{
		brokers: b,
		conns:   make(map[string]Conn, len(b)),
		dial:    dial,
		logger:  logger,
	}
}

// Init 连接全部网关；部分失败只记录日志，全部失败才返回错误
func (p *ConnPool) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	var errs []error
	for _, id := range p.sortedIDs() {
		if _, ok := p.conns[id]; ok {
			continue
		}
		conn, err := p.dial(id, p.brokers[id])
		if err != nil {
			p.logger.Warn("Failed to connect telemetry gateway",
				zap.String("gateway_id", id),
				zap.String("broker", p.brokers[id]),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("gateway %s: %w", id, err))
			continue
		}
		p.conns[id] = conn
		p.logger.Info("Telemetry gateway connected", zap.String("gateway_id", id))
	}

	if len(p.brokers) > 0 && len(p.conns) == 0 {
		return fmt.Errorf("no telemetry gateway reachable: %w", errors.Join(errs...))
	}
	return nil
}

// Get 取连接；断开的连接会被丢弃并重新建立
func (p *ConnPool) Get(id string) (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	broker, ok := p.brokers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConn, id)
	}

	if conn, ok := p.conns[id]; ok {
		if conn.IsConnected() {
			return conn, nil
		}
		p.logger.Warn("Telemetry gateway unhealthy, redialing", zap.String("gateway_id", id))
		conn.Disconnect()
		delete(p.conns, id)
	}

	conn, err := p.dial(id, broker)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gateway %s: %w", id, err)
	}
	p.conns[id] = conn
	return conn, nil
}

// IDs 已配置的网关 ID（有序）
func (p *ConnPool) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sortedIDs()
}

// Close 断开全部连接，之后 Get 返回 ErrPoolClosed
func (p *ConnPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, conn := range p.conns {
		conn.Disconnect()
		delete(p.conns, id)
	}
	p.logger.Info("Telemetry connection pool closed")
}

func (p *ConnPool) sortedIDs() []string {
	ids := make([]string, 0, len(p.brokers))
	for id := range p.brokers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
