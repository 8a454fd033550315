package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	commonredis "lys-mes/common/redis"
	"lys-mes/internal/domain"
	"lys-mes/internal/repository"
	"lys-mes/internal/telemetry"

	"go.uber.org/zap"
)

// ErrInvalidTopic 主题不是 mes/{machine_sn}/telemetry
var ErrInvalidTopic = errors.New("invalid telemetry topic")

// MQTTConsumer 订阅各网关的机台遥测，标准化后写入 Redis Streams
type MQTTConsumer struct {
	pool        *telemetry.ConnPool
	redisClient *commonredis.Client
	machines    repository.MachinesRepository
	topic       string
	stream      string
	qos         byte
	now         func() time.Time
	logger      *zap.Logger

	subscribed []string
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	pool *telemetry.ConnPool,
	redisClient *commonredis.Client,
	machines repository.MachinesRepository,
	topic, stream string,
	qos byte,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		pool:        pool,
		redisClient: redisClient,
		machines:    machines,
		topic:       topic,
		stream:      stream,
		qos:         qos,
		now:         time.Now,
		logger:      logger,
	}
}

// Start 在每个网关上订阅遥测主题；一个都订阅不上才返回错误
func (c *MQTTConsumer) Start(ctx context.Context) error {
	var errs []error
	for _, id := range c.pool.IDs() {
		conn, err := c.pool.Get(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		gatewayID := id
		err = conn.Subscribe(c.topic, c.qos, func(topic string, payload []byte) error {
			return c.HandleMessage(ctx, gatewayID, topic, payload)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("gateway %s: %w", id, err))
			continue
		}
		c.subscribed = append(c.subscribed, id)
	}

	if len(c.subscribed) == 0 {
		return fmt.Errorf("failed to subscribe to telemetry topic %s: %w", c.topic, errors.Join(errs...))
	}
	for _, err := range errs {
		c.logger.Warn("Telemetry gateway not subscribed", zap.Error(err))
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.topic),
		zap.Strings("gateways", c.subscribed),
	)
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() {
	for _, id := range c.subscribed {
		conn, err := c.pool.Get(id)
		if err != nil {
			continue
		}
		if err := conn.Unsubscribe(c.topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.String("gateway_id", id), zap.Error(err))
		}
	}
	c.subscribed = nil
	c.logger.Info("MQTT consumer stopped")
}

// HandleMessage 处理一条遥测消息
// 主题格式: mes/{machine_sn}/telemetry
func (c *MQTTConsumer) HandleMessage(ctx context.Context, gatewayID, topic string, payload []byte) error {
	machineSN, err := machineSNFromTopic(topic)
	if err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal telemetry from %s: %w", machineSN, err)
	}

	machine, err := c.machines.GetMachine(ctx, machineSN)
	if err != nil {
		if repository.IsNotFound(err) {
			c.logger.Warn("Telemetry from unknown machine", zap.String("machine_sn", machineSN))
			return fmt.Errorf("machine not found: %s", machineSN)
		}
		return fmt.Errorf("failed to get machine %s: %w", machineSN, err)
	}

	event := standardize(machine, gatewayID, topic, raw, c.now().UTC())

	streamID, err := commonredis.PublishJSONToStream(ctx, c.redisClient, c.stream, event)
	if err != nil {
		c.logger.Error("Failed to publish to Redis Streams",
			zap.String("stream", c.stream),
			zap.String("machine_sn", machineSN),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	c.logger.Debug("Published machine telemetry",
		zap.String("machine_sn", machineSN),
		zap.String("stream", c.stream),
		zap.String("stream_id", streamID),
	)
	return nil
}

func machineSNFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "mes" || parts[2] != "telemetry" || parts[1] == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return parts[1], nil
}

// standardize 提取常用字段，兼容网关的两种命名
func standardize(m *domain.Machine, gatewayID, topic string, raw map[string]any, receivedAt time.Time) *domain.MachineTelemetry {
	event := &domain.MachineTelemetry{
		MachineSN:      m.MachineSN,
		MachineName:    m.MachineName,
		ProductionArea: m.ProductionArea,
		GatewayID:      gatewayID,
		Topic:          topic,
		Raw:            raw,
		ReceivedAt:     receivedAt,
	}
	if v, ok := number(raw, "shotCount", "shot_count"); ok {
		n := int64(v)
		event.ShotCount = &n
	}
	if v, ok := number(raw, "cycleSecond", "cycle_second"); ok {
		event.CycleSecond = &v
	}
	for _, k := range []string{"runState", "run_state", "state"} {
		if s, ok := raw[k].(string); ok && s != "" {
			event.RunState = strings.ToLower(s)
			break
		}
	}
	return event
}

func number(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := raw[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}
