package consumer

import (
	"context"
	"fmt"
	"time"

	commonredis "lys-mes/common/redis"
	"lys-mes/internal/service"

	"go.uber.org/zap"
)

// ReconcilerOptions 补发队列消费参数
type ReconcilerOptions struct {
	Stream      string
	Group       string
	Consumer    string
	BatchSize   int64
	Block       time.Duration
	MaxAttempts int // 超过后丢弃并记录 Error 日志
	SendTimeout time.Duration
	RetryDelay  time.Duration // 有消息重新入队时，下一轮前等待
}

// Reconciler 消费 smart-schedule:retry，重新发送失败的 SmartSchedule 通知
type Reconciler struct {
	redisClient *commonredis.Client
	notifier    service.ScheduleNotifier
	opts        ReconcilerOptions
	logger      *zap.Logger
}

// NewReconciler 创建补发消费者
func NewReconciler(redisClient *commonredis.Client, notifier service.ScheduleNotifier, opts ReconcilerOptions, logger *zap.Logger) *Reconciler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &Reconciler{
		redisClient: redisClient,
		notifier:    notifier,
		opts:        opts,
		logger:      logger,
	}
}

// Start 创建消费者组并循环消费，ctx 取消后返回
func (r *Reconciler) Start(ctx context.Context) error {
	if err := commonredis.CreateConsumerGroup(ctx, r.redisClient, r.opts.Stream, r.opts.Group); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", r.opts.Stream, err)
	}

	r.logger.Info("Reconciler started",
		zap.String("stream", r.opts.Stream),
		zap.String("consumer_group", r.opts.Group),
		zap.String("consumer_name", r.opts.Consumer),
	)

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, requeued, err := r.ProcessOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("Failed to consume retry stream", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		if requeued > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.opts.RetryDelay):
			}
		}
	}
}

// ProcessOnce 读取一批消息并处理，返回读到的条数和重新入队的条数
// 每条消息都会 Ack；补发失败时以 attempts+1 重新入队
func (r *Reconciler) ProcessOnce(ctx context.Context) (handled, requeued int, err error) {
	messages, err := commonredis.ReadFromStream(ctx, r.redisClient, r.opts.Stream, r.opts.Group, r.opts.Consumer, r.opts.BatchSize, r.opts.Block)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read from stream %s: %w", r.opts.Stream, err)
	}

	for _, msg := range messages {
		if r.handle(ctx, msg) {
			requeued++
		}
		if err := commonredis.Ack(ctx, r.redisClient, r.opts.Stream, r.opts.Group, msg.ID); err != nil {
			return handled, requeued, fmt.Errorf("failed to ack %s: %w", msg.ID, err)
		}
		handled++
	}
	return handled, requeued, nil
}

// handle 返回是否重新入队
func (r *Reconciler) handle(ctx context.Context, msg commonredis.StreamMessage) bool {
	data, ok := msg.Data()
	if !ok {
		r.logger.Error("Retry message without data field, dropped", zap.String("message_id", msg.ID))
		return false
	}
	p, err := service.ParsePendingNotification(data)
	if err != nil {
		r.logger.Error("Malformed retry message, dropped", zap.String("message_id", msg.ID), zap.Error(err))
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.opts.SendTimeout)
	err = p.Send(sendCtx, r.notifier)
	cancel()
	if err == nil {
		r.logger.Info("Notification delivered on retry",
			zap.String("kind", p.Kind),
			zap.Int64("schedule_id", p.ProductionScheduleID),
			zap.Int("attempts", p.Attempts+1),
		)
		return false
	}

	p.Attempts++
	p.Error = err.Error()
	p.FailedAt = time.Now().UTC()
	if p.Attempts >= r.opts.MaxAttempts {
		r.logger.Error("Notification dropped after max attempts",
			zap.String("kind", p.Kind),
			zap.Int64("schedule_id", p.ProductionScheduleID),
			zap.Int("attempts", p.Attempts),
			zap.Error(err),
		)
		return false
	}

	if _, err := commonredis.PublishJSONToStream(ctx, r.redisClient, r.opts.Stream, p); err != nil {
		r.logger.Error("Failed to requeue notification",
			zap.String("kind", p.Kind),
			zap.Int64("schedule_id", p.ProductionScheduleID),
			zap.Error(err),
		)
		return false
	}
	r.logger.Warn("Notification retry failed, requeued",
		zap.String("kind", p.Kind),
		zap.Int64("schedule_id", p.ProductionScheduleID),
		zap.Int("attempts", p.Attempts),
		zap.String("error_kind", service.ErrorKind(err)),
	)
	return true
}
