package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonredis "lys-mes/common/redis"

	"go.uber.org/zap"
)

// 待补发通知类型
const (
	NotificationUpdateByEndTime    = "updateByEndTime"
	NotificationUpdateByResumption = "updateByResumption"
)

// PendingNotification 发送失败、等待补发的 SmartSchedule 通知
type PendingNotification struct {
	Kind                 string     `json:"kind"`
	ProductionScheduleID int64      `json:"productionScheduleId"`
	EndTime              *time.Time `json:"endTime,omitempty"`
	StartTime            *time.Time `json:"startTime,omitempty"`
	PostponeTime         *time.Time `json:"postponeTime,omitempty"`
	Error                string     `json:"error,omitempty"`
	FailedAt             time.Time  `json:"failedAt"`
	Attempts             int        `json:"attempts"`
}

// ParsePendingNotification 解析 stream 中的 data 字段
func ParsePendingNotification(data string) (*PendingNotification, error) {
	var p PendingNotification
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to decode pending notification: %w", err)
	}
	switch p.Kind {
	case NotificationUpdateByEndTime:
		if p.EndTime == nil {
			return nil, fmt.Errorf("%w: %s without endTime", ErrInvalidArgument, p.Kind)
		}
	case NotificationUpdateByResumption:
		if p.StartTime == nil || p.PostponeTime == nil {
			return nil, fmt.Errorf("%w: %s without startTime/postponeTime", ErrInvalidArgument, p.Kind)
		}
	default:
		return nil, fmt.Errorf("%w: unknown notification kind %q", ErrInvalidArgument, p.Kind)
	}
	return &p, nil
}

// Send 用 notifier 重新发送
func (p *PendingNotification) Send(ctx context.Context, notifier ScheduleNotifier) error {
	switch p.Kind {
	case NotificationUpdateByEndTime:
		return notifier.UpdateByEndTime(ctx, p.ProductionScheduleID, *p.EndTime)
	case NotificationUpdateByResumption:
		return notifier.UpdateByResumption(ctx, p.ProductionScheduleID, *p.StartTime, *p.PostponeTime)
	}
	return fmt.Errorf("%w: unknown notification kind %q", ErrInvalidArgument, p.Kind)
}

// RetryQueueNotifier 发送失败时把通知写入 Redis stream，由 reconciler 补发
// 返回值仍是原始错误，调用方据此记录 notified=false
type RetryQueueNotifier struct {
	next    ScheduleNotifier
	client  *commonredis.Client
	stream  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRetryQueueNotifier 创建带补发队列的通知器
func NewRetryQueueNotifier(next ScheduleNotifier, client *commonredis.Client, stream string, logger *zap.Logger) *RetryQueueNotifier {
	return &RetryQueueNotifier{
		next:    next,
		client:  client,
		stream:  stream,
		timeout: 3 * time.Second,
		logger:  logger,
	}
}

var _ ScheduleNotifier = (*RetryQueueNotifier)(nil)

func (n *RetryQueueNotifier) UpdateByEndTime(ctx context.Context, scheduleID int64, endTime time.Time) error {
	err := n.next.UpdateByEndTime(ctx, scheduleID, endTime)
	if err != nil {
		end := endTime.UTC()
		n.Enqueue(ctx, &PendingNotification{
			Kind:                 NotificationUpdateByEndTime,
			ProductionScheduleID: scheduleID,
			EndTime:              &end,
			Error:                err.Error(),
		})
	}
	return err
}

func (n *RetryQueueNotifier) UpdateByResumption(ctx context.Context, scheduleID int64, startTime, postponeTime time.Time) error {
	err := n.next.UpdateByResumption(ctx, scheduleID, startTime, postponeTime)
	if err != nil {
		start, postpone := startTime.UTC(), postponeTime.UTC()
		n.Enqueue(ctx, &PendingNotification{
			Kind:                 NotificationUpdateByResumption,
			ProductionScheduleID: scheduleID,
			StartTime:            &start,
			PostponeTime:         &postpone,
			Error:                err.Error(),
		})
	}
	return err
}

// Enqueue 写入补发队列；请求 ctx 可能已超时，这里用独立的超时
func (n *RetryQueueNotifier) Enqueue(ctx context.Context, p *PendingNotification) {
	if p.FailedAt.IsZero() {
		p.FailedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	id, err := commonredis.PublishJSONToStream(ctx, n.client, n.stream, p)
	if err != nil {
		n.logger.Error("Failed to queue notification for retry",
			zap.String("kind", p.Kind),
			zap.Int64("schedule_id", p.ProductionScheduleID),
			zap.Error(err),
		)
		return
	}
	n.logger.Warn("Notification queued for retry",
		zap.String("kind", p.Kind),
		zap.Int64("schedule_id", p.ProductionScheduleID),
		zap.String("stream_id", id),
		zap.Int("attempts", p.Attempts),
	)
}
