package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScheduleNotifier 把本地排程变化同步到 SmartSchedule
type ScheduleNotifier interface {
	UpdateByEndTime(ctx context.Context, scheduleID int64, endTime time.Time) error
	UpdateByResumption(ctx context.Context, scheduleID int64, startTime, postponeTime time.Time) error
}

// UpdateByEndTimeRequest SmartSchedule updateByEndTime 请求体
type UpdateByEndTimeRequest struct {
	ProductionScheduleID int64     `json:"productionScheduleId"`
	EndTime              time.Time `json:"endTime"`
}

// UpdateByResumptionRequest SmartSchedule updateByResumption 请求体
type UpdateByResumptionRequest struct {
	ProductionScheduleID int64     `json:"productionScheduleId"`
	StartTime            time.Time `json:"startTime"`
	PostponeTime         time.Time `json:"postponeTime"`
}

// SmartScheduleResponse SmartSchedule 响应
type SmartScheduleResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// 重试间隔（resty 指数退避的起点与上限）
const (
	smartScheduleRetryWait    = 200 * time.Millisecond
	smartScheduleRetryMaxWait = 2 * time.Second
)

// SmartScheduleClient SmartSchedule HTTP 客户端
type SmartScheduleClient struct {
	httpClient *resty.Client
	timeout    time.Duration
	retryCount int
	logger     *zap.Logger
}

// NewSmartScheduleClient 创建 SmartSchedule 客户端
func NewSmartScheduleClient(baseURL string, timeout time.Duration, retryCount int, logger *zap.Logger) *SmartScheduleClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(smartScheduleRetryWait).
		SetRetryMaxWaitTime(smartScheduleRetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if retryCount < 0 {
		retryCount = 0
	}
	return &SmartScheduleClient{
		httpClient: client,
		timeout:    timeout,
		retryCount: retryCount,
		logger:     logger,
	}
}

// Budget 一次调用（含全部重试与等待）最长耗时；调用方的 ctx 超时不应短于它，否则重试没有机会执行
func (c *SmartScheduleClient) Budget() time.Duration {
	retries := time.Duration(c.retryCount)
	return c.timeout*(retries+1) + smartScheduleRetryMaxWait*retries
}

var _ ScheduleNotifier = (*SmartScheduleClient)(nil)

// UpdateByEndTime 通知新的完工时间
func (c *SmartScheduleClient) UpdateByEndTime(ctx context.Context, scheduleID int64, endTime time.Time) error {
	return c.put(ctx, "/smartSchedule/updateByEndTime", scheduleID, UpdateByEndTimeRequest{
		ProductionScheduleID: scheduleID,
		EndTime:              endTime,
	})
}

// UpdateByResumption 通知恢复生产，开始与预估完工时间一起重新锚定
func (c *SmartScheduleClient) UpdateByResumption(ctx context.Context, scheduleID int64, startTime, postponeTime time.Time) error {
	return c.put(ctx, "/smartSchedule/updateByResumption", scheduleID, UpdateByResumptionRequest{
		ProductionScheduleID: scheduleID,
		StartTime:            startTime,
		PostponeTime:         postponeTime,
	})
}

func (c *SmartScheduleClient) put(ctx context.Context, path string, scheduleID int64, body interface{}) error {
	requestID := uuid.NewString()

	var response SmartScheduleResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", requestID).
		SetBody(body).
		SetResult(&response).
		Put(path)
	if err != nil {
		c.logger.Error("SmartSchedule call failed",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Int64("schedule_id", scheduleID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrNotifierUnavailable, err)
	}

	if resp.IsError() {
		c.logger.Error("SmartSchedule returned error status",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Int64("schedule_id", scheduleID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("%w: %s returned HTTP %d", ErrNotifierUnavailable, path, resp.StatusCode())
	}

	// 空响应体视为成功
	if len(resp.Body()) > 0 && !response.Status {
		return fmt.Errorf("%w: %s rejected: %s", ErrNotifierUnavailable, path, response.Message)
	}

	c.logger.Debug("SmartSchedule notified",
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int64("schedule_id", scheduleID),
	)
	return nil
}
