package repository

import (
	"context"
	"time"

	"lys-mes/internal/domain"
)

// OngoingRepository 生产段 Repository 接口
// 写操作（CreateOpenRun / CloseRun）按排程串行化，保证同一排程最多一段 end_time 为空
type OngoingRepository interface {
	// CreateOpenRun 新建一段生产；排程不存在返回 ErrNotFound，已有未结束段返回 ErrOpenRunExists，
	// startTime 早于上一段的 end_time（或 start_time）返回 ErrRunOutOfOrder
	CreateOpenRun(ctx context.Context, scheduleID int64, startTime time.Time) (*domain.ProductionScheduleOngoing, error)

	// GetRun 按 ID 获取
	GetRun(ctx context.Context, id int64) (*domain.ProductionScheduleOngoing, error)

	// CloseRun 设置 end_time；不存在返回 ErrNotFound，已结束返回 ErrRunClosed
	CloseRun(ctx context.Context, id int64, endTime time.Time) (*domain.ProductionScheduleOngoing, error)

	// SetPostponeTime 更新预估完工时间
	SetPostponeTime(ctx context.Context, id int64, postponeTime time.Time) (*domain.ProductionScheduleOngoing, error)

	// ListRuns 某排程的全部生产段，按 start_time 升序
	ListRuns(ctx context.Context, scheduleID int64) ([]*domain.ProductionScheduleOngoing, error)

	// GetLatestRun 某排程最近一段（按 start_time），没有则返回 ErrNotFound
	GetLatestRun(ctx context.Context, scheduleID int64) (*domain.ProductionScheduleOngoing, error)

	// GetOpenRun 某排程 end_time 为空的那一段，没有则返回 ErrNotFound
	GetOpenRun(ctx context.Context, scheduleID int64) (*domain.ProductionScheduleOngoing, error)

	// DeleteRun 删除生产段，用于开工失败时撤销刚建的段
	DeleteRun(ctx context.Context, id int64) error
}
