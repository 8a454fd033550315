package repository

import (
	"context"
	"time"

	"lys-mes/internal/domain"
)

// ScheduleFilters 排程查询过滤器
type ScheduleFilters struct {
	MachineSN   string
	WorkOrderSN string
	Status      domain.ScheduleStatus
}

// ScheduleStateUpdate 状态变更；时间字段为 nil 表示保持原值
type ScheduleStateUpdate struct {
	Status              domain.ScheduleStatus
	ActualOnMachineDate *time.Time
	ActualFinishDate    *time.Time
}

// ProductionSchedulesRepository 生产排程 Repository 接口
type ProductionSchedulesRepository interface {
	// GetSchedule 获取排程，不存在返回 ErrNotFound
	GetSchedule(ctx context.Context, id int64) (*domain.ProductionSchedule, error)

	// ListSchedules 分页查询
	ListSchedules(ctx context.Context, filters *ScheduleFilters, page, size int) ([]*domain.ProductionSchedule, int, error)

	// CreateSchedule 创建排程，返回新 ID
	CreateSchedule(ctx context.Context, s *domain.ProductionSchedule) (int64, error)

	// UpdateScheduleState 更新状态及实际上机/完工时间
	UpdateScheduleState(ctx context.Context, id int64, update ScheduleStateUpdate) error
}
