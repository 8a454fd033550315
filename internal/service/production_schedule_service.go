package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lys-mes/internal/domain"
	"lys-mes/internal/repository"

	"go.uber.org/zap"
)

// ProductionScheduleService 生产排程服务接口
type ProductionScheduleService interface {
	// 创建排程：计算产能与工作日，按假日推算计划完工时间
	CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*CreateScheduleResponse, error)
	GetSchedule(ctx context.Context, id int64) (*domain.ProductionSchedule, error)
	ListSchedules(ctx context.Context, req ListSchedulesRequest) (*ListSchedulesResponse, error)
	// 手动更新状态（延迟 / 延迟完成等由外部判定的状态）
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*domain.ProductionSchedule, error)
}

type productionScheduleService struct {
	schedules repository.ProductionSchedulesRepository
	machines  repository.MachinesRepository
	provider  CalendarProvider
	logger    *zap.Logger
}

// NewProductionScheduleService 创建生产排程服务
func NewProductionScheduleService(
	schedules repository.ProductionSchedulesRepository,
	machines repository.MachinesRepository,
	provider CalendarProvider,
	logger *zap.Logger,
) ProductionScheduleService {
	return &productionScheduleService{
		schedules: schedules,
		machines:  machines,
		provider:  provider,
		logger:    logger,
	}
}

// CreateScheduleRequest 创建排程请求
type CreateScheduleRequest struct {
	MachineSN         string    `json:"machineSN"`
	WorkOrderSN       string    `json:"workOrderSN"`
	WorkOrderQuantity int64     `json:"workOrderQuantity"`
	MoldingSecond     float64   `json:"moldingSecond"`
	PlanOnMachineDate time.Time `json:"planOnMachineDate"`
}

// CreateScheduleResponse 创建排程响应
type CreateScheduleResponse struct {
	Schedule *domain.ProductionSchedule `json:"schedule"`
	Success  bool                       `json:"success"`
}

// ListSchedulesRequest 排程列表请求
type ListSchedulesRequest struct {
	MachineSN   string
	WorkOrderSN string
	Status      domain.ScheduleStatus
	Page        int
	Size        int
}

// ListSchedulesResponse 排程列表响应
type ListSchedulesResponse struct {
	Items []*domain.ProductionSchedule `json:"items"`
	Total int                          `json:"total"`
}

// UpdateStatusRequest 状态更新请求
type UpdateStatusRequest struct {
	ID     int64
	Status domain.ScheduleStatus
}

func (s *productionScheduleService) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*CreateScheduleResponse, error) {
	req.MachineSN = strings.TrimSpace(req.MachineSN)
	req.WorkOrderSN = strings.TrimSpace(req.WorkOrderSN)
	if req.MachineSN == "" {
		return nil, fmt.Errorf("%w: machine_sn is required", ErrInvalidArgument)
	}
	if req.WorkOrderSN == "" {
		return nil, fmt.Errorf("%w: work_order_sn is required", ErrInvalidArgument)
	}
	if req.WorkOrderQuantity <= 0 {
		return nil, fmt.Errorf("%w: work_order_quantity must be > 0", ErrInvalidArgument)
	}
	if req.PlanOnMachineDate.IsZero() {
		return nil, fmt.Errorf("%w: plan_on_machine_date is required", ErrInvalidArgument)
	}

	hourly := domain.HourlyCapacity(req.MoldingSecond)
	if hourly <= 0 {
		return nil, fmt.Errorf("%w: molding_second %.2f gives hourly capacity %d", ErrInvalidCapacity, req.MoldingSecond, hourly)
	}

	if _, err := s.machines.GetMachine(ctx, req.MachineSN); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMachineNotFound, req.MachineSN)
		}
		return nil, fmt.Errorf("failed to get machine: %w", err)
	}

	daily := domain.DailyCapacity(hourly)
	workDays := domain.WorkDays(req.WorkOrderQuantity, daily)

	planFinish, err := ShiftByHoliday(ctx, s.provider, req.PlanOnMachineDate, workDays, nil)
	if err != nil {
		return nil, err
	}

	schedule := &domain.ProductionSchedule{
		MachineSN:         req.MachineSN,
		WorkOrderSN:       req.WorkOrderSN,
		WorkOrderQuantity: req.WorkOrderQuantity,
		MoldingSecond:     req.MoldingSecond,
		HourlyCapacity:    hourly,
		DailyCapacity:     daily,
		WorkDays:          workDays,
		PlanOnMachineDate: req.PlanOnMachineDate,
		PlanFinishDate:    planFinish,
		Status:            domain.ScheduleStatusNotYetOnMachine,
	}
	if _, err := s.schedules.CreateSchedule(ctx, schedule); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMachineNotFound, req.MachineSN)
		}
		return nil, fmt.Errorf("failed to create production schedule: %w", err)
	}

	s.logger.Info("Production schedule created",
		zap.Int64("schedule_id", schedule.ID),
		zap.String("machine_sn", schedule.MachineSN),
		zap.String("work_order_sn", schedule.WorkOrderSN),
		zap.Int("work_days", workDays),
		zap.Time("plan_finish_date", planFinish),
	)

	return &CreateScheduleResponse{Schedule: schedule, Success: true}, nil
}

func (s *productionScheduleService) GetSchedule(ctx context.Context, id int64) (*domain.ProductionSchedule, error) {
	schedule, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		return nil, scheduleErr(err)
	}
	return schedule, nil
}

func (s *productionScheduleService) ListSchedules(ctx context.Context, req ListSchedulesRequest) (*ListSchedulesResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, req.Status)
	}
	items, total, err := s.schedules.ListSchedules(ctx, &repository.ScheduleFilters{
		MachineSN:   req.MachineSN,
		WorkOrderSN: req.WorkOrderSN,
		Status:      req.Status,
	}, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list production schedules: %w", err)
	}
	if items == nil {
		items = []*domain.ProductionSchedule{}
	}
	return &ListSchedulesResponse{Items: items, Total: total}, nil
}

func (s *productionScheduleService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*domain.ProductionSchedule, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, req.Status)
	}
	current, err := s.schedules.GetSchedule(ctx, req.ID)
	if err != nil {
		return nil, scheduleErr(err)
	}
	if current.Status.Terminal() && current.Status != req.Status {
		return nil, fmt.Errorf("%w: schedule %d is %s", ErrScheduleFinished, req.ID, current.Status)
	}
	if err := s.schedules.UpdateScheduleState(ctx, req.ID, repository.ScheduleStateUpdate{Status: req.Status}); err != nil {
		return nil, scheduleErr(err)
	}
	current.Status = req.Status
	return current, nil
}
