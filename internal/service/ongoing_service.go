package service

import (
	"context"
	"fmt"
	"time"

	"lys-mes/internal/domain"
	"lys-mes/internal/repository"

	"go.uber.org/zap"
)

// Clock 当前时间，测试中可替换
type Clock func() time.Time

const discardTimeout = 5 * time.Second

// OngoingService 生产段服务接口
//
// 生命周期：idle -> running(CreateRun) -> paused(CloseRun) -> running(再次 CreateRun，恢复) -> finished。
// 生产段结束后不能重开，恢复总是新建一段。本地状态先提交，再尽力通知 SmartSchedule。
type OngoingService interface {
	// 新建生产段
	CreateRun(ctx context.Context, req CreateRunRequest) (*RunResponse, error)
	// 结束生产段并通知新的结束时间
	CloseRun(ctx context.Context, req CloseRunRequest) (*RunResponse, error)
	// 重新计算预估完工时间
	RecomputePostpone(ctx context.Context, req RecomputePostponeRequest) (*RunResponse, error)
	ListRuns(ctx context.Context, scheduleID int64) ([]*domain.ProductionScheduleOngoing, error)
	// 当前段（最近开始的一段）
	GetCurrentRun(ctx context.Context, scheduleID int64) (*domain.ProductionScheduleOngoing, error)

	// 上机或恢复生产
	StartSchedule(ctx context.Context, req StartScheduleRequest) (*ScheduleRunResponse, error)
	// 暂停生产
	PauseSchedule(ctx context.Context, req PauseScheduleRequest) (*ScheduleRunResponse, error)
	// 完工
	FinishSchedule(ctx context.Context, req FinishScheduleRequest) (*ScheduleRunResponse, error)
}

type ongoingService struct {
	runs          repository.OngoingRepository
	schedules     repository.ProductionSchedulesRepository
	notifier      ScheduleNotifier
	notifyTimeout time.Duration
	now           Clock
	logger        *zap.Logger
}

// NewOngoingService 创建生产段服务；notifier 为 nil 时不通知，clock 为 nil 时用 time.Now
func NewOngoingService(
	runs repository.OngoingRepository,
	schedules repository.ProductionSchedulesRepository,
	notifier ScheduleNotifier,
	notifyTimeout time.Duration,
	clock Clock,
	logger *zap.Logger,
) OngoingService {
	if clock == nil {
		clock = time.Now
	}
	return &ongoingService{
		runs:          runs,
		schedules:     schedules,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		now:           clock,
		logger:        logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// CreateRunRequest 新建生产段请求
type CreateRunRequest struct {
	ProductionScheduleID int64     `json:"productionScheduleId"`
	StartTime            time.Time `json:"startTime"` // 为空取当前时间
}

// CloseRunRequest 结束生产段请求
type CloseRunRequest struct {
	ID      int64     `json:"id"`
	EndTime time.Time `json:"endTime"` // 为空取当前时间
}

// RecomputePostponeRequest 预估完工时间计算请求
type RecomputePostponeRequest struct {
	ID                 int64     `json:"id"`
	UnfinishedQuantity int64     `json:"unfinishedQuantity"`
	HourlyCapacity     int64     `json:"hourlyCapacity"`
	PlanFinishDate     time.Time `json:"planFinishDate"` // 为空取排程的计划完工时间
	IsResume           bool      `json:"isResume"`
	StartTime          time.Time `json:"startTime"` // 为空取该段的开始时间
}

// RunResponse 生产段操作响应
type RunResponse struct {
	Run     *domain.ProductionScheduleOngoing `json:"run"`
	Success bool                              `json:"success"`
	// Notified 需要的通知全部送达（无需通知时为 true）
	Notified bool `json:"notified"`
}

// StartScheduleRequest 上机 / 恢复生产请求
type StartScheduleRequest struct {
	ScheduleID int64     `json:"scheduleId"`
	StartTime  time.Time `json:"startTime"`
	// UnfinishedQuantity 未完成数量；首次上机为空时取制令数量，恢复生产时必填
	UnfinishedQuantity *int64 `json:"unfinishedQuantity"`
}

// PauseScheduleRequest 暂停请求
type PauseScheduleRequest struct {
	ScheduleID int64     `json:"scheduleId"`
	EndTime    time.Time `json:"endTime"`
}

// FinishScheduleRequest 完工请求
type FinishScheduleRequest struct {
	ScheduleID int64     `json:"scheduleId"`
	EndTime    time.Time `json:"endTime"`
}

// ScheduleRunResponse 排程级操作响应
type ScheduleRunResponse struct {
	Schedule *domain.ProductionSchedule       `json:"schedule"`
	Run      *domain.ProductionScheduleOngoing `json:"run"`
	Success  bool                              `json:"success"`
	Notified bool                              `json:"notified"`
}

// ============================================
// 生产段
// ============================================

func (s *ongoingService) CreateRun(ctx context.Context, req CreateRunRequest) (*RunResponse, error) {
	if req.ProductionScheduleID <= 0 {
		return nil, fmt.Errorf("%w: production_schedule_id is required", ErrInvalidArgument)
	}
	if req.StartTime.IsZero() {
		req.StartTime = s.now()
	}

	schedule, err := s.schedules.GetSchedule(ctx, req.ProductionScheduleID)
	if err != nil {
		return nil, scheduleErr(err)
	}
	if schedule.Status.Terminal() {
		return nil, fmt.Errorf("%w: schedule %d is %s", ErrScheduleFinished, schedule.ID, schedule.Status)
	}

	run, err := s.runs.CreateOpenRun(ctx, req.ProductionScheduleID, req.StartTime)
	if err != nil {
		return nil, scheduleErr(err)
	}

	s.logger.Info("Run created",
		zap.Int64("run_id", run.ID),
		zap.Int64("schedule_id", run.ProductionScheduleID),
		zap.Time("start_time", run.StartTime),
	)
	return &RunResponse{Run: run, Success: true, Notified: true}, nil
}

func (s *ongoingService) CloseRun(ctx context.Context, req CloseRunRequest) (*RunResponse, error) {
	if req.ID <= 0 {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidArgument)
	}
	if req.EndTime.IsZero() {
		req.EndTime = s.now()
	}

	current, err := s.runs.GetRun(ctx, req.ID)
	if err != nil {
		return nil, scheduleErr(err)
	}
	if !current.Open() {
		return nil, fmt.Errorf("%w: run %d", ErrRunClosed, req.ID)
	}
	if req.EndTime.Before(current.StartTime) {
		return nil, fmt.Errorf("%w: end_time is before start_time", ErrInvalidArgument)
	}

	run, err := s.runs.CloseRun(ctx, req.ID, req.EndTime)
	if err != nil {
		return nil, scheduleErr(err)
	}

	s.logger.Info("Run closed",
		zap.Int64("run_id", run.ID),
		zap.Int64("schedule_id", run.ProductionScheduleID),
		zap.Time("end_time", *run.EndTime),
	)

	notified := s.notify(ctx, NotificationUpdateByEndTime, run.ProductionScheduleID, func(ctx context.Context) error {
		return s.notifier.UpdateByEndTime(ctx, run.ProductionScheduleID, req.EndTime)
	})
	return &RunResponse{Run: run, Success: true, Notified: notified}, nil
}

func (s *ongoingService) RecomputePostpone(ctx context.Context, req RecomputePostponeRequest) (*RunResponse, error) {
	if req.HourlyCapacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, req.HourlyCapacity)
	}
	if req.UnfinishedQuantity < 0 {
		return nil, fmt.Errorf("%w: unfinished_quantity must be >= 0", ErrInvalidArgument)
	}
	if req.ID <= 0 {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidArgument)
	}

	current, err := s.runs.GetRun(ctx, req.ID)
	if err != nil {
		return nil, scheduleErr(err)
	}
	if req.PlanFinishDate.IsZero() {
		schedule, err := s.schedules.GetSchedule(ctx, current.ProductionScheduleID)
		if err != nil {
			return nil, scheduleErr(err)
		}
		req.PlanFinishDate = schedule.PlanFinishDate
	}
	if req.StartTime.IsZero() {
		req.StartTime = current.StartTime
	}

	run, postpone, err := s.setPostpone(ctx, req.ID, req.UnfinishedQuantity, req.HourlyCapacity)
	if err != nil {
		return nil, err
	}
	notified := s.notifyPostpone(ctx, run, postpone, req.PlanFinishDate, req.IsResume, req.StartTime)
	return &RunResponse{Run: run, Success: true, Notified: notified}, nil
}

// setPostpone 计算并保存预估完工时间，不通知
func (s *ongoingService) setPostpone(ctx context.Context, runID, unfinished, hourly int64) (*domain.ProductionScheduleOngoing, time.Time, error) {
	postpone := domain.PostponeTime(s.now(), unfinished, hourly)
	run, err := s.runs.SetPostponeTime(ctx, runID, postpone)
	if err != nil {
		return nil, time.Time{}, scheduleErr(err)
	}

	s.logger.Info("Postpone time recomputed",
		zap.Int64("run_id", run.ID),
		zap.Int64("schedule_id", run.ProductionScheduleID),
		zap.Int64("unfinished_quantity", unfinished),
		zap.Int64("hourly_capacity", hourly),
		zap.Time("postpone_time", postpone),
	)
	return run, postpone, nil
}

// notifyPostpone 超出计划完工时通知新的结束时间，恢复生产时通知重新锚定
func (s *ongoingService) notifyPostpone(ctx context.Context, run *domain.ProductionScheduleOngoing, postpone, planFinish time.Time, isResume bool, startTime time.Time) bool {
	notified := true
	if postpone.After(planFinish) {
		notified = s.notify(ctx, NotificationUpdateByEndTime, run.ProductionScheduleID, func(ctx context.Context) error {
			return s.notifier.UpdateByEndTime(ctx, run.ProductionScheduleID, postpone)
		}) && notified
	}
	if isResume {
		notified = s.notify(ctx, NotificationUpdateByResumption, run.ProductionScheduleID, func(ctx context.Context) error {
			return s.notifier.UpdateByResumption(ctx, run.ProductionScheduleID, startTime, postpone)
		}) && notified
	}
	return notified
}

func (s *ongoingService) ListRuns(ctx context.Context, scheduleID int64) ([]*domain.ProductionScheduleOngoing, error) {
	if _, err := s.schedules.GetSchedule(ctx, scheduleID); err != nil {
		return nil, scheduleErr(err)
	}
	runs, err := s.runs.ListRuns(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (s *ongoingService) GetCurrentRun(ctx context.Context, scheduleID int64) (*domain.ProductionScheduleOngoing, error) {
	run, err := s.runs.GetLatestRun(ctx, scheduleID)
	if err != nil {
		return nil, scheduleErr(err)
	}
	return run, nil
}

// ============================================
// 排程级状态切换
// ============================================

func (s *ongoingService) StartSchedule(ctx context.Context, req StartScheduleRequest) (*ScheduleRunResponse, error) {
	if req.StartTime.IsZero() {
		req.StartTime = s.now()
	}

	schedule, err := s.schedules.GetSchedule(ctx, req.ScheduleID)
	if err != nil {
		return nil, scheduleErr(err)
	}
	if schedule.Status.Terminal() {
		return nil, fmt.Errorf("%w: schedule %d is %s", ErrScheduleFinished, schedule.ID, schedule.Status)
	}
	if schedule.HourlyCapacity <= 0 {
		return nil, fmt.Errorf("%w: schedule %d has hourly capacity %d", ErrInvalidCapacity, schedule.ID, schedule.HourlyCapacity)
	}

	isResume := schedule.Status == domain.ScheduleStatusPaused
	unfinished := schedule.WorkOrderQuantity
	switch {
	case req.UnfinishedQuantity != nil:
		unfinished = *req.UnfinishedQuantity
	case isResume:
		return nil, fmt.Errorf("%w: unfinished_quantity is required to resume", ErrInvalidArgument)
	}
	if unfinished < 0 {
		return nil, fmt.Errorf("%w: unfinished_quantity must be >= 0", ErrInvalidArgument)
	}

	created, err := s.CreateRun(ctx, CreateRunRequest{ProductionScheduleID: schedule.ID, StartTime: req.StartTime})
	if err != nil {
		return nil, err
	}

	// 新段和排程状态一起生效：后续任一步失败都撤销新段，重试不会撞上 RunAlreadyOpen
	run, postpone, err := s.setPostpone(ctx, created.Run.ID, unfinished, schedule.HourlyCapacity)
	if err != nil {
		s.discardRun(ctx, created.Run)
		return nil, err
	}

	update := repository.ScheduleStateUpdate{Status: domain.ScheduleStatusOnGoing}
	if schedule.ActualOnMachineDate == nil {
		t := req.StartTime.UTC()
		update.ActualOnMachineDate = &t
	}
	if err := s.schedules.UpdateScheduleState(ctx, schedule.ID, update); err != nil {
		s.discardRun(ctx, created.Run)
		return nil, scheduleErr(err)
	}
	schedule.Status = domain.ScheduleStatusOnGoing
	if update.ActualOnMachineDate != nil {
		schedule.ActualOnMachineDate = update.ActualOnMachineDate
	}

	notified := s.notifyPostpone(ctx, run, postpone, schedule.PlanFinishDate, isResume, req.StartTime)
	return &ScheduleRunResponse{
		Schedule: schedule,
		Run:      run,
		Success:  true,
		Notified: notified,
	}, nil
}

// discardRun 撤销开工失败时新建的段；调用方 ctx 已取消也要执行
func (s *ongoingService) discardRun(ctx context.Context, run *domain.ProductionScheduleOngoing) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()

	if err := s.runs.DeleteRun(ctx, run.ID); err != nil {
		s.logger.Error("Failed to discard run after start failure",
			zap.Int64("run_id", run.ID),
			zap.Int64("schedule_id", run.ProductionScheduleID),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("Run discarded after start failure",
		zap.Int64("run_id", run.ID),
		zap.Int64("schedule_id", run.ProductionScheduleID),
	)
}

func (s *ongoingService) PauseSchedule(ctx context.Context, req PauseScheduleRequest) (*ScheduleRunResponse, error) {
	schedule, err := s.schedules.GetSchedule(ctx, req.ScheduleID)
	if err != nil {
		return nil, scheduleErr(err)
	}
	if schedule.Status.Terminal() {
		return nil, fmt.Errorf("%w: schedule %d is %s", ErrScheduleFinished, schedule.ID, schedule.Status)
	}

	current, err := s.runs.GetOpenRun(ctx, schedule.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: schedule %d is not running", ErrInvalidArgument, schedule.ID)
		}
		return nil, fmt.Errorf("failed to get open run: %w", err)
	}

	closed, err := s.CloseRun(ctx, CloseRunRequest{ID: current.ID, EndTime: req.EndTime})
	if err != nil {
		return nil, err
	}

	if err := s.schedules.UpdateScheduleState(ctx, schedule.ID, repository.ScheduleStateUpdate{Status: domain.ScheduleStatusPaused}); err != nil {
		return nil, scheduleErr(err)
	}
	schedule.Status = domain.ScheduleStatusPaused

	return &ScheduleRunResponse{
		Schedule: schedule,
		Run:      closed.Run,
		Success:  true,
		Notified: closed.Notified,
	}, nil
}

func (s *ongoingService) FinishSchedule(ctx context.Context, req FinishScheduleRequest) (*ScheduleRunResponse, error) {
	if req.EndTime.IsZero() {
		req.EndTime = s.now()
	}

	schedule, err := s.schedules.GetSchedule(ctx, req.ScheduleID)
	if err != nil {
		return nil, scheduleErr(err)
	}
	if schedule.Status.Terminal() {
		return nil, fmt.Errorf("%w: schedule %d is %s", ErrScheduleFinished, schedule.ID, schedule.Status)
	}
	if schedule.Status == domain.ScheduleStatusNotYetOnMachine {
		return nil, fmt.Errorf("%w: schedule %d has not started", ErrInvalidArgument, schedule.ID)
	}

	resp := &ScheduleRunResponse{Schedule: schedule, Success: true, Notified: true}

	open, err := s.runs.GetOpenRun(ctx, schedule.ID)
	switch {
	case err == nil:
		closed, err := s.CloseRun(ctx, CloseRunRequest{ID: open.ID, EndTime: req.EndTime})
		if err != nil {
			return nil, err
		}
		resp.Run = closed.Run
		resp.Notified = closed.Notified
	case repository.IsNotFound(err):
		// 暂停状态下完工，返回最后一段
		last, err := s.runs.GetLatestRun(ctx, schedule.ID)
		if err != nil && !repository.IsNotFound(err) {
			return nil, fmt.Errorf("failed to get current run: %w", err)
		}
		resp.Run = last
	default:
		return nil, fmt.Errorf("failed to get open run: %w", err)
	}

	status := domain.ScheduleStatusFinished
	if req.EndTime.After(schedule.PlanFinishDate) {
		status = domain.ScheduleStatusDelayedFinished
	}
	finishedAt := req.EndTime.UTC()
	if err := s.schedules.UpdateScheduleState(ctx, schedule.ID, repository.ScheduleStateUpdate{
		Status:           status,
		ActualFinishDate: &finishedAt,
	}); err != nil {
		return nil, scheduleErr(err)
	}
	schedule.Status = status
	schedule.ActualFinishDate = &finishedAt

	s.logger.Info("Production schedule finished",
		zap.Int64("schedule_id", schedule.ID),
		zap.String("status", string(status)),
		zap.Time("actual_finish_date", finishedAt),
	)
	return resp, nil
}

// notify 尽力通知；失败只记录，返回是否送达
func (s *ongoingService) notify(ctx context.Context, kind string, scheduleID int64, send func(ctx context.Context) error) bool {
	if s.notifier == nil {
		return false
	}
	if s.notifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
	}

	if err := send(ctx); err != nil {
		s.logger.Error("SmartSchedule notification failed",
			zap.String("kind", kind),
			zap.Int64("schedule_id", scheduleID),
			zap.String("error_kind", ErrorKind(err)),
			zap.Bool("retryable", IsRetryable(err)),
			zap.Error(err),
		)
		return false
	}
	return true
}
