package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"lys-mes/internal/domain"
	"lys-mes/internal/repository"

	"go.uber.org/zap"
)

// CalendarService 日历维护服务接口
type CalendarService interface {
	// 查询日历窗口
	ListCalendar(ctx context.Context, req ListCalendarRequest) (*ListCalendarResponse, error)
	// 批量写入日历，写入后清空窗口缓存
	UpsertDays(ctx context.Context, req UpsertDaysRequest) (*UpsertDaysResponse, error)
	// Excel 导入
	ImportCalendarExcel(ctx context.Context, r io.Reader) (*UpsertDaysResponse, error)
	// Excel 导出
	ExportCalendarExcel(ctx context.Context, req ListCalendarRequest) ([]byte, error)
	// 计算避开假日后的完工时间
	ShiftDate(ctx context.Context, req ShiftDateRequest) (*ShiftDateResponse, error)
}

// CalendarCache 日历窗口缓存失效
type CalendarCache interface {
	Invalidate(ctx context.Context) error
}

type calendarService struct {
	repo     repository.CalendarRepository
	provider CalendarProvider
	cache    CalendarCache
	logger   *zap.Logger
}

// NewCalendarService 创建日历服务；cache 可为 nil
func NewCalendarService(repo repository.CalendarRepository, provider CalendarProvider, cache CalendarCache, logger *zap.Logger) CalendarService {
	return &calendarService{
		repo:     repo,
		provider: provider,
		cache:    cache,
		logger:   logger,
	}
}

// maxCalendarWindow 单次查询最多天数
const maxCalendarWindow = 3660

// ListCalendarRequest 日历查询请求
type ListCalendarRequest struct {
	StartDate time.Time
	Days      int
}

// ListCalendarResponse 日历查询响应
type ListCalendarResponse struct {
	Items []domain.CalendarDay `json:"items"`
	Total int                  `json:"total"`
}

// UpsertDaysRequest 日历写入请求
type UpsertDaysRequest struct {
	Days []domain.CalendarDay
}

// UpsertDaysResponse 日历写入响应
type UpsertDaysResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// ShiftDateRequest 完工时间计算请求
type ShiftDateRequest struct {
	StartDate   time.Time
	Workdays    int
	EndDateHint *time.Time
}

// ShiftDateResponse 完工时间计算响应
type ShiftDateResponse struct {
	StartDate  time.Time `json:"startDate"`
	Workdays   int       `json:"workdays"`
	FinishDate time.Time `json:"finishDate"`
}

func validateWindow(req ListCalendarRequest) error {
	if req.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", ErrInvalidArgument)
	}
	if req.Days <= 0 || req.Days > maxCalendarWindow {
		return fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidArgument, maxCalendarWindow)
	}
	return nil
}

func (s *calendarService) ListCalendar(ctx context.Context, req ListCalendarRequest) (*ListCalendarResponse, error) {
	if err := validateWindow(req); err != nil {
		return nil, err
	}
	days, err := s.repo.ListCalendar(ctx, req.StartDate, req.Days)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCalendarUnavailable, err)
	}
	return &ListCalendarResponse{Items: days, Total: len(days)}, nil
}

func (s *calendarService) UpsertDays(ctx context.Context, req UpsertDaysRequest) (*UpsertDaysResponse, error) {
	seen := make(map[string]struct{}, len(req.Days))
	for _, d := range req.Days {
		if d.Date.IsZero() {
			return nil, fmt.Errorf("%w: date is required", ErrInvalidArgument)
		}
		if _, dup := seen[d.DateKey()]; dup {
			return nil, fmt.Errorf("%w: duplicate date %s", ErrInvalidArgument, d.DateKey())
		}
		seen[d.DateKey()] = struct{}{}
	}

	n, err := s.repo.UpsertCalendarDays(ctx, req.Days)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert calendar: %w", err)
	}

	if s.cache != nil && n > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			// 缓存有 TTL，失效失败只记录
			s.logger.Warn("Failed to invalidate calendar cache", zap.Error(err))
		}
	}

	s.logger.Info("Calendar days upserted", zap.Int("count", n))
	return &UpsertDaysResponse{Success: true, Count: n}, nil
}

func (s *calendarService) ImportCalendarExcel(ctx context.Context, r io.Reader) (*UpsertDaysResponse, error) {
	days, err := parseCalendarExcel(r)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return &UpsertDaysResponse{Success: true, Count: 0}, nil
	}
	return s.UpsertDays(ctx, UpsertDaysRequest{Days: days})
}

func (s *calendarService) ExportCalendarExcel(ctx context.Context, req ListCalendarRequest) ([]byte, error) {
	resp, err := s.ListCalendar(ctx, req)
	if err != nil {
		return nil, err
	}
	return generateCalendarExcel(resp.Items)
}

func (s *calendarService) ShiftDate(ctx context.Context, req ShiftDateRequest) (*ShiftDateResponse, error) {
	if req.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start_date is required", ErrInvalidArgument)
	}
	finish, err := ShiftByHoliday(ctx, s.provider, req.StartDate, req.Workdays, req.EndDateHint)
	if err != nil {
		return nil, err
	}
	return &ShiftDateResponse{
		StartDate:  req.StartDate,
		Workdays:   req.Workdays,
		FinishDate: finish,
	}, nil
}
