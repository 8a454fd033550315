package repository

import (
	"context"
	"time"

	"lys-mes/internal/domain"
)

// CalendarRepository 日历 Repository 接口
type CalendarRepository interface {
	// ListCalendar 返回 [start, start+days) 的日历，按日期升序；start 只取年月日
	ListCalendar(ctx context.Context, start time.Time, days int) ([]domain.CalendarDay, error)

	// UpsertCalendarDays 批量写入（按 date 覆盖），返回写入条数
	UpsertCalendarDays(ctx context.Context, days []domain.CalendarDay) (int, error)
}
