package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"lys-mes/internal/domain"
)

// MemoryCalendarRepository 内存日历（DB 未就绪时使用）
type MemoryCalendarRepository struct {
	mu   sync.RWMutex
	days map[string]domain.CalendarDay
}

func NewMemoryCalendarRepository() *MemoryCalendarRepository {
	return &MemoryCalendarRepository{days: make(map[string]domain.CalendarDay)}
}

var _ CalendarRepository = (*MemoryCalendarRepository)(nil)

func (r *MemoryCalendarRepository) ListCalendar(ctx context.Context, start time.Time, days int) ([]domain.CalendarDay, error) {
	if days <= 0 {
		return []domain.CalendarDay{}, nil
	}
	from := start.Format(domain.DateLayout)
	to := time.Date(start.Year(), start.Month(), start.Day()+days, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout)

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.CalendarDay, 0, days)
	for key, d := range r.days {
		if key >= from && key < to {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DateKey() < result[j].DateKey() })
	return result, nil
}

func (r *MemoryCalendarRepository) UpsertCalendarDays(ctx context.Context, days []domain.CalendarDay) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range days {
		key := d.DateKey()
		t, _ := time.Parse(domain.DateLayout, key)
		d.Date = t
		r.days[key] = d
	}
	return len(days), nil
}
