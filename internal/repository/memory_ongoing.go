package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lys-mes/internal/domain"
)

// MemoryOngoingRepository 内存生产段；写操作用按排程的互斥锁串行化
type MemoryOngoingRepository struct {
	schedules ProductionSchedulesRepository
	locks     *keyedMutex

	mu     sync.RWMutex
	nextID int64
	runs   map[int64]*domain.ProductionScheduleOngoing
}

func NewMemoryOngoingRepository(schedules ProductionSchedulesRepository) *MemoryOngoingRepository {
	return &MemoryOngoingRepository{
		schedules: schedules,
		locks:     newKeyedMutex(),
		runs:      make(map[int64]*domain.ProductionScheduleOngoing),
	}
}

var _ OngoingRepository = (*MemoryOngoingRepository)(nil)

func (r *MemoryOngoingRepository) CreateOpenRun(ctx context.Context, scheduleID int64, startTime time.Time) (*domain.ProductionScheduleOngoing, error) {
	if _, err := r.schedules.GetSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(scheduleID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	var last time.Time
	for _, o := range r.runs {
		if o.ProductionScheduleID != scheduleID {
			continue
		}
		if o.Open() {
			return nil, fmt.Errorf("production schedule %d: %w", scheduleID, ErrOpenRunExists)
		}
		if o.EndTime.After(last) {
			last = *o.EndTime
		}
	}
	if startTime.Before(last) {
		return nil, fmt.Errorf("production schedule %d: start %s before %s: %w",
			scheduleID, startTime.UTC().Format(time.RFC3339), last.Format(time.RFC3339), ErrRunOutOfOrder)
	}

	r.nextID++
	o := &domain.ProductionScheduleOngoing{
		ID:                   r.nextID,
		ProductionScheduleID: scheduleID,
		StartTime:            startTime.UTC(),
	}
	r.runs[o.ID] = o
	return copyRun(o), nil
}

func (r *MemoryOngoingRepository) GetRun(ctx context.Context, id int64) (*domain.ProductionScheduleOngoing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	return copyRun(o), nil
}

func (r *MemoryOngoingRepository) CloseRun(ctx context.Context, id int64, endTime time.Time) (*domain.ProductionScheduleOngoing, error) {
	current, err := r.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(current.ProductionScheduleID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.runs[id]
	if !o.Open() {
		return nil, fmt.Errorf("run %d: %w", id, ErrRunClosed)
	}
	t := endTime.UTC()
	o.EndTime = &t
	return copyRun(o), nil
}

func (r *MemoryOngoingRepository) SetPostponeTime(ctx context.Context, id int64, postponeTime time.Time) (*domain.ProductionScheduleOngoing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	t := postponeTime.UTC()
	o.PostponeTime = &t
	return copyRun(o), nil
}

func (r *MemoryOngoingRepository) ListRuns(ctx context.Context, scheduleID int64) ([]*domain.ProductionScheduleOngoing, error) {
	r.mu.RLock()
	runs := []*domain.ProductionScheduleOngoing{}
	for _, o := range r.runs {
		if o.ProductionScheduleID == scheduleID {
			runs = append(runs, copyRun(o))
		}
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartTime.Equal(runs[j].StartTime) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
	return runs, nil
}

func (r *MemoryOngoingRepository) GetLatestRun(ctx context.Context, scheduleID int64) (*domain.ProductionScheduleOngoing, error) {
	runs, err := r.ListRuns(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("production schedule %d has no runs: %w", scheduleID, ErrNotFound)
	}
	return runs[len(runs)-1], nil
}

func (r *MemoryOngoingRepository) GetOpenRun(ctx context.Context, scheduleID int64) (*domain.ProductionScheduleOngoing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.runs {
		if o.ProductionScheduleID == scheduleID && o.Open() {
			return copyRun(o), nil
		}
	}
	return nil, fmt.Errorf("production schedule %d has no open run: %w", scheduleID, ErrNotFound)
}

func (r *MemoryOngoingRepository) DeleteRun(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; !ok {
		return fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	delete(r.runs, id)
	return nil
}

func copyRun(o *domain.ProductionScheduleOngoing) *domain.ProductionScheduleOngoing {
	cp := *o
	if o.EndTime != nil {
		t := *o.EndTime
		cp.EndTime = &t
	}
	if o.PostponeTime != nil {
		t := *o.PostponeTime
		cp.PostponeTime = &t
	}
	return &cp
}

