package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lys-mes/internal/domain"
)

// MemoryProductionSchedulesRepository 内存排程
type MemoryProductionSchedulesRepository struct {
	mu        sync.RWMutex
	nextID    int64
	schedules map[int64]*domain.ProductionSchedule
}

func NewMemoryProductionSchedulesRepository() *MemoryProductionSchedulesRepository {
	return &MemoryProductionSchedulesRepository{schedules: make(map[int64]*domain.ProductionSchedule)}
}

var _ ProductionSchedulesRepository = (*MemoryProductionSchedulesRepository)(nil)

func (r *MemoryProductionSchedulesRepository) GetSchedule(ctx context.Context, id int64) (*domain.ProductionSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, fmt.Errorf("production schedule %d: %w", id, ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryProductionSchedulesRepository) ListSchedules(ctx context.Context, filters *ScheduleFilters, page, size int) ([]*domain.ProductionSchedule, int, error) {
	r.mu.RLock()
	var all []*domain.ProductionSchedule
	for _, s := range r.schedules {
		if filters != nil {
			if filters.MachineSN != "" && s.MachineSN != filters.MachineSN {
				continue
			}
			if filters.WorkOrderSN != "" && s.WorkOrderSN != filters.WorkOrderSN {
				continue
			}
			if filters.Status != "" && s.Status != filters.Status {
				continue
			}
		}
		cp := *s
		all = append(all, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].PlanOnMachineDate.Equal(all[j].PlanOnMachineDate) {
			return all[i].ID < all[j].ID
		}
		return all[i].PlanOnMachineDate.Before(all[j].PlanOnMachineDate)
	})

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	total := len(all)
	start := (page - 1) * size
	if start >= total {
		return []*domain.ProductionSchedule{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryProductionSchedulesRepository) CreateSchedule(ctx context.Context, s *domain.ProductionSchedule) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *s
	cp.ID = r.nextID
	if cp.Status == "" {
		cp.Status = domain.ScheduleStatusNotYetOnMachine
	}
	r.schedules[cp.ID] = &cp
	s.ID = cp.ID
	s.Status = cp.Status
	return cp.ID, nil
}

func (r *MemoryProductionSchedulesRepository) UpdateScheduleState(ctx context.Context, id int64, update ScheduleStateUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return fmt.Errorf("production schedule %d: %w", id, ErrNotFound)
	}
	s.Status = update.Status
	if update.ActualOnMachineDate != nil {
		t := update.ActualOnMachineDate.UTC()
		s.ActualOnMachineDate = &t
	}
	if update.ActualFinishDate != nil {
		t := update.ActualFinishDate.UTC()
		s.ActualFinishDate = &t
	}
	return nil
}

