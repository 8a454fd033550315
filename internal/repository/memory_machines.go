package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lys-mes/internal/domain"
)

// MemoryMachinesRepository 内存机台
type MemoryMachinesRepository struct {
	mu       sync.RWMutex
	machines map[string]domain.Machine
}

func NewMemoryMachinesRepository() *MemoryMachinesRepository {
	return &MemoryMachinesRepository{machines: make(map[string]domain.Machine)}
}

var _ MachinesRepository = (*MemoryMachinesRepository)(nil)

func (r *MemoryMachinesRepository) GetMachine(ctx context.Context, machineSN string) (*domain.Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[machineSN]
	if !ok {
		return nil, fmt.Errorf("machine %s: %w", machineSN, ErrNotFound)
	}
	return &m, nil
}

func (r *MemoryMachinesRepository) ListMachines(ctx context.Context, area string) ([]*domain.Machine, error) {
	r.mu.RLock()
	machines := []*domain.Machine{}
	for _, m := range r.machines {
		if area != "" && m.ProductionArea != area {
			continue
		}
		cp := m
		machines = append(machines, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(machines, func(i, j int) bool {
		if machines[i].ProductionArea == machines[j].ProductionArea {
			return machines[i].MachineSN < machines[j].MachineSN
		}
		return machines[i].ProductionArea < machines[j].ProductionArea
	})
	return machines, nil
}

func (r *MemoryMachinesRepository) UpsertMachine(ctx context.Context, m *domain.Machine) error {
	if m.MachineSN == "" {
		return fmt.Errorf("machine_sn is required")
	}
	if m.Status == "" {
		m.Status = domain.MachineStatusActive
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machines[m.MachineSN] = *m
	return nil
}
