package repository

import (
	"context"

	"lys-mes/internal/domain"
)

// MachinesRepository 机台 Repository 接口
type MachinesRepository interface {
	GetMachine(ctx context.Context, machineSN string) (*domain.Machine, error)
	// ListMachines area 为空表示全部区域
	ListMachines(ctx context.Context, area string) ([]*domain.Machine, error)
	UpsertMachine(ctx context.Context, m *domain.Machine) error
}
