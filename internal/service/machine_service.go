package service

import (
	"context"
	"fmt"
	"strings"

	"lys-mes/internal/domain"
	"lys-mes/internal/repository"

	"go.uber.org/zap"
)

// MachineService 机台服务接口
type MachineService interface {
	GetMachine(ctx context.Context, machineSN string) (*domain.Machine, error)
	ListMachines(ctx context.Context, area string) ([]*domain.Machine, error)
	UpsertMachine(ctx context.Context, m *domain.Machine) error
}

type machineService struct {
	repo   repository.MachinesRepository
	logger *zap.Logger
}

// NewMachineService 创建机台服务
func NewMachineService(repo repository.MachinesRepository, logger *zap.Logger) MachineService {
	return &machineService{repo: repo, logger: logger}
}

func (s *machineService) GetMachine(ctx context.Context, machineSN string) (*domain.Machine, error) {
	m, err := s.repo.GetMachine(ctx, strings.TrimSpace(machineSN))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrMachineNotFound, machineSN)
		}
		return nil, fmt.Errorf("failed to get machine: %w", err)
	}
	return m, nil
}

func (s *machineService) ListMachines(ctx context.Context, area string) ([]*domain.Machine, error) {
	items, err := s.repo.ListMachines(ctx, strings.TrimSpace(area))
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	if items == nil {
		items = []*domain.Machine{}
	}
	return items, nil
}

func (s *machineService) UpsertMachine(ctx context.Context, m *domain.Machine) error {
	m.MachineSN = strings.TrimSpace(m.MachineSN)
	if m.MachineSN == "" {
		return fmt.Errorf("%w: machine_sn is required", ErrInvalidArgument)
	}
	if m.Status == "" {
		m.Status = domain.MachineStatusActive
	}
	switch m.Status {
	case domain.MachineStatusActive, domain.MachineStatusMaintenance, domain.MachineStatusRetired:
	default:
		return fmt.Errorf("%w: unknown machine status %q", ErrInvalidArgument, m.Status)
	}
	if err := s.repo.UpsertMachine(ctx, m); err != nil {
		return fmt.Errorf("failed to upsert machine: %w", err)
	}
	s.logger.Info("Machine upserted", zap.String("machine_sn", m.MachineSN), zap.String("status", m.Status))
	return nil
}
