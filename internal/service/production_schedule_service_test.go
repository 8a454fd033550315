package service

import (
	"context"
	"testing"
	"time"

	"lys-mes/internal/domain"
	"lys-mes/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduleService(t *testing.T, cal CalendarProvider) (ProductionScheduleService, *repository.MemoryProductionSchedulesRepository) {
	machines := repository.NewMemoryMachinesRepository()
	require.NoError(t, machines.UpsertMachine(context.Background(), &domain.Machine{
		MachineSN:      "A01",
		MachineName:    "A區 1 號機",
		ProductionArea: "A",
		Status:         domain.MachineStatusActive,
	}))
	schedules := repository.NewMemoryProductionSchedulesRepository()
	return NewProductionScheduleService(schedules, machines, cal, zap.NewNop()), schedules
}

func TestProductionScheduleService_CreateSchedule(t *testing.T) {
	svc, _ := newTestScheduleService(t, newStubCalendar("2024-01-03"))
	ctx := context.Background()

	// 30 秒一模：时产能 120，日产能 2880；10000 件需 ceil(3.47) = 4 个工作日
	resp, err := svc.CreateSchedule(ctx, CreateScheduleRequest{
		MachineSN:         "A01",
		WorkOrderSN:       "WO-2024-001",
		WorkOrderQuantity: 10000,
		MoldingSecond:     30,
		PlanOnMachineDate: time.Date(2024, 1, 1, 8, 0, 0, 0, cst),
	})
	require.NoError(t, err)
	s := resp.Schedule
	assert.Equal(t, int64(120), s.HourlyCapacity)
	assert.Equal(t, int64(2880), s.DailyCapacity)
	assert.Equal(t, 4, s.WorkDays)
	assert.Equal(t, time.Date(2024, 1, 6, 8, 0, 0, 0, cst), s.PlanFinishDate)
	assert.Equal(t, domain.ScheduleStatusNotYetOnMachine, s.Status)

	stored, err := svc.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "WO-2024-001", stored.WorkOrderSN)

	list, err := svc.ListSchedules(ctx, ListSchedulesRequest{MachineSN: "A01"})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	_, err = svc.GetSchedule(ctx, 999)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestProductionScheduleService_CreateScheduleErrors(t *testing.T) {
	svc, _ := newTestScheduleService(t, newStubCalendar())
	ctx := context.Background()
	base := CreateScheduleRequest{
		MachineSN:         "A01",
		WorkOrderSN:       "WO-1",
		WorkOrderQuantity: 100,
		MoldingSecond:     30,
		PlanOnMachineDate: time.Date(2024, 1, 1, 0, 0, 0, 0, cst),
	}

	req := base
	req.MoldingSecond = 0
	_, err := svc.CreateSchedule(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	req = base
	req.MoldingSecond = 4000 // 时产能 floor(0.9) = 0
	_, err = svc.CreateSchedule(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	req = base
	req.MachineSN = "Z99"
	_, err = svc.CreateSchedule(ctx, req)
	assert.ErrorIs(t, err, ErrMachineNotFound)

	req = base
	req.WorkOrderQuantity = 0
	_, err = svc.CreateSchedule(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	failing := newStubCalendar()
	failing.failStatus = true
	svc, repo := newTestScheduleService(t, failing)
	_, err = svc.CreateSchedule(ctx, base)
	assert.ErrorIs(t, err, ErrCalendarUnavailable)
	_, total, err := repo.ListSchedules(ctx, nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestProductionScheduleService_UpdateStatus(t *testing.T) {
	svc, repo := newTestScheduleService(t, newStubCalendar())
	ctx := context.Background()

	id, err := repo.CreateSchedule(ctx, &domain.ProductionSchedule{MachineSN: "A01", Status: domain.ScheduleStatusOnGoing})
	require.NoError(t, err)

	s, err := svc.UpdateStatus(ctx, UpdateStatusRequest{ID: id, Status: domain.ScheduleStatusDelayed})
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusDelayed, s.Status)

	_, err = svc.UpdateStatus(ctx, UpdateStatusRequest{ID: id, Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.UpdateStatus(ctx, UpdateStatusRequest{ID: id, Status: domain.ScheduleStatusFinished})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, UpdateStatusRequest{ID: id, Status: domain.ScheduleStatusOnGoing})
	assert.ErrorIs(t, err, ErrScheduleFinished)

	_, err = svc.ListSchedules(ctx, ListSchedulesRequest{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
