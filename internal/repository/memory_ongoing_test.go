package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lys-mes/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSchedule(t *testing.T, repo *MemoryProductionSchedulesRepository) int64 {
	id, err := repo.CreateSchedule(context.Background(), &domain.ProductionSchedule{
		MachineSN:         "A01",
		WorkOrderSN:       "WO-1",
		WorkOrderQuantity: 1000,
		HourlyCapacity:    100,
		PlanOnMachineDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PlanFinishDate:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return id
}

func TestMemoryOngoing_ConcurrentCreateLeavesOneOpenRun(t *testing.T) {
	schedules := NewMemoryProductionSchedulesRepository()
	repo := NewMemoryOngoingRepository(schedules)
	id := seedSchedule(t, schedules)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, conflicts := 0, 0
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.CreateOpenRun(context.Background(), id, start.Add(time.Duration(i)*time.Second))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrOpenRunExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)

	runs, err := repo.ListRuns(context.Background(), id)
	require.NoError(t, err)
	open := 0
	for _, r := range runs {
		if r.Open() {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestMemoryOngoing_Lifecycle(t *testing.T) {
	ctx := context.Background()
	schedules := NewMemoryProductionSchedulesRepository()
	repo := NewMemoryOngoingRepository(schedules)
	id := seedSchedule(t, schedules)

	_, err := repo.CreateOpenRun(ctx, 999, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	t1 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	first, err := repo.CreateOpenRun(ctx, id, t1)
	require.NoError(t, err)

	_, err = repo.CloseRun(ctx, first.ID, t1.Add(2*time.Hour))
	require.NoError(t, err)

	_, err = repo.CloseRun(ctx, first.ID, t1.Add(3*time.Hour))
	assert.ErrorIs(t, err, ErrRunClosed)

	_, err = repo.CloseRun(ctx, 12345, t1)
	assert.ErrorIs(t, err, ErrNotFound)

	second, err := repo.CreateOpenRun(ctx, id, t1.Add(4*time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := repo.GetLatestRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	p := t1.Add(10 * time.Hour)
	updated, err := repo.SetPostponeTime(ctx, second.ID, p)
	require.NoError(t, err)
	assert.Equal(t, p, *updated.PostponeTime)

	// 返回的是副本
	updated.PostponeTime = nil
	again, err := repo.GetRun(ctx, second.ID)
	require.NoError(t, err)
	assert.NotNil(t, again.PostponeTime)
}

func TestMemoryOngoing_RejectsStartBeforePreviousRun(t *testing.T) {
	ctx := context.Background()
	schedules := NewMemoryProductionSchedulesRepository()
	repo := NewMemoryOngoingRepository(schedules)
	id := seedSchedule(t, schedules)

	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	first, err := repo.CreateOpenRun(ctx, id, t1)
	require.NoError(t, err)
	_, err = repo.CloseRun(ctx, first.ID, t1.Add(2*time.Hour))
	require.NoError(t, err)

	_, err = repo.CreateOpenRun(ctx, id, t1.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrRunOutOfOrder)

	// 紧接上一段结束时刻开工是允许的
	second, err := repo.CreateOpenRun(ctx, id, t1.Add(2*time.Hour))
	require.NoError(t, err)

	open, err := repo.GetOpenRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, second.ID, open.ID)

	require.NoError(t, repo.DeleteRun(ctx, second.ID))
	assert.ErrorIs(t, repo.DeleteRun(ctx, second.ID), ErrNotFound)

	_, err = repo.GetOpenRun(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}
