package repository

import (
	"context"
	"testing"
	"time"

	"lys-mes/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scheduleCols = []string{
	"id", "machine_sn", "work_order_sn", "work_order_quantity", "molding_second",
	"hourly_capacity", "daily_capacity", "work_days", "plan_on_machine_date", "plan_finish_date",
	"actual_on_machine_date", "actual_finish_date", "status",
}

func TestPostgresSchedules_GetSchedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresProductionSchedulesRepository(db)

	planOn := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	planFinish := planOn.AddDate(0, 0, 4)

	mock.ExpectQuery(`FROM production_schedule WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(scheduleCols).AddRow(
			7, "A01", "WO-2024-001", 10000, 30.0, 120, 2880, 4, planOn, planFinish, nil, nil, "not_yet_on_machine",
		))

	s, err := repo.GetSchedule(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "A01", s.MachineSN)
	assert.Equal(t, int64(120), s.HourlyCapacity)
	assert.Equal(t, 4, s.WorkDays)
	assert.Nil(t, s.ActualOnMachineDate)
	assert.Equal(t, domain.ScheduleStatusNotYetOnMachine, s.Status)

	mock.ExpectQuery(`FROM production_schedule WHERE id = \$1`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(scheduleCols))
	_, err = repo.GetSchedule(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchedules_ListSchedules(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresProductionSchedulesRepository(db)

	planOn := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM production_schedule WHERE 1 = 1 AND machine_sn = \$1 AND status = \$2`).
		WithArgs("A01", "on_going").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY plan_on_machine_date, id LIMIT \$3 OFFSET \$4`).
		WithArgs("A01", "on_going", 10, 10).
		WillReturnRows(sqlmock.NewRows(scheduleCols).AddRow(
			7, "A01", "WO-1", 500, 30.0, 120, 2880, 1, planOn, planOn.AddDate(0, 0, 1), planOn, nil, "on_going",
		))

	items, total, err := repo.ListSchedules(context.Background(), &ScheduleFilters{
		MachineSN: "A01",
		Status:    domain.ScheduleStatusOnGoing,
	}, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].ActualOnMachineDate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchedules_CreateSchedule_UnknownMachine(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresProductionSchedulesRepository(db)

	mock.ExpectQuery(`INSERT INTO production_schedule`).
		WillReturnError(&pq.Error{Code: "23503"})

	_, err = repo.CreateSchedule(context.Background(), &domain.ProductionSchedule{MachineSN: "ZZ"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchedules_UpdateScheduleState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresProductionSchedulesRepository(db)

	on := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE production_schedule SET status = \$2`).
		WithArgs(int64(7), "on_going", on, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateScheduleState(context.Background(), 7, ScheduleStateUpdate{
		Status:              domain.ScheduleStatusOnGoing,
		ActualOnMachineDate: &on,
	}))

	mock.ExpectExec(`UPDATE production_schedule SET status = \$2`).
		WithArgs(int64(8), "paused", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateScheduleState(context.Background(), 8, ScheduleStateUpdate{Status: domain.ScheduleStatusPaused})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
