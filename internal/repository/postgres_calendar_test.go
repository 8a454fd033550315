package repository

import (
	"context"
	"testing"
	"time"

	"lys-mes/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresCalendar_ListCalendar(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCalendarRepository(db)

	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM calendar WHERE date >= \$1::date AND date < \$1::date \+ \$2::int`).
		WithArgs("2024-01-01", 35).
		WillReturnRows(sqlmock.NewRows([]string{"date", "is_holiday", "category", "description"}).
			AddRow(d1, true, "national", "開國紀念日").
			AddRow(d3, false, "", ""))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("CST", 8*3600))
	days, err := repo.ListCalendar(context.Background(), start, 35)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.True(t, days[0].IsHoliday)
	assert.Equal(t, "2024-01-01", days[0].DateKey())
	assert.Equal(t, "開國紀念日", days[0].Description)
	assert.False(t, days[1].IsHoliday)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCalendar_ListCalendar_EmptyWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	days, err := NewPostgresCalendarRepository(db).ListCalendar(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, days)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCalendar_UpsertCalendarDays(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCalendarRepository(db)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO calendar`)
	prep.ExpectExec().
		WithArgs("2024-01-01", true, "national", "開國紀念日").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("2024-01-02", false, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.UpsertCalendarDays(context.Background(), []domain.CalendarDay{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), IsHoliday: true, Category: "national", Description: "開國紀念日"},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
