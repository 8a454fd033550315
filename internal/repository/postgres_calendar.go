package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lys-mes/internal/domain"
)

// PostgresCalendarRepository 日历 Repository 实现
type PostgresCalendarRepository struct {
	db *sql.DB
}

// NewPostgresCalendarRepository 创建日历 Repository
func NewPostgresCalendarRepository(db *sql.DB) *PostgresCalendarRepository {
	return &PostgresCalendarRepository{db: db}
}

var _ CalendarRepository = (*PostgresCalendarRepository)(nil)

// ListCalendar 查询日历窗口
func (r *PostgresCalendarRepository) ListCalendar(ctx context.Context, start time.Time, days int) ([]domain.CalendarDay, error) {
	if days <= 0 {
		return []domain.CalendarDay{}, nil
	}

	// 日期按字符串传入，避免 DATE 与 TIMESTAMPTZ 之间的时区换算
	query := `
		SELECT
			date,
			is_holiday,
			COALESCE(category, ''),
			COALESCE(description, '')
		FROM calendar
		WHERE date >= $1::date AND date < $1::date + $2::int
		ORDER BY date
	`

	rows, err := r.db.QueryContext(ctx, query, start.Format(domain.DateLayout), days)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar: %w", err)
	}
	defer rows.Close()

	result := make([]domain.CalendarDay, 0, days)
	for rows.Next() {
		var d domain.CalendarDay
		if err := rows.Scan(&d.Date, &d.IsHoliday, &d.Category, &d.Description); err != nil {
			return nil, fmt.Errorf("failed to scan calendar day: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calendar: %w", err)
	}

	return result, nil
}

// UpsertCalendarDays 批量写入日历（单事务）
func (r *PostgresCalendarRepository) UpsertCalendarDays(ctx context.Context, days []domain.CalendarDay) (int, error) {
	if len(days) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO calendar (date, is_holiday, category, description)
		VALUES ($1::date, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE SET
			is_holiday = EXCLUDED.is_holiday,
			category = EXCLUDED.category,
			description = EXCLUDED.description
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare calendar upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range days {
		if _, err := stmt.ExecContext(ctx, d.DateKey(), d.IsHoliday, nullString(d.Category), nullString(d.Description)); err != nil {
			return 0, fmt.Errorf("failed to upsert calendar day %s: %w", d.DateKey(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit calendar upsert: %w", err)
	}
	return len(days), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
