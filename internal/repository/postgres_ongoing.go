package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lys-mes/internal/domain"
)

// PostgresOngoingRepository 生产段 Repository 实现
//
// 串行化方式：事务内 SELECT ... FOR UPDATE 锁排程行，再检查是否有未结束段以及新段是否接在上一段之后；
// 表上的部分唯一索引 (production_schedule_id) WHERE end_time IS NULL 兜底
type PostgresOngoingRepository struct {
	db *sql.DB
}

// NewPostgresOngoingRepository 创建生产段 Repository
func NewPostgresOngoingRepository(db *sql.DB) *PostgresOngoingRepository {
	return &PostgresOngoingRepository{db: db}
}

var _ OngoingRepository = (*PostgresOngoingRepository)(nil)

const ongoingColumns = `id, production_schedule_id, start_time, end_time, postpone_time`

func scanOngoing(row rowScanner) (*domain.ProductionScheduleOngoing, error) {
	var o domain.ProductionScheduleOngoing
	var endTime, postponeTime sql.NullTime
	if err := row.Scan(&o.ID, &o.ProductionScheduleID, &o.StartTime, &endTime, &postponeTime); err != nil {
		return nil, err
	}
	o.StartTime = o.StartTime.UTC()
	if endTime.Valid {
		t := endTime.Time.UTC()
		o.EndTime = &t
	}
	if postponeTime.Valid {
		t := postponeTime.Time.UTC()
		o.PostponeTime = &t
	}
	return &o, nil
}

// CreateOpenRun 新建生产段
func (r *PostgresOngoingRepository) CreateOpenRun(ctx context.Context, scheduleID int64, startTime time.Time) (*domain.ProductionScheduleOngoing, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockedID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM production_schedule WHERE id = $1 FOR UPDATE`, scheduleID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("production schedule %d: %w", scheduleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock production schedule: %w", err)
	}

	var openCount int
	var last sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE end_time IS NULL), MAX(COALESCE(end_time, start_time))
		FROM production_schedule_ongoing
		WHERE production_schedule_id = $1
	`, scheduleID).Scan(&openCount, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing runs: %w", err)
	}
	if openCount > 0 {
		return nil, fmt.Errorf("production schedule %d: %w", scheduleID, ErrOpenRunExists)
	}
	if last.Valid && startTime.Before(last.Time) {
		return nil, fmt.Errorf("production schedule %d: start %s before %s: %w",
			scheduleID, startTime.UTC().Format(time.RFC3339), last.Time.UTC().Format(time.RFC3339), ErrRunOutOfOrder)
	}

	run := &domain.ProductionScheduleOngoing{
		ProductionScheduleID: scheduleID,
		StartTime:            startTime.UTC(),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO production_schedule_ongoing (production_schedule_id, start_time)
		VALUES ($1, $2)
		RETURNING id
	`, scheduleID, run.StartTime).Scan(&run.ID)
	if err != nil {
		if isPQError(err, pqUniqueViolation) {
			return nil, fmt.Errorf("production schedule %d: %w", scheduleID, ErrOpenRunExists)
		}
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// GetRun 获取生产段
func (r *PostgresOngoingRepository) GetRun(ctx context.Context, id int64) (*domain.ProductionScheduleOngoing, error) {
	query := `SELECT ` + ongoingColumns + ` FROM production_schedule_ongoing WHERE id = $1`
	o, err := scanOngoing(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return o, nil
}

// CloseRun 结束生产段（只更新 end_time 为空的行）
func (r *PostgresOngoingRepository) CloseRun(ctx context.Context, id int64, endTime time.Time) (*domain.ProductionScheduleOngoing, error) {
	query := `
		UPDATE production_schedule_ongoing
		SET end_time = $2
		WHERE id = $1 AND end_time IS NULL
		RETURNING ` + ongoingColumns

	o, err := scanOngoing(r.db.QueryRowContext(ctx, query, id, endTime.UTC()))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to close run: %w", err)
	}

	// 区分不存在与已结束
	if _, getErr := r.GetRun(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("run %d: %w", id, ErrRunClosed)
}

// SetPostponeTime 更新预估完工时间
func (r *PostgresOngoingRepository) SetPostponeTime(ctx context.Context, id int64, postponeTime time.Time) (*domain.ProductionScheduleOngoing, error) {
	query := `
		UPDATE production_schedule_ongoing
		SET postpone_time = $2
		WHERE id = $1
		RETURNING ` + ongoingColumns

	o, err := scanOngoing(r.db.QueryRowContext(ctx, query, id, postponeTime.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to set postpone time: %w", err)
	}
	return o, nil
}

// ListRuns 列出排程的全部生产段
func (r *PostgresOngoingRepository) ListRuns(ctx context.Context, scheduleID int64) ([]*domain.ProductionScheduleOngoing, error) {
	query := `SELECT ` + ongoingColumns + `
		FROM production_schedule_ongoing
		WHERE production_schedule_id = $1
		ORDER BY start_time, id`

	rows, err := r.db.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*domain.ProductionScheduleOngoing{}
	for rows.Next() {
		o, err := scanOngoing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetLatestRun 最近一段（当前段）
func (r *PostgresOngoingRepository) GetLatestRun(ctx context.Context, scheduleID int64) (*domain.ProductionScheduleOngoing, error) {
	query := `SELECT ` + ongoingColumns + `
		FROM production_schedule_ongoing
		WHERE production_schedule_id = $1
		ORDER BY start_time DESC, id DESC
		LIMIT 1`

	o, err := scanOngoing(r.db.QueryRowContext(ctx, query, scheduleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("production schedule %d has no runs: %w", scheduleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return o, nil
}

// GetOpenRun 未结束的那一段
func (r *PostgresOngoingRepository) GetOpenRun(ctx context.Context, scheduleID int64) (*domain.ProductionScheduleOngoing, error) {
	query := `SELECT ` + ongoingColumns + `
		FROM production_schedule_ongoing
		WHERE production_schedule_id = $1 AND end_time IS NULL
		LIMIT 1`

	o, err := scanOngoing(r.db.QueryRowContext(ctx, query, scheduleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("production schedule %d has no open run: %w", scheduleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get open run: %w", err)
	}
	return o, nil
}

// DeleteRun 删除生产段
func (r *PostgresOngoingRepository) DeleteRun(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM production_schedule_ongoing WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	return nil
}
