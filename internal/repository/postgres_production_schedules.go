package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lys-mes/internal/domain"
)

// PostgresProductionSchedulesRepository 生产排程 Repository 实现
type PostgresProductionSchedulesRepository struct {
	db *sql.DB
}

// NewPostgresProductionSchedulesRepository 创建生产排程 Repository
func NewPostgresProductionSchedulesRepository(db *sql.DB) *PostgresProductionSchedulesRepository {
	return &PostgresProductionSchedulesRepository{db: db}
}

var _ ProductionSchedulesRepository = (*PostgresProductionSchedulesRepository)(nil)

const scheduleColumns = `
	id,
	machine_sn,
	work_order_sn,
	work_order_quantity,
	molding_second,
	hourly_capacity,
	daily_capacity,
	work_days,
	plan_on_machine_date,
	plan_finish_date,
	actual_on_machine_date,
	actual_finish_date,
	status
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*domain.ProductionSchedule, error) {
	var s domain.ProductionSchedule
	var actualOn, actualFinish sql.NullTime
	var status string
	if err := row.Scan(
		&s.ID,
		&s.MachineSN,
		&s.WorkOrderSN,
		&s.WorkOrderQuantity,
		&s.MoldingSecond,
		&s.HourlyCapacity,
		&s.DailyCapacity,
		&s.WorkDays,
		&s.PlanOnMachineDate,
		&s.PlanFinishDate,
		&actualOn,
		&actualFinish,
		&status,
	); err != nil {
		return nil, err
	}
	s.Status = domain.ScheduleStatus(status)
	if actualOn.Valid {
		t := actualOn.Time
		s.ActualOnMachineDate = &t
	}
	if actualFinish.Valid {
		t := actualFinish.Time
		s.ActualFinishDate = &t
	}
	return &s, nil
}

// GetSchedule 获取排程
func (r *PostgresProductionSchedulesRepository) GetSchedule(ctx context.Context, id int64) (*domain.ProductionSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM production_schedule WHERE id = $1`

	s, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("production schedule %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get production schedule: %w", err)
	}
	return s, nil
}

// ListSchedules 分页查询排程，按计划上机时间排序
func (r *PostgresProductionSchedulesRepository) ListSchedules(ctx context.Context, filters *ScheduleFilters, page, size int) ([]*domain.ProductionSchedule, int, error) {
	where := []string{"1 = 1"}
	args := []any{}
	argN := 1

	if filters != nil {
		if filters.MachineSN != "" {
			where = append(where, fmt.Sprintf("machine_sn = $%d", argN))
			args = append(args, filters.MachineSN)
			argN++
		}
		if filters.WorkOrderSN != "" {
			where = append(where, fmt.Sprintf("work_order_sn = $%d", argN))
			args = append(args, filters.WorkOrderSN)
			argN++
		}
		if filters.Status != "" {
			where = append(where, fmt.Sprintf("status = $%d", argN))
			args = append(args, string(filters.Status))
			argN++
		}
	}

	queryCount := `SELECT COUNT(*) FROM production_schedule WHERE ` + strings.Join(where, " AND ")
	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count production schedules: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	argsList := append(args, size, offset)
	query := `SELECT ` + scheduleColumns + ` FROM production_schedule
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY plan_on_machine_date, id
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	rows, err := r.db.QueryContext(ctx, query, argsList...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list production schedules: %w", err)
	}
	defer rows.Close()

	var items []*domain.ProductionSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan production schedule: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate production schedules: %w", err)
	}

	return items, total, nil
}

// CreateSchedule 创建排程
func (r *PostgresProductionSchedulesRepository) CreateSchedule(ctx context.Context, s *domain.ProductionSchedule) (int64, error) {
	if s.Status == "" {
		s.Status = domain.ScheduleStatusNotYetOnMachine
	}

	query := `
		INSERT INTO production_schedule (
			machine_sn,
			work_order_sn,
			work_order_quantity,
			molding_second,
			hourly_capacity,
			daily_capacity,
			work_days,
			plan_on_machine_date,
			plan_finish_date,
			status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		s.MachineSN,
		s.WorkOrderSN,
		s.WorkOrderQuantity,
		s.MoldingSecond,
		s.HourlyCapacity,
		s.DailyCapacity,
		s.WorkDays,
		s.PlanOnMachineDate.UTC(),
		s.PlanFinishDate.UTC(),
		string(s.Status),
	).Scan(&id)
	if err != nil {
		if isPQError(err, pqForeignKeyViolation) {
			return 0, fmt.Errorf("machine %s: %w", s.MachineSN, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to create production schedule: %w", err)
	}

	s.ID = id
	return id, nil
}

// UpdateScheduleState 更新排程状态
func (r *PostgresProductionSchedulesRepository) UpdateScheduleState(ctx context.Context, id int64, update ScheduleStateUpdate) error {
	query := `
		UPDATE production_schedule
		SET
			status = $2,
			actual_on_machine_date = COALESCE($3, actual_on_machine_date),
			actual_finish_date = COALESCE($4, actual_finish_date)
		WHERE id = $1
	`

	var actualOn, actualFinish interface{}
	if update.ActualOnMachineDate != nil {
		actualOn = update.ActualOnMachineDate.UTC()
	}
	if update.ActualFinishDate != nil {
		actualFinish = update.ActualFinishDate.UTC()
	}

	result, err := r.db.ExecContext(ctx, query, id, string(update.Status), actualOn, actualFinish)
	if err != nil {
		return fmt.Errorf("failed to update production schedule state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("production schedule %d: %w", id, ErrNotFound)
	}

	return nil
}
