package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lys-mes/internal/domain"
)

// PostgresMachinesRepository 机台 Repository 实现
type PostgresMachinesRepository struct {
	db *sql.DB
}

func NewPostgresMachinesRepository(db *sql.DB) *PostgresMachinesRepository {
	return &PostgresMachinesRepository{db: db}
}

var _ MachinesRepository = (*PostgresMachinesRepository)(nil)

const machineColumns = `
	machine_sn,
	COALESCE(machine_name, ''),
	COALESCE(production_area, ''),
	COALESCE(brand, ''),
	COALESCE(tonnage, 0),
	status
`

func scanMachine(row rowScanner) (*domain.Machine, error) {
	var m domain.Machine
	if err := row.Scan(&m.MachineSN, &m.MachineName, &m.ProductionArea, &m.Brand, &m.Tonnage, &m.Status); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresMachinesRepository) GetMachine(ctx context.Context, machineSN string) (*domain.Machine, error) {
	if machineSN == "" {
		return nil, fmt.Errorf("machine_sn is required: %w", ErrNotFound)
	}
	m, err := scanMachine(r.db.QueryRowContext(ctx, `SELECT `+machineColumns+` FROM machine WHERE machine_sn = $1`, machineSN))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("machine %s: %w", machineSN, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get machine: %w", err)
	}
	return m, nil
}

func (r *PostgresMachinesRepository) ListMachines(ctx context.Context, area string) ([]*domain.Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machine`
	args := []any{}
	if area != "" {
		query += ` WHERE production_area = $1`
		args = append(args, area)
	}
	query += ` ORDER BY production_area, machine_sn`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	defer rows.Close()

	machines := []*domain.Machine{}
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate machines: %w", err)
	}
	return machines, nil
}

func (r *PostgresMachinesRepository) UpsertMachine(ctx context.Context, m *domain.Machine) error {
	if m.MachineSN == "" {
		return fmt.Errorf("machine_sn is required")
	}
	if m.Status == "" {
		m.Status = domain.MachineStatusActive
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO machine (machine_sn, machine_name, production_area, brand, tonnage, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (machine_sn) DO UPDATE SET
			machine_name = EXCLUDED.machine_name,
			production_area = EXCLUDED.production_area,
			brand = EXCLUDED.brand,
			tonnage = EXCLUDED.tonnage,
			status = EXCLUDED.status
	`, m.MachineSN, nullString(m.MachineName), nullString(m.ProductionArea), nullString(m.Brand), m.Tonnage, m.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert machine: %w", err)
	}
	return nil
}
