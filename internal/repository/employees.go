package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

const employeeColumns = `id, first_name, last_name, department, position, country, email, reporting_manager, role, password_hash`

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(s scanner) (*domain.Employee, error) {
	employee := &domain.Employee{}
	var manager sql.NullInt64

	dst := []any{&employee.ID, &employee.FirstName, &employee.LastName, &employee.Department, &employee.Position,
		&employee.Country, &employee.Email, &manager, &employee.Role, &employee.PasswordHash}
	if err := s.Scan(dst...); err != nil {
		return nil, err
	}

	if manager.Valid {
		employee.ReportingManager = &manager.Int64
	}
	return employee, nil
}

func (r *Repository) GetEmployeeByID(ctx context.Context, id int64) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	employee, err := scanEmployee(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return employee, nil
}

func (r *Repository) GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE LOWER(email) = LOWER($1)`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	employee, err := scanEmployee(r.dbpool.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, translate(err)
	}
	return employee, nil
}

// GetTeamMemberIDs 返回直接向 managerID 汇报的员工，不包括经理本人
func (r *Repository) GetTeamMemberIDs(ctx context.Context, managerID int64) ([]int64, error) {
	query := `SELECT id FROM employees WHERE reporting_manager = $1 AND id <> $1 ORDER BY id`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *Repository) GetAllEmployees(ctx context.Context) ([]*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees ORDER BY id`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]*domain.Employee, 0)
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}

func (r *Repository) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{employee.ID, employee.FirstName, employee.LastName, employee.Department, employee.Position,
		employee.Country, employee.Email, employee.ReportingManager, employee.Role, employee.PasswordHash}
	if _, err := r.dbpool.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdateEmployeePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `
		UPDATE employees
		SET password_hash = $1, version = version + 1
		WHERE id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *Repository) CountEmployees(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM employees`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var count int64
	if err := r.dbpool.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}
