package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

const blockoutColumns = `id, start_date, end_date, timeslot, title, description`

func scanBlockout(s scanner) (*domain.Blockout, error) {
	b := &domain.Blockout{}
	if err := s.Scan(&b.ID, &b.StartDate, &b.EndDate, &b.Timeslot, &b.Title, &b.Description); err != nil {
		return nil, err
	}
	b.StartDate, b.EndDate = domain.Date(b.StartDate), domain.Date(b.EndDate)
	return b, nil
}

func (r *Repository) CreateBlockout(ctx context.Context, b *domain.Blockout) error {
	query := `
		INSERT INTO blockouts (start_date, end_date, timeslot, title, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{b.StartDate, b.EndDate, b.Timeslot, b.Title, b.Description}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&b.ID); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAllBlockouts(ctx context.Context) ([]*domain.Blockout, error) {
	query := `SELECT ` + blockoutColumns + ` FROM blockouts ORDER BY start_date`
	return r.listBlockouts(ctx, query)
}

// ListBlockoutsBetween 返回与 [from, to] 有交集的封锁期
func (r *Repository) ListBlockoutsBetween(ctx context.Context, from, to time.Time) ([]*domain.Blockout, error) {
	query := `
		SELECT ` + blockoutColumns + ` FROM blockouts
		WHERE start_date <= $2 AND end_date >= $1
		ORDER BY start_date
	`
	return r.listBlockouts(ctx, query, from, to)
}

func (r *Repository) listBlockouts(ctx context.Context, query string, args ...any) ([]*domain.Blockout, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blockouts := make([]*domain.Blockout, 0)
	for rows.Next() {
		b, err := scanBlockout(rows)
		if err != nil {
			return nil, err
		}
		blockouts = append(blockouts, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return blockouts, nil
}

func (r *Repository) DeleteBlockout(ctx context.Context, id int64) error {
	query := `DELETE FROM blockouts WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	return nil
}
