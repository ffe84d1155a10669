package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

const arrangementColumns = `request_id, arrangement_id, staff_id, arrangement_date, timeslot, reason`

func scanArrangement(s scanner) (*domain.Arrangement, error) {
	a := &domain.Arrangement{}
	if err := s.Scan(&a.RequestID, &a.ArrangementID, &a.StaffID, &a.Date, &a.Timeslot, &a.Reason); err != nil {
		return nil, err
	}
	a.Date = domain.Date(a.Date)
	return a, nil
}

// CreateArrangement 的序号取同一申请内已有的最大序号加一
func (r *Repository) CreateArrangement(ctx context.Context, a *domain.Arrangement) (int32, error) {
	query := `
		INSERT INTO arrangements (` + arrangementColumns + `)
		VALUES (
			$1,
			(SELECT COALESCE(MAX(arrangement_id), 0) + 1 FROM arrangements WHERE request_id = $1),
			$2, $3, $4, $5
		)
		RETURNING arrangement_id
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{a.RequestID, a.StaffID, a.Date, a.Timeslot, a.Reason}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&a.ArrangementID); err != nil {
		return 0, translate(err)
	}

	return a.ArrangementID, nil
}

func (r *Repository) GetArrangement(ctx context.Context, requestID int64, arrangementID int32) (*domain.Arrangement, error) {
	query := `SELECT ` + arrangementColumns + ` FROM arrangements WHERE request_id = $1 AND arrangement_id = $2`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	a, err := scanArrangement(r.dbpool.QueryRowContext(ctx, query, requestID, arrangementID))
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

func (r *Repository) ListArrangementsByStaffID(ctx context.Context, staffID int64) ([]*domain.Arrangement, error) {
	query := `SELECT ` + arrangementColumns + ` FROM arrangements WHERE staff_id = $1 ORDER BY arrangement_date`
	return r.listArrangements(ctx, query, staffID)
}

func (r *Repository) ListArrangementsByRequestID(ctx context.Context, requestID int64) ([]*domain.Arrangement, error) {
	query := `SELECT ` + arrangementColumns + ` FROM arrangements WHERE request_id = $1 ORDER BY arrangement_id`
	return r.listArrangements(ctx, query, requestID)
}

func (r *Repository) ListArrangementsOnDate(ctx context.Context, staffIDs []int64, date time.Time) ([]*domain.Arrangement, error) {
	if len(staffIDs) == 0 {
		return []*domain.Arrangement{}, nil
	}

	query := `
		SELECT ` + arrangementColumns + ` FROM arrangements
		WHERE staff_id = ANY($1) AND arrangement_date = $2
		ORDER BY staff_id
	`
	return r.listArrangements(ctx, query, staffIDs, date)
}

func (r *Repository) listArrangements(ctx context.Context, query string, args ...any) ([]*domain.Arrangement, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	arrangements := make([]*domain.Arrangement, 0)
	for rows.Next() {
		a, err := scanArrangement(rows)
		if err != nil {
			return nil, err
		}
		arrangements = append(arrangements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return arrangements, nil
}

func (r *Repository) DeleteArrangement(ctx context.Context, requestID int64, arrangementID int32) error {
	query := `DELETE FROM arrangements WHERE request_id = $1 AND arrangement_id = $2`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, requestID, arrangementID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	return nil
}
