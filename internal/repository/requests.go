package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

const requestColumns = `id, staff_id, manager_id, request_date, timeslot, status, reason, remark,
	arrangement_date, recurring_day, start_date, end_date, created_at, updated_at, version`

func scanRequest(s scanner) (*domain.Request, error) {
	req := &domain.Request{}
	var (
		arrangementDate sql.NullTime
		recurringDay    sql.NullString
		startDate       sql.NullTime
		endDate         sql.NullTime
	)

	dst := []any{&req.ID, &req.StaffID, &req.ManagerID, &req.RequestDate, &req.Timeslot, &req.Status, &req.Reason, &req.Remark,
		&arrangementDate, &recurringDay, &startDate, &endDate, &req.CreatedAt, &req.UpdatedAt, &req.Version}
	if err := s.Scan(dst...); err != nil {
		return nil, err
	}

	req.RequestDate = domain.Date(req.RequestDate)
	if arrangementDate.Valid {
		date := domain.Date(arrangementDate.Time)
		req.ArrangementDate = &date
	}
	if recurringDay.Valid {
		req.Recurrence = &domain.Recurrence{
			Weekday:   domain.Weekday(recurringDay.String),
			StartDate: domain.Date(startDate.Time),
			EndDate:   domain.Date(endDate.Time),
		}
	}
	req.ArrangementDates = make([]time.Time, 0)

	return req, nil
}

func (r *Repository) CreateRequest(ctx context.Context, req *domain.Request) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var recurringDay *string
	var startDate, endDate *time.Time
	if req.Recurrence != nil {
		day := string(req.Recurrence.Weekday)
		recurringDay = &day
		startDate = &req.Recurrence.StartDate
		endDate = &req.Recurrence.EndDate
	}

	query := `
		INSERT INTO requests (staff_id, manager_id, request_date, timeslot, status, reason, remark,
			arrangement_date, recurring_day, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at, version
	`
	args := []any{req.StaffID, req.ManagerID, req.RequestDate, req.Timeslot, req.Status, req.Reason, req.Remark,
		req.ArrangementDate, recurringDay, startDate, endDate}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt, &req.Version); err != nil {
		return err
	}

	for _, date := range req.ArrangementDates {
		query := `INSERT INTO request_dates (request_id, date) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, query, req.ID, date); err != nil {
			return translate(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetRequestByID(ctx context.Context, id int64) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	req, err := scanRequest(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}

	if err := r.attachDates(ctx, []*domain.Request{req}); err != nil {
		return nil, err
	}

	return req, nil
}

// UpdateRequestStatus 只有当前状态等于 expected 时才会更新，用于避免两个审批操作同时生效
func (r *Repository) UpdateRequestStatus(ctx context.Context, id int64, status domain.RequestStatus, remark string, expected domain.RequestStatus) error {
	query := `
		UPDATE requests
		SET status = $1, remark = $2, updated_at = NOW(), version = version + 1
		WHERE id = $3 AND status = $4
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, status, remark, id, expected)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// 没有更新任何行：要么申请不存在，要么状态已经被其他操作修改
	var exists bool
	if err := r.dbpool.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConcurrentModification
}

func (r *Repository) ListOverduePendingRequests(ctx context.Context, cutoff time.Time) ([]*domain.Request, error) {
	query := `
		SELECT ` + requestColumns + ` FROM requests
		WHERE status = $1 AND request_date <= $2
		ORDER BY request_date, id
	`
	return r.listRequests(ctx, query, domain.StatusPending, cutoff)
}

func (r *Repository) ListRequestsByStaffID(ctx context.Context, staffID int64) ([]*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE staff_id = $1 ORDER BY created_at DESC, id DESC`
	return r.listRequests(ctx, query, staffID)
}

func (r *Repository) ListRequestsByManagerID(ctx context.Context, managerID int64) ([]*domain.Request, error) {
	query := `
		SELECT ` + requestColumns + ` FROM requests
		WHERE manager_id = $1 AND staff_id <> $1
		ORDER BY created_at DESC, id DESC
	`
	return r.listRequests(ctx, query, managerID)
}

func (r *Repository) listRequests(ctx context.Context, query string, args ...any) ([]*domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*domain.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachDates(ctx, requests); err != nil {
		return nil, err
	}

	return requests, nil
}

// attachDates 一次性查询并填充这些申请展开后的日期
func (r *Repository) attachDates(ctx context.Context, requests []*domain.Request) error {
	if len(requests) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(requests))
	byID := make(map[int64]*domain.Request, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ID)
		byID[req.ID] = req
	}

	query := `SELECT request_id, date FROM request_dates WHERE request_id = ANY($1) ORDER BY request_id, date`
	rows, err := r.dbpool.QueryContext(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var requestID int64
		var date time.Time
		if err := rows.Scan(&requestID, &date); err != nil {
			return err
		}
		if req, ok := byID[requestID]; ok {
			req.ArrangementDates = append(req.ArrangementDates, domain.Date(date))
		}
	}

	return rows.Err()
}
