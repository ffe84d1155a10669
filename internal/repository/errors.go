package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

const uniqueViolation = "23505"

// translate 将数据库错误转换为领域错误，其余错误原样返回
func translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "arrangements_staff_date_key", "request_dates_pkey":
			return domain.ErrDuplicateDate
		}
	}

	return err
}
