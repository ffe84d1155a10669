package repository

import (
	"context"
	"time"
)

const schema = `
	CREATE TABLE IF NOT EXISTS employees (
		id                BIGINT PRIMARY KEY,
		first_name        TEXT NOT NULL,
		last_name         TEXT NOT NULL,
		department        TEXT NOT NULL,
		position          TEXT NOT NULL,
		country           TEXT NOT NULL,
		email             TEXT NOT NULL,
		reporting_manager BIGINT REFERENCES employees (id),
		role              TEXT NOT NULL,
		password_hash     TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version           INT NOT NULL DEFAULT 1,
		CONSTRAINT employees_email_key UNIQUE (email)
	);

	CREATE INDEX IF NOT EXISTS idx_employees_reporting_manager ON employees (reporting_manager);

	CREATE TABLE IF NOT EXISTS requests (
		id               BIGSERIAL PRIMARY KEY,
		staff_id         BIGINT NOT NULL REFERENCES employees (id),
		manager_id       BIGINT NOT NULL,
		request_date     DATE NOT NULL,
		timeslot         TEXT NOT NULL,
		status           TEXT NOT NULL,
		reason           TEXT NOT NULL,
		remark           TEXT NOT NULL DEFAULT '',
		arrangement_date DATE,
		recurring_day    TEXT,
		start_date       DATE,
		end_date         DATE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version          INT NOT NULL DEFAULT 1,
		-- 单日日期和循环规则二者恰好存在其一
		CONSTRAINT requests_single_or_recurring CHECK (
			(arrangement_date IS NOT NULL AND recurring_day IS NULL) OR
			(arrangement_date IS NULL AND recurring_day IS NOT NULL AND start_date IS NOT NULL AND end_date IS NOT NULL)
		)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_staff ON requests (staff_id);
	CREATE INDEX IF NOT EXISTS idx_requests_manager ON requests (manager_id);
	CREATE INDEX IF NOT EXISTS idx_requests_pending ON requests (request_date) WHERE status = 'Pending';

	CREATE TABLE IF NOT EXISTS request_dates (
		request_id BIGINT NOT NULL REFERENCES requests (id) ON DELETE CASCADE,
		date       DATE NOT NULL,
		PRIMARY KEY (request_id, date)
	);

	CREATE TABLE IF NOT EXISTS arrangements (
		request_id       BIGINT NOT NULL REFERENCES requests (id),
		arrangement_id   INT NOT NULL,
		staff_id         BIGINT NOT NULL REFERENCES employees (id),
		arrangement_date DATE NOT NULL,
		timeslot         TEXT NOT NULL,
		reason           TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (request_id, arrangement_id),
		-- 同一员工同一天只能有一条安排，AM、PM、FULL 互斥
		CONSTRAINT arrangements_staff_date_key UNIQUE (staff_id, arrangement_date)
	);

	CREATE INDEX IF NOT EXISTS idx_arrangements_date ON arrangements (arrangement_date);

	CREATE TABLE IF NOT EXISTS blockouts (
		id          BIGSERIAL PRIMARY KEY,
		start_date  DATE NOT NULL,
		end_date    DATE NOT NULL,
		timeslot    TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT blockouts_period CHECK (start_date <= end_date)
	);
`

// Migrate 创建数据库表，可以重复执行
func (r *Repository) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, schema)
	return err
}
