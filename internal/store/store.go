package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicateDomain     = errors.New("account with this shop domain already exists")
	ErrSuperAdminImmutable = errors.New("super-admin status cannot be changed")
)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool and checks the server is reachable.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot reach PostgreSQL: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                    BIGSERIAL PRIMARY KEY,
	title                 VARCHAR(255) NOT NULL,
	shop_domain           VARCHAR(255) NOT NULL UNIQUE,
	api_key               VARCHAR(255) NOT NULL,
	api_password          VARCHAR(255) NOT NULL,
	paid_till             DATE,
	notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	last_notified_at      DATE,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS telegram_chats (
	id             BIGSERIAL PRIMARY KEY,
	chat_id        VARCHAR(128) NOT NULL UNIQUE,
	username       VARCHAR(255),
	first_name     VARCHAR(255),
	last_name      VARCHAR(255),
	is_admin       BOOLEAN NOT NULL DEFAULT FALSE,
	is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT super_admin_is_admin CHECK (NOT is_super_admin OR is_admin)
);
`

// Migrate creates the tables when they don't exist yet.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
