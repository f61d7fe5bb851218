package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"insales-monitor/internal/models"
)

const accountColumns = `id, title, shop_domain, api_key, api_password, paid_till,
	notifications_enabled, last_notified_at, created_at, updated_at`

type AccountRepo struct {
	db DB
}

func NewAccountRepo(db DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Title, &a.ShopDomain, &a.APIKey, &a.APIPassword, &a.PaidTill,
		&a.NotificationsEnabled, &a.LastNotifiedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns every account ordered by title.
func (r *AccountRepo) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepo) Get(ctx context.Context, id int64) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return a, nil
}

// Create inserts a new account. A taken shop domain yields ErrDuplicateDomain
// and leaves the table untouched.
func (r *AccountRepo) Create(ctx context.Context, n models.NewAccount) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `
		INSERT INTO accounts (title, shop_domain, api_key, api_password, paid_till)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountColumns,
		n.Title, n.ShopDomain, n.APIKey, n.APIPassword, n.PaidTill))
	if isUniqueViolation(err) {
		return nil, ErrDuplicateDomain
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return a, nil
}

func (r *AccountRepo) UpdatePaidTill(ctx context.Context, id int64, paidTill *time.Time) error {
	return r.execOne(ctx, `UPDATE accounts SET paid_till = $2, updated_at = now() WHERE id = $1`, id, paidTill)
}

func (r *AccountRepo) SetNotificationsEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.execOne(ctx, `UPDATE accounts SET notifications_enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
}

func (r *AccountRepo) UpdateLastNotified(ctx context.Context, id int64, day time.Time) error {
	return r.execOne(ctx, `UPDATE accounts SET last_notified_at = $2, updated_at = now() WHERE id = $1`, id, models.DateOf(day))
}

func (r *AccountRepo) execOne(ctx context.Context, sql string, id int64, value any) error {
	tag, err := r.db.Exec(ctx, sql, id, value)
	if err != nil {
		return fmt.Errorf("failed to update account %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
