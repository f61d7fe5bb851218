package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"insales-monitor/internal/models"
)

const chatColumns = `id, chat_id, username, first_name, last_name, is_admin, is_super_admin, created_at, updated_at`

type ChatRepo struct {
	db DB
}

func NewChatRepo(db DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func scanChat(row pgx.Row) (*models.Chat, error) {
	var c models.Chat
	err := row.Scan(&c.ID, &c.ChatID, &c.Username, &c.FirstName, &c.LastName,
		&c.IsAdmin, &c.IsSuperAdmin, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert records a chat that talked to the bot. superAdmin grants both flags;
// existing flags are never lowered here.
func (r *ChatRepo) Upsert(ctx context.Context, p models.ChatProfile, superAdmin bool) (*models.Chat, error) {
	c, err := scanChat(r.db.QueryRow(ctx, `
		INSERT INTO telegram_chats (chat_id, username, first_name, last_name, is_admin, is_super_admin)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (chat_id) DO UPDATE SET
			username       = EXCLUDED.username,
			first_name     = EXCLUDED.first_name,
			last_name      = EXCLUDED.last_name,
			is_admin       = telegram_chats.is_admin OR EXCLUDED.is_super_admin,
			is_super_admin = telegram_chats.is_super_admin OR EXCLUDED.is_super_admin,
			updated_at     = now()
		RETURNING `+chatColumns,
		p.ChatID, p.Username, p.FirstName, p.LastName, superAdmin))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert chat %s: %w", p.ChatID, err)
	}
	return c, nil
}

func (r *ChatRepo) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	c, err := scanChat(r.db.QueryRow(ctx, `SELECT `+chatColumns+` FROM telegram_chats WHERE chat_id = $1`, chatID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat %s: %w", chatID, err)
	}
	return c, nil
}

func (r *ChatRepo) List(ctx context.Context) ([]*models.Chat, error) {
	return r.list(ctx, `SELECT `+chatColumns+` FROM telegram_chats ORDER BY id`)
}

// ListAdmins returns the chats that receive renewal notices.
func (r *ChatRepo) ListAdmins(ctx context.Context) ([]*models.Chat, error) {
	return r.list(ctx, `SELECT `+chatColumns+` FROM telegram_chats WHERE is_admin ORDER BY id`)
}

func (r *ChatRepo) list(ctx context.Context, sql string) ([]*models.Chat, error) {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// SetAdmin changes the admin flag of a regular chat. Super-admin rows are
// refused with ErrSuperAdminImmutable.
func (r *ChatRepo) SetAdmin(ctx context.Context, chatID string, isAdmin bool) (*models.Chat, error) {
	c, err := scanChat(r.db.QueryRow(ctx, `
		UPDATE telegram_chats SET is_admin = $2, updated_at = now()
		WHERE chat_id = $1 AND NOT is_super_admin
		RETURNING `+chatColumns, chatID, isAdmin))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update chat %s: %w", chatID, err)
	}

	existing, getErr := r.Get(ctx, chatID)
	if getErr != nil {
		return nil, getErr
	}
	if existing.IsSuperAdmin {
		return nil, ErrSuperAdminImmutable
	}
	return nil, ErrNotFound
}
