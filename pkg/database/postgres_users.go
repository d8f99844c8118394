package database

import (
	"context"

	"tgspace-backend/pkg/models"
)

const upsertUserQuery = `
INSERT INTO users (telegram_id, username, first_name, last_name)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
ON CONFLICT (telegram_id) DO UPDATE SET
    username   = COALESCE(EXCLUDED.username, users.username),
    first_name = COALESCE(EXCLUDED.first_name, users.first_name),
    last_name  = COALESCE(EXCLUDED.last_name, users.last_name),
    updated_at = NOW()
RETURNING id, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), created_at, updated_at`

// UpsertUser 创建或更新用户
func (p *PostgresDatabase) UpsertUser(ctx context.Context, in models.TelegramProfile) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx, upsertUserQuery, in.TelegramID, in.Username, in.FirstName, in.LastName).
		Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// GetUserByID 根据ID获取用户
func (p *PostgresDatabase) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx, `
SELECT id, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), created_at, updated_at
FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
