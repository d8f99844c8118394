package database

import (
	"context"

	"tgspace-backend/pkg/models"
)

const findOrCreateSpaceQuery = `
INSERT INTO spaces (chat_id, title)
VALUES ($1, NULLIF($2, ''))
ON CONFLICT (chat_id) DO UPDATE SET
    title      = COALESCE(EXCLUDED.title, spaces.title),
    updated_at = CASE
        WHEN EXCLUDED.title IS NOT NULL AND EXCLUDED.title IS DISTINCT FROM spaces.title THEN NOW()
        ELSE spaces.updated_at
    END
RETURNING id, chat_id, COALESCE(title, ''), created_at, updated_at`

func (p *PostgresDatabase) FindOrCreateSpace(ctx context.Context, chatID int64, title string) (*models.Space, error) {
	var s models.Space
	err := p.db.QueryRowContext(ctx, findOrCreateSpaceQuery, chatID, title).
		Scan(&s.ID, &s.ChatID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (p *PostgresDatabase) GetSpaceByID(ctx context.Context, id int64) (*models.Space, error) {
	var s models.Space
	err := p.db.QueryRowContext(ctx,
		`SELECT id, chat_id, COALESCE(title, ''), created_at, updated_at FROM spaces WHERE id = $1`, id).
		Scan(&s.ID, &s.ChatID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

// DeleteSpaceByChatID removes the space and, through cascades, all its content.
func (p *PostgresDatabase) DeleteSpaceByChatID(ctx context.Context, chatID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM spaces WHERE chat_id = $1`, chatID)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}
