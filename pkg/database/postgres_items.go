package database

import (
	"context"
	"database/sql"

	"tgspace-backend/pkg/models"
)

const itemSelect = `
SELECT i.id, i.type, COALESCE(i.title, ''), COALESCE(i.content, ''), COALESCE(i.file_id, ''),
       COALESCE(i.file_name, ''), COALESCE(i.file_size, 0), COALESCE(i.mime_type, ''),
       i.sort_order, i.section_id, i.space_id, i.created_by_id, i.created_at, i.updated_at,
       u.id, COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.username, '')
FROM items i
LEFT JOIN users u ON u.id = i.created_by_id`

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		it                models.Item
		creator, authorID sql.NullInt64
		author            models.Author
	)
	err := row.Scan(&it.ID, &it.Type, &it.Title, &it.Content, &it.FileID,
		&it.FileName, &it.FileSize, &it.MimeType,
		&it.Order, &it.SectionID, &it.SpaceID, &creator, &it.CreatedAt, &it.UpdatedAt,
		&authorID, &author.FirstName, &author.LastName, &author.Username)
	if err != nil {
		return nil, err
	}
	it.CreatedByID = int64Ptr(creator)
	if authorID.Valid {
		author.ID = authorID.Int64
		it.CreatedBy = &author
	}
	return &it, nil
}

func (p *PostgresDatabase) queryItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

const createItemQuery = `
INSERT INTO items (type, title, content, file_id, file_name, file_size, mime_type, sort_order, section_id, space_id, created_by_id)
SELECT $1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6::BIGINT, 0), NULLIF($7, ''),
       COALESCE(MAX(sort_order) + 1, 0), $8, $9, $10::BIGINT
FROM items
WHERE section_id = $8
RETURNING id, sort_order, created_at, updated_at`

// CreateItem appends it to its section.
func (p *PostgresDatabase) CreateItem(ctx context.Context, it *models.Item) error {
	err := p.db.QueryRowContext(ctx, createItemQuery,
		string(it.Type), it.Title, it.Content, it.FileID, it.FileName, it.FileSize, it.MimeType,
		it.SectionID, it.SpaceID, it.CreatedByID).
		Scan(&it.ID, &it.Order, &it.CreatedAt, &it.UpdatedAt)
	return mapErr(err)
}

func (p *PostgresDatabase) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	it, err := scanItem(p.db.QueryRowContext(ctx, itemSelect+` WHERE i.id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return it, nil
}

func (p *PostgresDatabase) ListItems(ctx context.Context, sectionID int64) ([]models.Item, error) {
	return p.queryItems(ctx, itemSelect+`
WHERE i.section_id = $1
ORDER BY i.sort_order ASC, i.created_at ASC, i.id ASC`, sectionID)
}

// UpdateItem treats an empty title or content as a request to clear it.
func (p *PostgresDatabase) UpdateItem(ctx context.Context, id int64, patch models.ItemPatch) (*models.Item, error) {
	res, err := p.db.ExecContext(ctx, `
UPDATE items SET
    title      = CASE WHEN $2::TEXT IS NULL THEN title ELSE NULLIF($2::TEXT, '') END,
    content    = CASE WHEN $3::TEXT IS NULL THEN content ELSE NULLIF($3::TEXT, '') END,
    sort_order = COALESCE($4, sort_order),
    updated_at = NOW()
WHERE id = $1`, id, patch.Title, patch.Content, patch.Order)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return p.GetItem(ctx, id)
}

const moveItemQuery = `
UPDATE items SET
    section_id = s.id,
    space_id   = s.space_id,
    sort_order = (SELECT COALESCE(MAX(o.sort_order) + 1, 0) FROM items o WHERE o.section_id = s.id AND o.id <> items.id),
    updated_at = NOW()
FROM sections s
WHERE items.id = $1 AND s.id = $2`

func (p *PostgresDatabase) MoveItem(ctx context.Context, id, sectionID int64) (*models.Item, error) {
	res, err := p.db.ExecContext(ctx, moveItemQuery, id, sectionID)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return p.GetItem(ctx, id)
}

func (p *PostgresDatabase) DeleteItem(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return expectAffected(res)
}

// ReorderItems runs in one transaction; an id outside the section aborts it.
func (p *PostgresDatabase) ReorderItems(ctx context.Context, sectionID int64, itemIDs []int64) error {
	return WithTx(ctx, p.db, nil, func(ctx context.Context, tx DBTX) error {
		for idx, id := range itemIDs {
			res, err := tx.ExecContext(ctx,
				`UPDATE items SET sort_order = $1, updated_at = NOW() WHERE id = $2 AND section_id = $3`,
				idx, id, sectionID)
			if err != nil {
				return mapErr(err)
			}
			if err := expectAffected(res); err != nil {
				return err
			}
		}
		return nil
	})
}
