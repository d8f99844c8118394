package database

import (
	"context"
	"database/sql"

	"tgspace-backend/pkg/models"
)

func (p *PostgresDatabase) SearchSections(ctx context.Context, spaceID int64, query string, limit int) ([]models.SectionNode, error) {
	rows, err := p.db.QueryContext(ctx, `
SELECT id, title, parent_id, space_id, created_by_id
FROM sections
WHERE space_id = $1 AND title ILIKE $2
ORDER BY id ASC
LIMIT $3`, spaceID, likePattern(query), limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []models.SectionNode{}
	for rows.Next() {
		var (
			n                 models.SectionNode
			parentID, creator sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.Title, &parentID, &n.SpaceID, &creator); err != nil {
			return nil, mapErr(err)
		}
		n.ParentID = int64Ptr(parentID)
		n.CreatedByID = int64Ptr(creator)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (p *PostgresDatabase) SearchItems(ctx context.Context, spaceID int64, query string, limit int) ([]models.Item, error) {
	return p.queryItems(ctx, itemSelect+`
WHERE i.space_id = $1 AND (i.title ILIKE $2 OR i.content ILIKE $2 OR i.file_name ILIKE $2)
ORDER BY i.id ASC
LIMIT $3`, spaceID, likePattern(query), limit)
}
