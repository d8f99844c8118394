package database

import (
	"context"
	"database/sql"

	"tgspace-backend/pkg/models"
)

const sectionSelect = `
SELECT s.id, s.title, s.sort_order, s.parent_id, s.space_id, s.created_by_id, s.created_at, s.updated_at,
       (SELECT COUNT(*) FROM sections c WHERE c.parent_id = s.id),
       (SELECT COUNT(*) FROM items i WHERE i.section_id = s.id),
       u.id, COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.username, '')
FROM sections s
LEFT JOIN users u ON u.id = s.created_by_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (*models.Section, error) {
	var (
		s                 models.Section
		parentID, creator sql.NullInt64
		authorID          sql.NullInt64
		count             models.SectionCount
		author            models.Author
	)
	err := row.Scan(&s.ID, &s.Title, &s.Order, &parentID, &s.SpaceID, &creator, &s.CreatedAt, &s.UpdatedAt,
		&count.Children, &count.Items,
		&authorID, &author.FirstName, &author.LastName, &author.Username)
	if err != nil {
		return nil, err
	}
	s.ParentID = int64Ptr(parentID)
	s.CreatedByID = int64Ptr(creator)
	s.Count = &count
	if authorID.Valid {
		author.ID = authorID.Int64
		s.CreatedBy = &author
	}
	return &s, nil
}

const createSectionQuery = `
INSERT INTO sections (title, sort_order, parent_id, space_id, created_by_id)
SELECT $1, COALESCE(MAX(sort_order) + 1, 0), $2::BIGINT, $3, $4::BIGINT
FROM sections
WHERE space_id = $3 AND parent_id IS NOT DISTINCT FROM $2::BIGINT
RETURNING id, sort_order, created_at, updated_at`

// CreateSection allocates the order in the same statement as the insert.
func (p *PostgresDatabase) CreateSection(ctx context.Context, s *models.Section) error {
	err := p.db.QueryRowContext(ctx, createSectionQuery, s.Title, s.ParentID, s.SpaceID, s.CreatedByID).
		Scan(&s.ID, &s.Order, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	s.Count = &models.SectionCount{}
	return nil
}

func (p *PostgresDatabase) GetSection(ctx context.Context, id int64) (*models.Section, error) {
	s, err := scanSection(p.db.QueryRowContext(ctx, sectionSelect+` WHERE s.id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return s, nil
}

func (p *PostgresDatabase) GetSectionNode(ctx context.Context, id int64) (*models.SectionNode, error) {
	var (
		n                 models.SectionNode
		parentID, creator sql.NullInt64
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, title, parent_id, space_id, created_by_id FROM sections WHERE id = $1`, id).
		Scan(&n.ID, &n.Title, &parentID, &n.SpaceID, &creator)
	if err != nil {
		return nil, mapErr(err)
	}
	n.ParentID = int64Ptr(parentID)
	n.CreatedByID = int64Ptr(creator)
	return &n, nil
}

func (p *PostgresDatabase) ListSections(ctx context.Context, spaceID int64, parentID *int64) ([]models.Section, error) {
	rows, err := p.db.QueryContext(ctx, sectionSelect+`
WHERE s.space_id = $1 AND s.parent_id IS NOT DISTINCT FROM $2::BIGINT
ORDER BY s.sort_order ASC, s.created_at ASC, s.id ASC`, spaceID, parentID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []models.Section{}
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (p *PostgresDatabase) UpdateSection(ctx context.Context, id int64, patch models.SectionPatch) (*models.Section, error) {
	res, err := p.db.ExecContext(ctx, `
UPDATE sections SET
    title      = COALESCE($2, title),
    sort_order = COALESCE($3, sort_order),
    updated_at = NOW()
WHERE id = $1`, id, patch.Title, patch.Order)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return p.GetSection(ctx, id)
}

const moveSectionQuery = `
UPDATE sections SET
    parent_id  = $2::BIGINT,
    sort_order = (
        SELECT COALESCE(MAX(c.sort_order) + 1, 0) FROM sections c
        WHERE c.space_id = sections.space_id
          AND c.parent_id IS NOT DISTINCT FROM $2::BIGINT
          AND c.id <> sections.id
    ),
    updated_at = NOW()
WHERE id = $1`

func (p *PostgresDatabase) MoveSection(ctx context.Context, id int64, parentID *int64) (*models.Section, error) {
	res, err := p.db.ExecContext(ctx, moveSectionQuery, id, parentID)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return p.GetSection(ctx, id)
}

// DeleteSection relies on ON DELETE CASCADE for descendants and items.
func (p *PostgresDatabase) DeleteSection(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return expectAffected(res)
}
