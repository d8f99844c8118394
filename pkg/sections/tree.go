// Package sections implements the section tree: appending, moving without
// creating cycles, breadcrumb paths and ownership checks.
package sections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/models"
)

var (
	ErrSelfParent = errors.New("section cannot be its own parent")
	ErrCycle      = errors.New("cannot move section into its own descendant")
	ErrEmptyTitle = errors.New("title is required")
	ErrCrossSpace = errors.New("section belongs to another space")
)

// Store is the storage the tree reads and writes.
type Store interface {
	CreateSection(ctx context.Context, s *models.Section) error
	GetSectionNode(ctx context.Context, id int64) (*models.SectionNode, error)
	MoveSection(ctx context.Context, id int64, parentID *int64) (*models.Section, error)
	DeleteSection(ctx context.Context, id int64) error
}

// Tree enforces the structural rules of sections. It holds no state; every
// call re-reads the store.
type Tree struct {
	store Store
}

func NewTree(store Store) *Tree {
	return &Tree{store: store}
}

// Create appends a new section after its last sibling.
func (t *Tree) Create(ctx context.Context, spaceID int64, parentID *int64, title string, creatorID *int64) (*models.Section, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	s := &models.Section{
		Title:       title,
		ParentID:    parentID,
		SpaceID:     spaceID,
		CreatedByID: creatorID,
	}
	if err := t.store.CreateSection(ctx, s); err != nil {
		return nil, fmt.Errorf("create section: %w", err)
	}
	return s, nil
}

// Move re-parents id under newParentID (nil for root). The section becomes
// the last sibling at its destination.
func (t *Tree) Move(ctx context.Context, id int64, newParentID *int64) (*models.Section, error) {
	if newParentID != nil && *newParentID == id {
		return nil, ErrSelfParent
	}
	if _, err := t.store.GetSectionNode(ctx, id); err != nil {
		return nil, err
	}
	if newParentID != nil {
		under, err := t.IsDescendant(ctx, *newParentID, id)
		if err != nil {
			return nil, err
		}
		if under {
			return nil, ErrCycle
		}
	}
	s, err := t.store.MoveSection(ctx, id, newParentID)
	if err != nil {
		return nil, fmt.Errorf("move section: %w", err)
	}
	return s, nil
}

// IsDescendant reports whether candidate is ancestor itself or lies below it.
// The walk ends at a root, a missing section or a node already visited.
func (t *Tree) IsDescendant(ctx context.Context, candidate, ancestor int64) (bool, error) {
	visited := map[int64]bool{}
	cur := &candidate
	for cur != nil && !visited[*cur] {
		if *cur == ancestor {
			return true, nil
		}
		visited[*cur] = true

		node, err := t.store.GetSectionNode(ctx, *cur)
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		cur = node.ParentID
	}
	return false, nil
}

// PathToRoot returns the breadcrumbs from the root down to id. A missing
// section ends the walk, so a dangling parent yields a shorter path.
func (t *Tree) PathToRoot(ctx context.Context, id int64) ([]models.Breadcrumb, error) {
	var rev []models.Breadcrumb
	visited := map[int64]bool{}
	cur := &id
	for cur != nil && !visited[*cur] {
		visited[*cur] = true
		node, err := t.store.GetSectionNode(ctx, *cur)
		if errors.Is(err, database.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		rev = append(rev, models.Breadcrumb{ID: node.ID, Title: node.Title})
		cur = node.ParentID
	}

	path := make([]models.Breadcrumb, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path, nil
}

// PathTitles is PathToRoot reduced to titles.
func (t *Tree) PathTitles(ctx context.Context, id int64) ([]string, error) {
	path, err := t.PathToRoot(ctx, id)
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(path))
	for i, b := range path {
		titles[i] = b.Title
	}
	return titles, nil
}

// Delete removes id with all descendants and their items.
func (t *Tree) Delete(ctx context.Context, id int64) error {
	return t.store.DeleteSection(ctx, id)
}

// BelongsToSpace reports whether id exists in spaceID.
func (t *Tree) BelongsToSpace(ctx context.Context, id, spaceID int64) (bool, error) {
	node, err := t.store.GetSectionNode(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return node.SpaceID == spaceID, nil
}

// IsCreatedBy reports whether userID created id.
func (t *Tree) IsCreatedBy(ctx context.Context, id, userID int64) (bool, error) {
	node, err := t.store.GetSectionNode(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return node.CreatedByID != nil && *node.CreatedByID == userID, nil
}

// Lookup loads id and checks it lives in spaceID; otherwise database.ErrNotFound.
func (t *Tree) Lookup(ctx context.Context, id, spaceID int64) (*models.SectionNode, error) {
	node, err := t.store.GetSectionNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node.SpaceID != spaceID {
		return nil, fmt.Errorf("%w: %w", database.ErrNotFound, ErrCrossSpace)
	}
	return node, nil
}
