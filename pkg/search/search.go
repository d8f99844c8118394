// Package search finds sections and items in a space by substring and
// attaches the breadcrumb path of each hit.
package search

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"tgspace-backend/pkg/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
	QuickLimit   = 10
)

// Hit is one search result. Type is "section" or "item".
type Hit struct {
	Type         string          `json:"type"`
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	ParentID     *int64          `json:"parentId,omitempty"`
	ItemType     models.ItemType `json:"itemType,omitempty"`
	Content      string          `json:"content,omitempty"`
	FileName     string          `json:"fileName,omitempty"`
	SectionID    int64           `json:"sectionId,omitempty"`
	SectionTitle string          `json:"sectionTitle,omitempty"`
	Path         []string        `json:"path,omitempty"`
}

// Store runs the raw queries.
type Store interface {
	SearchSections(ctx context.Context, spaceID int64, query string, limit int) ([]models.SectionNode, error)
	SearchItems(ctx context.Context, spaceID int64, query string, limit int) ([]models.Item, error)
}

// PathResolver returns root-first section titles.
type PathResolver interface {
	PathTitles(ctx context.Context, sectionID int64) ([]string, error)
}

type Service struct {
	store Store
	paths PathResolver
}

func NewService(store Store, paths PathResolver) *Service {
	return &Service{store: store, paths: paths}
}

// ClampLimit maps a requested limit onto (0, MaxLimit], defaulting to DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Search returns matching sections followed by matching items, at most limit in total.
func (s *Service) Search(ctx context.Context, spaceID int64, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Hit{}, nil
	}
	limit = ClampLimit(limit)

	var (
		sections []models.SectionNode
		found    []models.Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sections, err = s.store.SearchSections(gctx, spaceID, query, limit)
		return err
	})
	g.Go(func() error {
		var err error
		found, err = s.store.SearchItems(gctx, spaceID, query, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(sections)+len(found))
	for _, sec := range sections {
		path, err := s.paths.PathTitles(ctx, sec.ID)
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Type: "section", ID: sec.ID, Title: sec.Title, ParentID: sec.ParentID, Path: path})
	}
	for _, it := range found {
		path, err := s.paths.PathTitles(ctx, it.SectionID)
		if err != nil {
			return nil, err
		}
		hit := Hit{
			Type:      "item",
			ID:        it.ID,
			ItemType:  it.Type,
			Title:     it.Title,
			Content:   it.Content,
			FileName:  it.FileName,
			SectionID: it.SectionID,
			Path:      path,
		}
		if len(path) > 0 {
			hit.SectionTitle = path[len(path)-1]
		}
		hits = append(hits, hit)
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Quick matches section titles only, for autocompletion.
func (s *Service) Quick(ctx context.Context, spaceID int64, query string) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Hit{}, nil
	}
	sections, err := s.store.SearchSections(ctx, spaceID, query, QuickLimit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(sections))
	for _, sec := range sections {
		hits = append(hits, Hit{Type: "section", ID: sec.ID, Title: sec.Title})
	}
	return hits, nil
}
