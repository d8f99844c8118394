// Package items validates and stores section content: notes, links,
// uploaded files and images.
package items

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/models"
)

// ErrValidation marks input the client must fix.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Input is the client-supplied shape of a new item.
type Input struct {
	Type     models.ItemType `json:"type"`
	Title    string          `json:"title"`
	Content  string          `json:"content"`
	FileID   string          `json:"fileId"`
	FileName string          `json:"fileName"`
	FileSize int64           `json:"fileSize"`
	MimeType string          `json:"mimeType"`
}

// Normalize validates in and returns the item to persist, with fields that
// mean nothing for the type cleared.
func Normalize(in Input) (models.Item, error) {
	it := models.Item{
		Type:  models.ItemType(strings.ToLower(strings.TrimSpace(string(in.Type)))),
		Title: strings.TrimSpace(in.Title),
	}
	if !it.Type.Valid() {
		return it, invalid("type must be one of text, link, file, image")
	}

	if it.Type.HasFile() {
		it.FileID = strings.TrimSpace(in.FileID)
		if it.FileID == "" {
			return it, invalid("fileId is required for %s items", it.Type)
		}
		if in.FileSize < 0 {
			return it, invalid("fileSize must not be negative")
		}
		it.FileName = strings.TrimSpace(in.FileName)
		it.FileSize = in.FileSize
		it.MimeType = strings.TrimSpace(in.MimeType)
		return it, nil
	}

	content, err := ValidateContent(it.Type, in.Content)
	if err != nil {
		return it, err
	}
	it.Content = content
	return it, nil
}

// ValidateContent checks content for a text or link item and returns it trimmed.
func ValidateContent(t models.ItemType, content string) (string, error) {
	content = strings.TrimSpace(content)
	switch t {
	case models.ItemText:
		if content == "" {
			return "", invalid("content is required for text items")
		}
	case models.ItemLink:
		if !isHTTPURL(content) {
			return "", invalid("content must be an absolute http(s) URL")
		}
	}
	return content, nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Store is the persistence the service needs.
type Store interface {
	CreateItem(ctx context.Context, it *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ListItems(ctx context.Context, sectionID int64) ([]models.Item, error)
	UpdateItem(ctx context.Context, id int64, patch models.ItemPatch) (*models.Item, error)
	MoveItem(ctx context.Context, id, sectionID int64) (*models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	ReorderItems(ctx context.Context, sectionID int64, itemIDs []int64) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create validates in and appends it to sectionID.
func (s *Service) Create(ctx context.Context, sectionID, spaceID int64, in Input, creatorID *int64) (*models.Item, error) {
	it, err := Normalize(in)
	if err != nil {
		return nil, err
	}
	it.SectionID = sectionID
	it.SpaceID = spaceID
	it.CreatedByID = creatorID
	if err := s.store.CreateItem(ctx, &it); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return &it, nil
}

// Lookup loads id and checks it lives in spaceID; otherwise database.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, id, spaceID int64) (*models.Item, error) {
	it, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.SpaceID != spaceID {
		return nil, database.ErrNotFound
	}
	return it, nil
}

func (s *Service) List(ctx context.Context, sectionID int64) ([]models.Item, error) {
	return s.store.ListItems(ctx, sectionID)
}

// Update applies patch to it. Content is re-validated for text and link
// items and ignored for file and image items.
func (s *Service) Update(ctx context.Context, it *models.Item, patch models.ItemPatch) (*models.Item, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}
	if patch.Content != nil {
		if it.Type.HasFile() {
			patch.Content = nil
		} else {
			content, err := ValidateContent(it.Type, *patch.Content)
			if err != nil {
				return nil, err
			}
			patch.Content = &content
		}
	}
	if patch.Order != nil && *patch.Order < 0 {
		return nil, invalid("order must not be negative")
	}
	updated, err := s.store.UpdateItem(ctx, it.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return updated, nil
}

// Move appends id to the end of sectionID.
func (s *Service) Move(ctx context.Context, id, sectionID int64) (*models.Item, error) {
	it, err := s.store.MoveItem(ctx, id, sectionID)
	if err != nil {
		return nil, fmt.Errorf("move item: %w", err)
	}
	return it, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteItem(ctx, id)
}

// Reorder sets each item's order to its index in itemIDs.
func (s *Service) Reorder(ctx context.Context, sectionID int64, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return invalid("itemIds must not be empty")
	}
	seen := make(map[int64]bool, len(itemIDs))
	for _, id := range itemIDs {
		if seen[id] {
			return invalid("duplicate item id %d", id)
		}
		seen[id] = true
	}
	return s.store.ReorderItems(ctx, sectionID, itemIDs)
}

// IsOwner reports whether userID created it.
func IsOwner(it *models.Item, userID int64) bool {
	return it.CreatedByID != nil && *it.CreatedByID == userID
}

// NotifyOnCreate reports whether creating an item of type t announces it to the group.
func NotifyOnCreate(t models.ItemType) bool {
	return t == models.ItemText || t == models.ItemLink
}
