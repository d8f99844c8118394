package models

import "time"

// ItemType is the kind of content an item holds.
type ItemType string

const (
	ItemText  ItemType = "text"
	ItemLink  ItemType = "link"
	ItemFile  ItemType = "file"
	ItemImage ItemType = "image"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case ItemText, ItemLink, ItemFile, ItemImage:
		return true
	}
	return false
}

// HasFile reports whether the type stores a Telegram file reference.
func (t ItemType) HasFile() bool {
	return t == ItemFile || t == ItemImage
}

// Item is a piece of content inside a section
type Item struct {
	ID          int64     `json:"id" db:"id"`
	Type        ItemType  `json:"type" db:"type"`
	Title       string    `json:"title,omitempty" db:"title"`
	Content     string    `json:"content,omitempty" db:"content"`
	FileID      string    `json:"fileId,omitempty" db:"file_id"`
	FileName    string    `json:"fileName,omitempty" db:"file_name"`
	FileSize    int64     `json:"fileSize,omitempty" db:"file_size"`
	MimeType    string    `json:"mimeType,omitempty" db:"mime_type"`
	Order       int       `json:"order" db:"order"`
	SectionID   int64     `json:"sectionId" db:"section_id"`
	SpaceID     int64     `json:"spaceId" db:"space_id"`
	CreatedByID *int64    `json:"createdById" db:"created_by_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
	CreatedBy   *Author   `json:"createdBy,omitempty"`
}

// ItemPatch lists the mutable fields of an item; nil means unchanged.
type ItemPatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Order   *int    `json:"order"`
}
