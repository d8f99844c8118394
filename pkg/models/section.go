package models

import "time"

// Section is a folder in a space's tree. ParentID nil means root.
type Section struct {
	ID          int64         `json:"id" db:"id"`
	Title       string        `json:"title" db:"title"`
	Order       int           `json:"order" db:"order"`
	ParentID    *int64        `json:"parentId" db:"parent_id"`
	SpaceID     int64         `json:"spaceId" db:"space_id"`
	CreatedByID *int64        `json:"createdById" db:"created_by_id"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" db:"updated_at"`
	Count       *SectionCount `json:"_count,omitempty"`
	CreatedBy   *Author       `json:"createdBy,omitempty"`
}

// SectionCount holds the number of direct children and items.
type SectionCount struct {
	Children int `json:"children"`
	Items    int `json:"items"`
}

// SectionNode is the minimal projection used by tree walks and guards.
type SectionNode struct {
	ID          int64
	Title       string
	ParentID    *int64
	SpaceID     int64
	CreatedByID *int64
}

// Breadcrumb is one step of a root-first path.
type Breadcrumb struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// SectionPatch lists the mutable fields of a section; nil means unchanged.
type SectionPatch struct {
	Title *string `json:"title"`
	Order *int    `json:"order"`
}

// SectionDetails is a section with its children, items and path.
type SectionDetails struct {
	Section
	Children []Section    `json:"children"`
	Items    []Item       `json:"items"`
	Path     []Breadcrumb `json:"path"`
}
