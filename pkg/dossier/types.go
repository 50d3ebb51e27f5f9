package dossier

import (
	"time"

	"github.com/google/uuid"
)

// EntityStatus is the domain type for entity publishing states.
type EntityStatus string

// Entity status constants (typed).
const (
	StatusDraft     EntityStatus = "draft"
	StatusPublished EntityStatus = "published"
	StatusModified  EntityStatus = "modified"
	StatusWithdrawn EntityStatus = "withdrawn"
	StatusArchived  EntityStatus = "archived"
)

// FieldValues holds one version's decoded field payload.
type FieldValues map[string]any

// Entity is one logical content item, resolved to a specific version.
//
// Version and Fields describe the resolved snapshot (the draft by default;
// the published version for published reads). DraftVersion and
// PublishedVersion are the two pointers into the version chain.
type Entity struct {
	ID               uuid.UUID    `json:"id"`
	Type             string       `json:"type"`
	Name             string       `json:"name"`
	AuthKey          string       `json:"auth_key,omitempty"`
	Status           EntityStatus `json:"status"`
	DraftVersion     int          `json:"draft_version"`
	PublishedVersion *int         `json:"published_version,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`

	Version int         `json:"version"`
	Fields  FieldValues `json:"fields"`
}

// VersionInfo is the metadata of one immutable entity version snapshot.
type VersionInfo struct {
	EntityID      uuid.UUID `json:"entity_id"`
	Version       int       `json:"version"`
	EncodeVersion int       `json:"encode_version"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by,omitempty"`
}

// PageInfo describes the boundaries of one page of a list result.
type PageInfo struct {
	HasNextPage     bool   `json:"has_next_page"`
	HasPreviousPage bool   `json:"has_previous_page"`
	StartCursor     string `json:"start_cursor,omitempty"`
	EndCursor       string `json:"end_cursor,omitempty"`
}

// EntityPage is one page of a list operation.
type EntityPage struct {
	Entities []*Entity `json:"entities"`
	PageInfo PageInfo  `json:"page_info"`
}
