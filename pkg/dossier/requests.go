package dossier

import "github.com/google/uuid"

// Request/Response DTOs

// CreateEntityRequest contains parameters for creating a new entity.
type CreateEntityRequest struct {
	Type      string
	Fields    FieldValues
	AuthKey   string
	CreatedBy string
}

// UpdateEntityRequest contains parameters for updating an entity's draft.
// Fields are merged over the prior draft version: unspecified fields inherit
// their previous values, and a field set to nil is cleared.
type UpdateEntityRequest struct {
	ID        uuid.UUID
	Fields    FieldValues
	AuthKeys  []string
	CreatedBy string
}

// GetEntityRequest contains parameters for resolving one entity.
// Version selects a specific version; nil resolves the draft.
type GetEntityRequest struct {
	ID       uuid.UUID
	Version  *int
	AuthKeys []string
}

// ListEntitiesRequest contains filters and paging for listing entities.
// Archived entities are excluded unless explicitly requested via Statuses.
type ListEntitiesRequest struct {
	Types    []string
	Statuses []EntityStatus
	AuthKeys []string
	Paging   Paging
}

// CountEntitiesRequest contains filters for counting entities.
type CountEntitiesRequest struct {
	Types    []string
	Statuses []EntityStatus
	AuthKeys []string
}
