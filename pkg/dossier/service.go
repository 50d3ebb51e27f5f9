package dossier

import (
	"context"

	"github.com/google/uuid"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/schema"
)

// Service is the content repository engine: validated entity mutations,
// version resolution with read-time payload migration, publishing state
// transitions and schema evolution. It is a library-level engine invoked
// in-process by a serving layer; it exposes no transport of its own.
//
// Every multi-step operation runs inside one database adapter transaction
// and validates before it writes: a validation failure aborts before any
// write is issued.
type Service interface {
	// Entity operations
	CreateEntity(ctx context.Context, req CreateEntityRequest) (*Entity, error)
	UpdateEntity(ctx context.Context, req UpdateEntityRequest) (*Entity, error)
	PublishEntity(ctx context.Context, id uuid.UUID, authKeys ...string) (*Entity, error)
	UnpublishEntity(ctx context.Context, id uuid.UUID, authKeys ...string) (*Entity, error)
	ArchiveEntity(ctx context.Context, id uuid.UUID, authKeys ...string) (*Entity, error)

	// Entity reads. GetEntity resolves the draft (or a requested version);
	// GetPublishedEntity resolves the published pointer through the
	// reader-facing schema view.
	GetEntity(ctx context.Context, req GetEntityRequest) (*Entity, error)
	GetPublishedEntity(ctx context.Context, req GetEntityRequest) (*Entity, error)
	ListEntities(ctx context.Context, req ListEntitiesRequest) (*EntityPage, error)
	CountEntities(ctx context.Context, req CountEntitiesRequest) (int64, error)
	EntityHistory(ctx context.Context, id uuid.UUID, authKeys ...string) ([]VersionInfo, error)

	// Schema operations
	LoadSchema(ctx context.Context) error
	GetSchemaSpec(ctx context.Context) *schema.Spec
	UpdateSchemaSpec(ctx context.Context, spec *schema.Spec) (*schema.Spec, error)
}
