package dossier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter"
	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/schema"
)

// service implements the Service interface
type service struct {
	db      adapter.Adapter
	auth    AuthResolver
	log     zerolog.Logger
	schemas *schema.Holder
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithAdapter sets the database adapter for the service
func WithAdapter(db adapter.Adapter) Option {
	return func(s *service) {
		s.db = db
	}
}

// WithAuthResolver sets the authentication adapter for the service
func WithAuthResolver(auth AuthResolver) Option {
	return func(s *service) {
		s.auth = auth
	}
}

// WithLogger sets the logger for the service
func WithLogger(log zerolog.Logger) Option {
	return func(s *service) {
		s.log = log
	}
}

// New creates a new service instance with the given options. Call LoadSchema
// before serving to hydrate the schema registry from the specification log.
func New(options ...Option) (Service, error) {
	s := &service{
		auth: NoneAuthResolver{},
		log:  zerolog.Nop(),
	}

	for _, option := range options {
		option(s)
	}

	if s.db == nil {
		return nil, fmt.Errorf("database adapter is required")
	}

	s.schemas = schema.NewHolder(emptySnapshot())
	return s, nil
}

func emptySnapshot() *schema.Snapshot {
	reg, err := schema.BuildRegistry(&schema.Spec{Version: 0})
	if err != nil {
		// The empty spec is always valid.
		panic(err)
	}
	return &schema.Snapshot{Registry: reg, Migrator: schema.NewMigrator(nil)}
}

// Entity operations

func (s *service) CreateEntity(ctx context.Context, req CreateEntityRequest) (*Entity, error) {
	snap := s.schemas.Current()
	t := snap.Registry.EntityType(req.Type)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, req.Type)
	}
	if err := s.authorize(ctx, req.AuthKey, []string{req.AuthKey}); err != nil {
		return nil, err
	}

	violations, refs := validateEntityFields(snap.Registry, t, req.Fields, true)
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	now := nowUTC()
	entity := &Entity{
		ID:           uuid.New(),
		Type:         req.Type,
		AuthKey:      req.AuthKey,
		Status:       StatusDraft,
		DraftVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
		Fields:       req.Fields,
	}
	entity.Name = entityName(t, req.Fields, entity.ID)

	insert := func() error {
		return s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
			if err := s.checkReferences(ctx, tx, refs); err != nil {
				return err
			}
			if err := insertEntity(ctx, tx, entity); err != nil {
				if s.db.IsUniqueViolation(err) {
					return err
				}
				return &adapter.Error{Op: "insert entity", Err: err}
			}
			return insertVersion(ctx, tx, entity.ID, 1, snap.Registry.Version(), req.Fields, now, req.CreatedBy)
		})
	}
	err := insert()
	if err != nil && s.db.IsUniqueViolation(err) {
		// Id collision. The failed statement aborts the whole transaction
		// on postgres, so the retry with a fresh id needs a new one.
		entity.ID = uuid.New()
		entity.Name = entityName(t, req.Fields, entity.ID)
		err = insert()
	}
	if err != nil {
		if s.db.IsUniqueViolation(err) {
			err = &adapter.Error{Op: "insert entity", Err: err}
		}
		return nil, &EntityError{EntityID: entity.ID, Op: "create", Err: err}
	}

	s.log.Debug().Str("entity", entity.ID.String()).Str("type", entity.Type).Msg("entity created")
	return entity, nil
}

func (s *service) UpdateEntity(ctx context.Context, req UpdateEntityRequest) (*Entity, error) {
	snap := s.schemas.Current()

	var entity *Entity
	err := s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
		e, err := getEntity(ctx, tx, req.ID, s.db.LockClause())
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, e.AuthKey, req.AuthKeys); err != nil {
			return err
		}
		next, err := NextStatus(e.Status, EventUpdateDraft)
		if err != nil {
			return err
		}
		t := snap.Registry.EntityType(e.Type)
		if t == nil {
			return fmt.Errorf("%w: %s", ErrUnknownEntityType, e.Type)
		}

		prior, encodeVersion, err := getVersionFields(ctx, tx, e.ID, e.DraftVersion)
		if err != nil {
			return err
		}
		prior, err = snap.Migrator.Migrate(e.Type, prior, encodeVersion)
		if err != nil {
			return err
		}

		merged := mergeFields(prior, req.Fields)
		violations, refs := validateEntityFields(snap.Registry, t, merged, false)
		if len(violations) > 0 {
			return &ValidationError{Violations: violations}
		}
		if err := s.checkReferences(ctx, tx, refs); err != nil {
			return err
		}

		now := nowUTC()
		e.DraftVersion++
		e.Status = next
		e.Name = entityName(t, merged, e.ID)
		e.UpdatedAt = now
		if err := insertVersion(ctx, tx, e.ID, e.DraftVersion, snap.Registry.Version(), merged, now, req.CreatedBy); err != nil {
			return err
		}
		if err := updateEntity(ctx, tx, e); err != nil {
			return err
		}
		e.Version = e.DraftVersion
		e.Fields = merged
		entity = e
		return nil
	})
	if err != nil {
		return nil, &EntityError{EntityID: req.ID, Op: "update", Err: err}
	}

	s.log.Debug().Str("entity", entity.ID.String()).Int("version", entity.Version).Msg("entity draft updated")
	return entity, nil
}

func (s *service) PublishEntity(ctx context.Context, id uuid.UUID, authKeys ...string) (*Entity, error) {
	snap := s.schemas.Current()

	var entity *Entity
	err := s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
		e, err := getEntity(ctx, tx, id, s.db.LockClause())
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, e.AuthKey, authKeys); err != nil {
			return err
		}
		next, err := NextStatus(e.Status, EventPublish)
		if err != nil {
			return err
		}
		t := snap.Registry.EntityType(e.Type)
		if t == nil {
			return fmt.Errorf("%w: %s", ErrUnknownEntityType, e.Type)
		}

		fields, encodeVersion, err := getVersionFields(ctx, tx, e.ID, e.DraftVersion)
		if err != nil {
			return err
		}
		fields, err = snap.Migrator.Migrate(e.Type, fields, encodeVersion)
		if err != nil {
			return err
		}

		// The published snapshot must satisfy every required constraint,
		// even where draft-only partial updates were allowed to omit it.
		violations, _ := validateEntityFields(snap.Registry, t, fields, true)
		if len(violations) > 0 {
			return &PublishValidationError{EntityID: e.ID, Violations: violations}
		}

		e.Status = next
		published := e.DraftVersion
		e.PublishedVersion = &published
		e.UpdatedAt = nowUTC()
		if err := updateEntity(ctx, tx, e); err != nil {
			return err
		}
		e.Version = e.DraftVersion
		e.Fields = fields
		entity = e
		return nil
	})
	if err != nil {
		return nil, &EntityError{EntityID: id, Op: "publish", Err: err}
	}

	s.log.Debug().Str("entity", entity.ID.String()).Int("version", entity.Version).Msg("entity published")
	return entity, nil
}

func (s *service) UnpublishEntity(ctx context.Context, id uuid.UUID, authKeys ...string) (*Entity, error) {
	return s.applyStatusEvent(ctx, id, authKeys, EventUnpublish, "unpublish", func(e *Entity) {
		e.PublishedVersion = nil
	})
}

func (s *service) ArchiveEntity(ctx context.Context, id uuid.UUID, authKeys ...string) (*Entity, error) {
	return s.applyStatusEvent(ctx, id, authKeys, EventArchive, "archive", nil)
}

// applyStatusEvent runs a pure status transition that touches no version
// rows: lock, authorize, transition, write the entity row.
func (s *service) applyStatusEvent(ctx context.Context, id uuid.UUID, authKeys []string, event StatusEvent, op string, mutate func(*Entity)) (*Entity, error) {
	var entity *Entity
	err := s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
		e, err := getEntity(ctx, tx, id, s.db.LockClause())
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, e.AuthKey, authKeys); err != nil {
			return err
		}
		next, err := NextStatus(e.Status, event)
		if err != nil {
			return err
		}
		e.Status = next
		if mutate != nil {
			mutate(e)
		}
		e.UpdatedAt = nowUTC()
		if err := updateEntity(ctx, tx, e); err != nil {
			return err
		}
		entity = e
		return nil
	})
	if err != nil {
		return nil, &EntityError{EntityID: id, Op: op, Err: err}
	}

	s.log.Debug().Str("entity", entity.ID.String()).Str("status", string(entity.Status)).Msg("entity status changed")
	return entity, nil
}

// Entity reads

func (s *service) GetEntity(ctx context.Context, req GetEntityRequest) (*Entity, error) {
	return s.getEntity(ctx, req, false)
}

func (s *service) GetPublishedEntity(ctx context.Context, req GetEntityRequest) (*Entity, error) {
	return s.getEntity(ctx, req, true)
}

func (s *service) getEntity(ctx context.Context, req GetEntityRequest, published bool) (*Entity, error) {
	snap := s.schemas.Current()
	reg := snap.Registry
	if published {
		reg = reg.Published()
	}

	var entity *Entity
	err := s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
		e, err := getEntity(ctx, tx, req.ID, "")
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, e.AuthKey, req.AuthKeys); err != nil {
			return err
		}
		t := reg.EntityType(e.Type)
		if t == nil {
			// Unknown to this view: adminOnly types are invisible to
			// published readers.
			return ErrNotFound
		}

		version := e.DraftVersion
		switch {
		case req.Version != nil:
			version = *req.Version
		case published:
			if e.PublishedVersion == nil {
				return ErrNotFound
			}
			version = *e.PublishedVersion
		}

		fields, encodeVersion, err := getVersionFields(ctx, tx, e.ID, version)
		if err != nil {
			return err
		}
		fields, err = snap.Migrator.Migrate(e.Type, fields, encodeVersion)
		if err != nil {
			return err
		}
		if published {
			fields = visibleFields(t, fields)
		}
		e.Version = version
		e.Fields = fields
		entity = e
		return nil
	})
	if err != nil {
		return nil, &EntityError{EntityID: req.ID, Op: "get", Err: err}
	}
	return entity, nil
}

func (s *service) EntityHistory(ctx context.Context, id uuid.UUID, authKeys ...string) ([]VersionInfo, error) {
	var infos []VersionInfo
	err := s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
		e, err := getEntity(ctx, tx, id, "")
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, e.AuthKey, authKeys); err != nil {
			return err
		}
		infos, err = listVersions(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, &EntityError{EntityID: id, Op: "history", Err: err}
	}
	return infos, nil
}

// Schema operations

func (s *service) LoadSchema(ctx context.Context) error {
	return s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
		history, err := loadSchemaHistory(ctx, tx)
		if err != nil {
			return err
		}
		snap, err := buildSnapshot(history)
		if err != nil {
			return err
		}
		s.schemas.Swap(snap)
		s.log.Info().Int("version", snap.Registry.Version()).Msg("schema registry loaded")
		return nil
	})
}

func (s *service) GetSchemaSpec(_ context.Context) *schema.Spec {
	return s.schemas.Current().Registry.Spec()
}

func (s *service) UpdateSchemaSpec(ctx context.Context, spec *schema.Spec) (*schema.Spec, error) {
	current := s.schemas.Current().Registry
	if spec.Version != current.Version()+1 {
		return nil, fmt.Errorf("%w: submitted schema version %d, current is %d",
			ErrVersionConflict, spec.Version, current.Version())
	}
	if _, err := schema.BuildRegistry(spec); err != nil {
		return nil, err
	}
	diff := schema.Diff(current.Spec(), spec)

	err := s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
		// Reject removals that would orphan stored entities; removed
		// fields are fine (they become read-time migration drops).
		for _, removed := range diff.RemovedEntityTypes {
			count, err := countEntitiesOfType(ctx, tx, removed)
			if err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("%w: cannot remove entity type %s, %d entities exist",
					ErrBadRequest, removed, count)
			}
		}
		for _, renamed := range diff.RenamedEntityTypes {
			if err := renameEntityType(ctx, tx, renamed.From, renamed.To); err != nil {
				return err
			}
		}
		if err := insertSchemaSpec(ctx, tx, spec, nowUTC()); err != nil {
			if s.db.IsUniqueViolation(err) {
				// Someone committed this version first.
				return fmt.Errorf("%w: schema version %d already exists", ErrVersionConflict, spec.Version)
			}
			return &adapter.Error{Op: "insert schema spec", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Readers in flight keep their snapshot; new operations observe the
	// committed history.
	if err := s.LoadSchema(ctx); err != nil {
		return nil, err
	}
	s.log.Info().Int("version", spec.Version).Msg("schema specification updated")
	return s.schemas.Current().Registry.Spec(), nil
}

// Helpers

func buildSnapshot(history []*schema.Spec) (*schema.Snapshot, error) {
	if len(history) == 0 {
		return emptySnapshot(), nil
	}
	reg, err := schema.BuildRegistry(history[len(history)-1])
	if err != nil {
		return nil, err
	}
	return &schema.Snapshot{Registry: reg, Migrator: schema.NewMigrator(history)}, nil
}

// authorize checks the caller's keys against the entity's partition key. An
// empty partition key is the default partition, open to every caller.
func (s *service) authorize(ctx context.Context, entityAuthKey string, callerKeys []string) error {
	if entityAuthKey == "" {
		return nil
	}
	resolved, err := s.auth.ResolveAuthorizationKeys(ctx, callerKeys)
	if err != nil {
		// Resolver failures propagate unchanged.
		return err
	}
	if _, ok := resolved[entityAuthKey]; !ok {
		return fmt.Errorf("%w: no access to partition %q", ErrNotAuthorized, entityAuthKey)
	}
	return nil
}

func (s *service) checkReferences(ctx context.Context, tx adapter.Tx, refs []refCheck) error {
	for _, ref := range refs {
		target, err := getEntity(ctx, tx, ref.id, "")
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: %s (field %s)", ErrReferenceNotFound, ref.id, ref.field)
			}
			return err
		}
		if len(ref.allowedTypes) > 0 && !slices.Contains(ref.allowedTypes, target.Type) {
			return &ValidationError{Violations: []FieldViolation{{
				Field:   ref.field,
				Message: fmt.Sprintf("referenced entity is of type %s, allowed: %s", target.Type, strings.Join(ref.allowedTypes, ", ")),
			}}}
		}
	}
	return nil
}

// mergeFields layers update over prior: unspecified fields inherit their
// prior values, an explicit nil clears the field. Neither input is mutated.
func mergeFields(prior, update FieldValues) FieldValues {
	merged := make(FieldValues, len(prior)+len(update))
	for k, v := range prior {
		merged[k] = v
	}
	for k, v := range update {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

// entityName derives the entity name from the isName field, or synthesizes
// one from the type and id.
func entityName(t *schema.EntityTypeSpec, fields FieldValues, id uuid.UUID) string {
	if f := t.NameField(); f != nil {
		if name, ok := fields[f.Name].(string); ok && name != "" {
			return name
		}
	}
	return fmt.Sprintf("%s#%.8s", t.Name, id.String())
}

// visibleFields filters a payload down to the fields present in the given
// (published-view) type definition.
func visibleFields(t *schema.EntityTypeSpec, fields FieldValues) FieldValues {
	out := make(FieldValues, len(fields))
	for name, value := range fields {
		if t.Field(name) != nil {
			out[name] = value
		}
	}
	return out
}
