// Package api exposes the dossier engine over HTTP using chi and render.
// It is thin request/response glue: all semantics live in the engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier"
)

// EntityHandler handles HTTP requests for entities.
type EntityHandler struct {
	service dossier.Service
	log     zerolog.Logger
}

// NewEntityHandler creates a new entity handler.
func NewEntityHandler(service dossier.Service, log zerolog.Logger) *EntityHandler {
	return &EntityHandler{service: service, log: log}
}

// Routes returns the routes for entities.
func (h *EntityHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateEntity)
	r.Get("/", h.ListEntities)
	r.Get("/count", h.CountEntities)
	r.Get("/{id}", h.GetEntity)
	r.Put("/{id}", h.UpdateEntity)
	r.Get("/{id}/published", h.GetPublishedEntity)
	r.Get("/{id}/history", h.GetEntityHistory)
	r.Post("/{id}/publish", h.PublishEntity)
	r.Post("/{id}/unpublish", h.UnpublishEntity)
	r.Post("/{id}/archive", h.ArchiveEntity)

	return r
}

// EntityResponse is the response body for an entity.
type EntityResponse struct {
	ID               string              `json:"id"`
	Type             string              `json:"type"`
	Name             string              `json:"name"`
	AuthKey          string              `json:"auth_key,omitempty"`
	Status           string              `json:"status"`
	Version          int                 `json:"version"`
	DraftVersion     int                 `json:"draft_version"`
	PublishedVersion *int                `json:"published_version,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Fields           dossier.FieldValues `json:"fields"`
}

func toEntityResponse(e *dossier.Entity) EntityResponse {
	return EntityResponse{
		ID:               e.ID.String(),
		Type:             e.Type,
		Name:             e.Name,
		AuthKey:          e.AuthKey,
		Status:           string(e.Status),
		Version:          e.Version,
		DraftVersion:     e.DraftVersion,
		PublishedVersion: e.PublishedVersion,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		Fields:           e.Fields,
	}
}

// CreateEntityRequest is the request body for creating an entity.
type CreateEntityRequest struct {
	Type      string              `json:"type"`
	Fields    dossier.FieldValues `json:"fields"`
	AuthKey   string              `json:"auth_key,omitempty"`
	CreatedBy string              `json:"created_by,omitempty"`
}

// CreateEntity creates a new entity draft.
func (h *EntityHandler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entity, err := h.service.CreateEntity(r.Context(), dossier.CreateEntityRequest{
		Type:      req.Type,
		Fields:    req.Fields,
		AuthKey:   req.AuthKey,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.renderError(w, r, "create entity", err)
		return
	}

	h.log.Info().Str("entity_id", entity.ID.String()).Str("type", entity.Type).Msg("entity created")
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toEntityResponse(entity))
}

// UpdateEntityRequest is the request body for updating an entity draft.
type UpdateEntityRequest struct {
	Fields    dossier.FieldValues `json:"fields"`
	CreatedBy string              `json:"created_by,omitempty"`
}

// UpdateEntity writes a new draft version for an entity.
func (h *EntityHandler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}

	var req UpdateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entity, err := h.service.UpdateEntity(r.Context(), dossier.UpdateEntityRequest{
		ID:        id,
		Fields:    req.Fields,
		AuthKeys:  authKeys(r),
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.renderError(w, r, "update entity", err)
		return
	}

	h.log.Info().Str("entity_id", id.String()).Int("version", entity.Version).Msg("entity updated")
	render.JSON(w, r, toEntityResponse(entity))
}

// GetEntity retrieves an entity draft, or a specific version if requested.
func (h *EntityHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}

	req := dossier.GetEntityRequest{ID: id, AuthKeys: authKeys(r)}
	if v := r.URL.Query().Get("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid version", http.StatusBadRequest)
			return
		}
		req.Version = &version
	}

	entity, err := h.service.GetEntity(r.Context(), req)
	if err != nil {
		h.renderError(w, r, "get entity", err)
		return
	}

	render.JSON(w, r, toEntityResponse(entity))
}

// GetPublishedEntity retrieves the published version of an entity.
func (h *EntityHandler) GetPublishedEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}

	entity, err := h.service.GetPublishedEntity(r.Context(), dossier.GetEntityRequest{
		ID:       id,
		AuthKeys: authKeys(r),
	})
	if err != nil {
		h.renderError(w, r, "get published entity", err)
		return
	}

	render.JSON(w, r, toEntityResponse(entity))
}

// VersionInfoResponse is one entry in an entity's version history.
type VersionInfoResponse struct {
	Version       int       `json:"version"`
	EncodeVersion int       `json:"encode_version"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by,omitempty"`
}

// GetEntityHistory lists all stored versions of an entity.
func (h *EntityHandler) GetEntityHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}

	history, err := h.service.EntityHistory(r.Context(), id, authKeys(r)...)
	if err != nil {
		h.renderError(w, r, "get entity history", err)
		return
	}

	resp := make([]VersionInfoResponse, 0, len(history))
	for _, v := range history {
		resp = append(resp, VersionInfoResponse{
			Version:       v.Version,
			EncodeVersion: v.EncodeVersion,
			CreatedAt:     v.CreatedAt,
			CreatedBy:     v.CreatedBy,
		})
	}
	render.JSON(w, r, resp)
}

// PublishEntity publishes the entity's current draft version.
func (h *EntityHandler) PublishEntity(w http.ResponseWriter, r *http.Request) {
	h.statusEvent(w, r, "publish entity", h.service.PublishEntity)
}

// UnpublishEntity withdraws the entity's published version.
func (h *EntityHandler) UnpublishEntity(w http.ResponseWriter, r *http.Request) {
	h.statusEvent(w, r, "unpublish entity", h.service.UnpublishEntity)
}

// ArchiveEntity archives the entity.
func (h *EntityHandler) ArchiveEntity(w http.ResponseWriter, r *http.Request) {
	h.statusEvent(w, r, "archive entity", h.service.ArchiveEntity)
}

// ListEntitiesResponse is the response body for a page of entities.
type ListEntitiesResponse struct {
	Entities        []EntityResponse `json:"entities"`
	HasNextPage     bool             `json:"has_next_page"`
	HasPreviousPage bool             `json:"has_previous_page"`
	StartCursor     string           `json:"start_cursor,omitempty"`
	EndCursor       string           `json:"end_cursor,omitempty"`
}

// ListEntities lists entities with optional type/status filters and
// cursor paging. Query parameters: type, status (repeatable), first,
// after, last, before.
func (h *EntityHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	req := dossier.ListEntitiesRequest{
		Types:    r.URL.Query()["type"],
		AuthKeys: authKeys(r),
	}
	for _, s := range r.URL.Query()["status"] {
		req.Statuses = append(req.Statuses, dossier.EntityStatus(s))
	}

	paging, ok := h.paging(w, r)
	if !ok {
		return
	}
	req.Paging = paging

	page, err := h.service.ListEntities(r.Context(), req)
	if err != nil {
		h.renderError(w, r, "list entities", err)
		return
	}

	resp := ListEntitiesResponse{
		Entities:        make([]EntityResponse, 0, len(page.Entities)),
		HasNextPage:     page.PageInfo.HasNextPage,
		HasPreviousPage: page.PageInfo.HasPreviousPage,
		StartCursor:     page.PageInfo.StartCursor,
		EndCursor:       page.PageInfo.EndCursor,
	}
	for _, e := range page.Entities {
		resp.Entities = append(resp.Entities, toEntityResponse(e))
	}
	render.JSON(w, r, resp)
}

// CountEntities returns the number of entities matching the filters.
func (h *EntityHandler) CountEntities(w http.ResponseWriter, r *http.Request) {
	req := dossier.CountEntitiesRequest{
		Types:    r.URL.Query()["type"],
		AuthKeys: authKeys(r),
	}
	for _, s := range r.URL.Query()["status"] {
		req.Statuses = append(req.Statuses, dossier.EntityStatus(s))
	}

	count, err := h.service.CountEntities(r.Context(), req)
	if err != nil {
		h.renderError(w, r, "count entities", err)
		return
	}

	render.JSON(w, r, map[string]int64{"count": count})
}

func (h *EntityHandler) statusEvent(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id uuid.UUID, authKeys ...string) (*dossier.Entity, error)) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}

	entity, err := fn(r.Context(), id, authKeys(r)...)
	if err != nil {
		h.renderError(w, r, op, err)
		return
	}

	h.log.Info().Str("entity_id", id.String()).Str("status", string(entity.Status)).Msg(op)
	render.JSON(w, r, toEntityResponse(entity))
}

func (h *EntityHandler) entityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.log.Warn().Str("entity_id", idStr).Msg("invalid entity id")
		http.Error(w, "Invalid entity ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *EntityHandler) paging(w http.ResponseWriter, r *http.Request) (dossier.Paging, bool) {
	var paging dossier.Paging
	q := r.URL.Query()
	for name, dst := range map[string]**int{"first": &paging.First, "last": &paging.Last} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "Invalid "+name, http.StatusBadRequest)
				return dossier.Paging{}, false
			}
			*dst = &n
		}
	}
	if v := q.Get("after"); v != "" {
		paging.After = &v
	}
	if v := q.Get("before"); v != "" {
		paging.Before = &v
	}
	return paging, true
}

// errorResponse is the body for all error replies.
type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

func (h *EntityHandler) renderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Error().Err(err).Msg("failed to " + op)
	renderServiceError(w, r, err)
}

func renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}

	var ve *dossier.ValidationError
	var pve *dossier.PublishValidationError
	switch {
	case errors.As(err, &ve):
		for _, v := range ve.Violations {
			resp.Violations = append(resp.Violations, v.Field+": "+v.Message)
		}
	case errors.As(err, &pve):
		for _, v := range pve.Violations {
			resp.Violations = append(resp.Violations, v.Field+": "+v.Message)
		}
	}

	render.Status(r, statusCode(err))
	render.JSON(w, r, resp)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, dossier.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dossier.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, dossier.ErrVersionConflict),
		errors.Is(err, dossier.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, dossier.ErrInvalidInput),
		errors.Is(err, dossier.ErrBadRequest),
		errors.Is(err, dossier.ErrReferenceNotFound),
		errors.Is(err, dossier.ErrUnknownEntityType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// authKeys reads the caller's authorization keys from the X-Auth-Keys
// header (comma separated). An absent header means public access only.
func authKeys(r *http.Request) []string {
	header := r.Header.Get("X-Auth-Keys")
	if header == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(header, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
