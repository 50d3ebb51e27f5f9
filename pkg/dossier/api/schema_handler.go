package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier"
	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/schema"
)

// SchemaHandler handles HTTP requests for the schema specification.
type SchemaHandler struct {
	service dossier.Service
	log     zerolog.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(service dossier.Service, log zerolog.Logger) *SchemaHandler {
	return &SchemaHandler{service: service, log: log}
}

// Routes returns the routes for the schema.
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetSchema)
	r.Put("/", h.UpdateSchema)

	return r
}

// GetSchema returns the current schema specification.
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	spec := h.service.GetSchemaSpec(r.Context())
	render.JSON(w, r, spec)
}

// UpdateSchema applies a new schema specification version. The submitted
// version must be exactly one greater than the stored version.
func (h *SchemaHandler) UpdateSchema(w http.ResponseWriter, r *http.Request) {
	var spec schema.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateSchemaSpec(r.Context(), &spec)
	if err != nil {
		h.log.Error().Err(err).Int("version", spec.Version).Msg("failed to update schema")
		renderSchemaError(w, r, err)
		return
	}

	h.log.Info().Int("version", updated.Version).Msg("schema updated")
	render.JSON(w, r, updated)
}

func renderSchemaError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}

	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		resp.Violations = append(resp.Violations, ve.Violations...)
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dossier.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, schema.ErrInvalidSpec), errors.Is(err, dossier.ErrBadRequest):
		status = http.StatusBadRequest
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
