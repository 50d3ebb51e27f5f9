package dossier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNotFound indicates an entity or entity version was not found
	ErrNotFound = errors.New("entity not found")

	// ErrNotAuthorized indicates the caller's resolved identity does not
	// satisfy the entity's authKey partition
	ErrNotAuthorized = errors.New("not authorized")

	// ErrBadRequest indicates malformed input outside field validation
	ErrBadRequest = errors.New("bad request")

	// ErrInvalidInput indicates field-level validation failed; the concrete
	// error is a *ValidationError enumerating every violation
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidStateTransition indicates a publishing state machine rule
	// was violated
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrVersionConflict indicates an optimistic version check failed; the
	// caller should re-read and retry
	ErrVersionConflict = errors.New("version conflict")

	// ErrReferenceNotFound indicates a reference field names an entity that
	// does not exist
	ErrReferenceNotFound = errors.New("referenced entity not found")

	// ErrUnknownEntityType indicates a type name not present in the schema
	ErrUnknownEntityType = errors.New("unknown entity type")
)

// FieldViolation is one field-level validation failure.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v FieldViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationError enumerates every field violation found in a mutation, not
// just the first, so a caller can present all problems at once.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// PublishValidationError lists every requirement the draft fails to meet for
// publishing. Status is left unchanged when it is returned.
type PublishValidationError struct {
	EntityID   uuid.UUID
	Violations []FieldViolation
}

func (e *PublishValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("entity %s cannot be published: %s", e.EntityID, strings.Join(msgs, "; "))
}

func (e *PublishValidationError) Unwrap() error { return ErrInvalidInput }

// EntityError wraps a failure of one entity operation.
type EntityError struct {
	EntityID uuid.UUID
	Op       string
	Err      error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("entity operation %s failed for entity %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}
