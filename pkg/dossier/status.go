package dossier

import "fmt"

// StatusEvent is an event applied to the publishing state machine.
type StatusEvent string

// Status events (typed).
const (
	EventUpdateDraft StatusEvent = "updateDraft"
	EventPublish     StatusEvent = "publish"
	EventUnpublish   StatusEvent = "unpublish"
	EventArchive     StatusEvent = "archive"
)

type transitionKey struct {
	from  EntityStatus
	event StatusEvent
}

// The authoritative transition table. A (state, event) pair absent from the
// table is an illegal transition. Archived is terminal: no entry leaves it.
var transitions = map[transitionKey]EntityStatus{
	{StatusDraft, EventUpdateDraft}:     StatusDraft,
	{StatusDraft, EventPublish}:         StatusPublished,
	{StatusPublished, EventUpdateDraft}: StatusModified,
	{StatusPublished, EventUnpublish}:   StatusWithdrawn,
	{StatusModified, EventUpdateDraft}:  StatusModified,
	{StatusModified, EventPublish}:      StatusPublished,
	{StatusModified, EventUnpublish}:    StatusWithdrawn,
	{StatusWithdrawn, EventUpdateDraft}: StatusWithdrawn,
	{StatusWithdrawn, EventPublish}:     StatusPublished,

	{StatusDraft, EventArchive}:     StatusArchived,
	{StatusPublished, EventArchive}: StatusArchived,
	{StatusModified, EventArchive}:  StatusArchived,
	{StatusWithdrawn, EventArchive}: StatusArchived,
}

// NextStatus returns the status an entity moves to when event is applied in
// the current status. It is pure and deterministic; an illegal (status,
// event) pair fails with an error wrapping ErrInvalidStateTransition.
//
// Publish events additionally require the draft to pass full validation;
// that precondition is enforced by the caller before the transition is
// applied, always inside the same transaction.
func NextStatus(current EntityStatus, event StatusEvent) (EntityStatus, error) {
	next, ok := transitions[transitionKey{current, event}]
	if !ok {
		return "", fmt.Errorf("%w: %s is illegal in status %s", ErrInvalidStateTransition, event, current)
	}
	return next, nil
}
