package dossier

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Default and upper bound for page sizes.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Paging selects a page boundary for a list operation, relay style: First
// and After page forwards, Last and Before page backwards.
type Paging struct {
	First  *int    `json:"first,omitempty"`
	After  *string `json:"after,omitempty"`
	Last   *int    `json:"last,omitempty"`
	Before *string `json:"before,omitempty"`
}

// IsPagingForwards reports the paging direction. Forwards iff First is set
// or neither First nor Last is set; Last alone selects backwards. When both
// First and Last are set, First wins. Callers depend on that precedence, so
// the ambiguous input is not rejected.
func IsPagingForwards(p Paging) bool {
	if p.First != nil {
		return true
	}
	return p.Last == nil
}

// Resolve returns the requested page size and direction. A non-positive
// count fails with ErrBadRequest; the size is capped at MaxPageSize.
func (p Paging) Resolve() (count int, forwards bool, err error) {
	forwards = IsPagingForwards(p)
	count = DefaultPageSize
	requested := p.First
	if !forwards {
		requested = p.Last
	}
	if requested != nil {
		if *requested <= 0 {
			return 0, false, fmt.Errorf("%w: page size must be positive, got %d", ErrBadRequest, *requested)
		}
		count = *requested
	}
	if count > MaxPageSize {
		count = MaxPageSize
	}
	return count, forwards, nil
}

// cursorPayload is the decoded form of a list cursor. Cursors order by
// (created_at, id): a stable total order, so pages never repeat or skip rows
// when entities are inserted or archived behind the cursor.
type cursorPayload struct {
	CreatedAt int64  `msgpack:"c"`
	ID        string `msgpack:"i"`
}

// encodeCursor encodes an entity's ordering key as an opaque cursor string.
func encodeCursor(createdAt time.Time, id uuid.UUID) string {
	raw, err := msgpack.Marshal(cursorPayload{CreatedAt: createdAt.UnixMicro(), ID: id.String()})
	if err != nil {
		// Marshalling two scalars cannot fail.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor decodes an opaque cursor back into its ordering key.
func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: malformed cursor", ErrBadRequest)
	}
	var payload cursorPayload
	if err := msgpack.Unmarshal(raw, &payload); err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: malformed cursor", ErrBadRequest)
	}
	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: malformed cursor", ErrBadRequest)
	}
	return time.UnixMicro(payload.CreatedAt).UTC(), id, nil
}
