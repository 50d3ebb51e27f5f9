package dossier

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestIsPagingForwards(t *testing.T) {
	tests := []struct {
		name   string
		paging Paging
		want   bool
	}{
		{"neither set defaults forwards", Paging{}, true},
		{"first set", Paging{First: intPtr(10)}, true},
		{"last set", Paging{Last: intPtr(10)}, false},
		{"both set, first wins", Paging{First: intPtr(10), Last: intPtr(5)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPagingForwards(tt.paging))
		})
	}
}

func TestPagingResolve(t *testing.T) {
	count, forwards, err := Paging{}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, count)
	assert.True(t, forwards)

	count, forwards, err = Paging{Last: intPtr(7)}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.False(t, forwards)

	count, _, err = Paging{First: intPtr(5000)}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, count)

	_, _, err = Paging{First: intPtr(0)}.Resolve()
	require.ErrorIs(t, err, ErrBadRequest)

	_, _, err = Paging{Last: intPtr(-3)}.Resolve()
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestCursorRoundTrip(t *testing.T) {
	id := uuid.New()
	createdAt := time.Date(2024, 6, 15, 12, 30, 45, 123456000, time.UTC)

	cursor := encodeCursor(createdAt, id)
	require.NotEmpty(t, cursor)

	gotTime, gotID, err := decodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, createdAt, gotTime)
	assert.Equal(t, id, gotID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, cursor := range []string{"", "not base64 ***", "aGVsbG8"} {
		_, _, err := decodeCursor(cursor)
		require.ErrorIs(t, err, ErrBadRequest, "cursor %q", cursor)
	}
}

func TestMergeFields(t *testing.T) {
	prior := FieldValues{"title": "Old", "body": "Text", "count": 3}
	update := FieldValues{"title": "New", "body": nil}

	merged := mergeFields(prior, update)
	assert.Equal(t, FieldValues{"title": "New", "count": 3}, merged)

	// Inputs stay untouched.
	assert.Equal(t, "Old", prior["title"])
	assert.Contains(t, prior, "body")
	assert.Nil(t, update["body"])
}
