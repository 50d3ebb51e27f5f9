package dossier_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from  dossier.EntityStatus
		event dossier.StatusEvent
		want  dossier.EntityStatus
	}{
		{dossier.StatusDraft, dossier.EventUpdateDraft, dossier.StatusDraft},
		{dossier.StatusDraft, dossier.EventPublish, dossier.StatusPublished},
		{dossier.StatusDraft, dossier.EventArchive, dossier.StatusArchived},
		{dossier.StatusPublished, dossier.EventUpdateDraft, dossier.StatusModified},
		{dossier.StatusPublished, dossier.EventUnpublish, dossier.StatusWithdrawn},
		{dossier.StatusPublished, dossier.EventArchive, dossier.StatusArchived},
		{dossier.StatusModified, dossier.EventUpdateDraft, dossier.StatusModified},
		{dossier.StatusModified, dossier.EventPublish, dossier.StatusPublished},
		{dossier.StatusModified, dossier.EventUnpublish, dossier.StatusWithdrawn},
		{dossier.StatusModified, dossier.EventArchive, dossier.StatusArchived},
		{dossier.StatusWithdrawn, dossier.EventUpdateDraft, dossier.StatusWithdrawn},
		{dossier.StatusWithdrawn, dossier.EventPublish, dossier.StatusPublished},
		{dossier.StatusWithdrawn, dossier.EventArchive, dossier.StatusArchived},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.event), func(t *testing.T) {
			got, err := dossier.NextStatus(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatusIllegalTransitions(t *testing.T) {
	tests := []struct {
		from  dossier.EntityStatus
		event dossier.StatusEvent
	}{
		{dossier.StatusDraft, dossier.EventUnpublish},
		{dossier.StatusWithdrawn, dossier.EventUnpublish},
		// Archived is terminal.
		{dossier.StatusArchived, dossier.EventUpdateDraft},
		{dossier.StatusArchived, dossier.EventPublish},
		{dossier.StatusArchived, dossier.EventUnpublish},
		{dossier.StatusArchived, dossier.EventArchive},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.event), func(t *testing.T) {
			_, err := dossier.NextStatus(tt.from, tt.event)
			require.Error(t, err)
			assert.True(t, errors.Is(err, dossier.ErrInvalidStateTransition))
		})
	}
}
