package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxguard/incidentcore/pkg/model"
)

func newTestIncident(fingerprint string) *model.Incident {
	now := time.Now()
	return &model.Incident{
		ID:          model.NewIncidentID(),
		State:       model.StateDetected,
		Severity:    model.SeverityP1,
		Source:      "svc",
		Fingerprint: fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	inc := newTestIncident("fp1")

	require.NoError(t, s.SaveIncident(ctx, inc))

	got, err := s.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, inc.ID, got.ID)

	// Returned incident must be a copy: mutating it must not affect the store.
	got.Severity = model.SeverityP0
	reread, err := s.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeverityP1, reread.Severity)
}

func TestMemoryGetMissing(t *testing.T) {
	s := NewMemory()
	got, err := s.GetIncident(context.Background(), model.IncidentID("nope"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryUpdateRequiresExistence(t *testing.T) {
	s := NewMemory()
	inc := newTestIncident("fp1")
	err := s.UpdateIncident(context.Background(), inc)
	require.Error(t, err)
}

func TestMemoryCompareAndSwapConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	inc := newTestIncident("fp1")
	require.NoError(t, s.SaveIncident(ctx, inc))

	staleTime := inc.UpdatedAt.Add(-time.Hour)
	_, err := s.CompareAndSwap(ctx, inc.ID, staleTime, func(i *model.Incident) {
		i.Severity = model.SeverityP0
	})
	require.Error(t, err)

	updated, err := s.CompareAndSwap(ctx, inc.ID, inc.UpdatedAt, func(i *model.Incident) {
		i.Severity = model.SeverityP0
	})
	require.NoError(t, err)
	assert.Equal(t, model.SeverityP0, updated.Severity)
}

func TestMemoryMutateIncidentAppliesMutation(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	inc := newTestIncident("fp1")
	require.NoError(t, s.SaveIncident(ctx, inc))

	updated, err := s.MutateIncident(ctx, inc.ID, 3, func(i *model.Incident) {
		i.OccurrenceCount++
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.OccurrenceCount)
}

func TestMemoryFindByFingerprint(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	a := newTestIncident("shared")
	b := newTestIncident("shared")
	c := newTestIncident("other")
	for _, inc := range []*model.Incident{a, b, c} {
		require.NoError(t, s.SaveIncident(ctx, inc))
	}

	found, err := s.FindByFingerprint(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestMemoryListActiveOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	active := newTestIncident("a")
	resolved := newTestIncident("b")
	resolved.State = model.StateResolved
	require.NoError(t, s.SaveIncident(ctx, active))
	require.NoError(t, s.SaveIncident(ctx, resolved))

	list, err := s.ListIncidents(ctx, IncidentFilter{ActiveOnly: true}, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
}
