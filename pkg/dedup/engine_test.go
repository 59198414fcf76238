package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/store"
)

func newAlert(externalID string) *model.Alert {
	return &model.Alert{
		ID:         model.NewAlertID(),
		ExternalID: externalID,
		Source:     "svc",
		Title:      "CPU high",
		Type:       model.TypeInfrastructure,
		Severity:   model.SeverityP1,
		Labels:     map[string]string{"env": "prod"},
	}
}

// TestScenarioS1DedupMerge matches spec §8 scenario S1.
func TestScenarioS1DedupMerge(t *testing.T) {
	ctx := context.Background()
	mc := clock.NewManual(time.Now())
	s := store.NewMemory()
	engine := New(s, mc, DefaultConfig())

	a1 := newAlert("ext-1")
	fp := Fingerprint(a1.Source, a1.Title, a1.Type)

	// No candidate yet.
	assert.Nil(t, engine.FindDuplicate(ctx, a1))

	inc := a1.ToIncident(mc.Now())
	inc.Fingerprint = fp
	require.NoError(t, s.SaveIncident(ctx, inc))

	mc.Advance(10 * time.Second)
	a2 := newAlert("ext-2")

	dup := engine.FindDuplicate(ctx, a2)
	require.NotNil(t, dup)
	assert.Equal(t, inc.ID, dup.ID)

	updated, err := engine.MergeInto(ctx, a2, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.OccurrenceCount)

	var mergedEvents int
	for _, ev := range updated.Timeline {
		if ev.Type == "AlertMerged" {
			mergedEvents++
		}
	}
	assert.Equal(t, 1, mergedEvents)
}

func TestMergeIntoIdempotentOnSameAlertID(t *testing.T) {
	ctx := context.Background()
	mc := clock.NewManual(time.Now())
	s := store.NewMemory()
	engine := New(s, mc, DefaultConfig())

	a1 := newAlert("ext-1")
	fp := Fingerprint(a1.Source, a1.Title, a1.Type)
	inc := a1.ToIncident(mc.Now())
	inc.Fingerprint = fp
	require.NoError(t, s.SaveIncident(ctx, inc))

	dupAlert := newAlert("ext-2")
	_, err := engine.MergeInto(ctx, dupAlert, inc.ID)
	require.NoError(t, err)
	updated, err := engine.MergeInto(ctx, dupAlert, inc.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, updated.OccurrenceCount, "presenting the same alert id twice must not double-count")
}

func TestFindDuplicateExcludesResolved(t *testing.T) {
	ctx := context.Background()
	mc := clock.NewManual(time.Now())
	s := store.NewMemory()
	engine := New(s, mc, DefaultConfig())

	a1 := newAlert("ext-1")
	fp := Fingerprint(a1.Source, a1.Title, a1.Type)
	inc := a1.ToIncident(mc.Now())
	inc.Fingerprint = fp
	inc.State = model.StateResolved
	require.NoError(t, s.SaveIncident(ctx, inc))

	assert.Nil(t, engine.FindDuplicate(ctx, newAlert("ext-2")))
}

func TestFindDuplicateExcludesOutsideWindow(t *testing.T) {
	ctx := context.Background()
	mc := clock.NewManual(time.Now())
	s := store.NewMemory()
	cfg := Config{WindowSecs: 900}
	engine := New(s, mc, cfg)

	a1 := newAlert("ext-1")
	fp := Fingerprint(a1.Source, a1.Title, a1.Type)
	inc := a1.ToIncident(mc.Now())
	inc.Fingerprint = fp
	require.NoError(t, s.SaveIncident(ctx, inc))

	mc.Advance(901 * time.Second)
	assert.Nil(t, engine.FindDuplicate(ctx, newAlert("ext-2")))
}
