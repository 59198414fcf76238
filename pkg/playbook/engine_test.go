package playbook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/store"
)

func TestExecuteRunsStepsInDeclarationOrderAndHaltsOnFailure(t *testing.T) {
	ctx := context.Background()
	tc := newTrackingClock(time.Now())
	registry := NewRegistry(noopSink{}, store.NewMemory(), tc, &fakeDoer{failUntil: 100})

	engine := New(registry, tc)
	pb := &model.Playbook{
		ID:      "pb-1",
		Enabled: true,
		Steps: []model.Step{
			{ID: "notify", Actions: []model.PlaybookAction{{Type: "Slack", Parameters: map[string]any{"channel": "#a", "message": "hi"}}}},
			{ID: "probe", Retry: 0, Actions: []model.PlaybookAction{{Type: "HttpRequest", Parameters: map[string]any{"url": "http://x.invalid"}}}},
			{ID: "resolve", Actions: []model.PlaybookAction{{Type: "IncidentResolve", Parameters: map[string]any{"notes": "auto"}}}},
		},
	}
	engine.Register(pb)

	incident := &model.Incident{ID: "inc-1", Severity: model.SeverityP1}
	result := engine.Execute(ctx, pb, incident)

	require.Len(t, result.Steps, 2, "execution halts after the failing probe step; resolve never runs")
	assert.Equal(t, StepCompleted, result.Steps[0].Status)
	assert.Equal(t, StepFailed, result.Steps[1].Status)
	assert.True(t, result.Failed)
}

func TestExecuteRunsAllStepsWhenEverythingSucceeds(t *testing.T) {
	ctx := context.Background()
	tc := newTrackingClock(time.Now())
	st := store.NewMemory()
	registry := NewRegistry(noopSink{}, st, tc, &fakeDoer{})

	engine := New(registry, tc)
	pb := &model.Playbook{
		ID:      "pb-2",
		Enabled: true,
		Steps: []model.Step{
			{ID: "notify", Actions: []model.PlaybookAction{{Type: "Slack", Parameters: map[string]any{"channel": "#a", "message": "hi"}}}},
			{ID: "resolve", Actions: []model.PlaybookAction{{Type: "IncidentResolve", Parameters: map[string]any{"notes": "auto-resolved"}}}},
		},
	}
	engine.Register(pb)

	incident := &model.Incident{ID: "inc-2", Severity: model.SeverityP2, CreatedAt: tc.Now(), UpdatedAt: tc.Now()}
	require.NoError(t, st.SaveIncident(ctx, incident))

	result := engine.Execute(ctx, pb, incident)
	require.Len(t, result.Steps, 2)
	assert.False(t, result.Failed)

	saved, err := st.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateResolved, saved.State)
}

func TestMatchingPlaybooksHonorsTriggers(t *testing.T) {
	tc := newTrackingClock(time.Now())
	engine := New(NewRegistry(noopSink{}, store.NewMemory(), tc, &fakeDoer{}), tc)

	engine.Register(&model.Playbook{
		ID:      "p1",
		Enabled: true,
		Triggers: model.Triggers{
			Severities: []model.Severity{model.SeverityP0, model.SeverityP1},
			Types:      []model.Type{model.TypeInfrastructure},
		},
	})

	matching := model.Incident{Severity: model.SeverityP1, IncidentType: model.TypeInfrastructure}
	nonMatching := model.Incident{Severity: model.SeverityP3, IncidentType: model.TypeInfrastructure}

	assert.Len(t, engine.MatchingPlaybooks(&matching), 1)
	assert.Empty(t, engine.MatchingPlaybooks(&nonMatching))
}
