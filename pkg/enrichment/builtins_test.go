package enrichment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/store"
)

type fixedCandidates struct{ incidents []*model.Incident }

func (f *fixedCandidates) ListIncidents(ctx context.Context, filter store.IncidentFilter, page, pageSize int) ([]*model.Incident, error) {
	return f.incidents, nil
}

func TestHistoricalEnricherFindsSimilarIncidents(t *testing.T) {
	now := time.Now()
	resolved := now.Add(-2 * time.Hour)
	past := &model.Incident{
		ID:        model.NewIncidentID(),
		Title:     "CPU high on checkout",
		Source:    "checkout-svc",
		CreatedAt: resolved,
		Resolution: &model.Resolution{
			Notes:      "restarted pods",
			ResolvedAt: resolved.Add(10 * time.Minute),
		},
	}
	current := &model.Incident{
		ID:        model.NewIncidentID(),
		Title:     "CPU high on checkout",
		Source:    "checkout-svc",
		CreatedAt: now,
	}

	e := NewHistoricalEnricher(&fixedCandidates{incidents: []*model.Incident{past}}, 0.5)
	out := &model.EnrichedContext{}
	require.NoError(t, e.Enrich(context.Background(), current, out))

	require.NotNil(t, out.Historical)
	require.Len(t, out.Historical.SimilarIncidents, 1)
	assert.Equal(t, past.ID, out.Historical.SimilarIncidents[0].IncidentID)
	assert.Greater(t, out.Historical.AvgResolutionTimeMS, int64(0))
}

func TestHistoricalEnricherExcludesSelf(t *testing.T) {
	current := testIncident()
	e := NewHistoricalEnricher(&fixedCandidates{incidents: []*model.Incident{current}}, 0.0)
	out := &model.EnrichedContext{}
	require.NoError(t, e.Enrich(context.Background(), current, out))
	assert.Empty(t, out.Historical.SimilarIncidents)
}

type mapCatalog map[string]model.ServiceContext

func (m mapCatalog) Lookup(ctx context.Context, name string) (model.ServiceContext, bool) {
	v, ok := m[name]
	return v, ok
}

func TestServiceEnricherLooksUpBySource(t *testing.T) {
	catalog := mapCatalog{"checkout-svc": {ServiceName: "checkout-svc", Owner: "platform-team"}}
	e := NewServiceEnricher(catalog)
	out := &model.EnrichedContext{}
	require.NoError(t, e.Enrich(context.Background(), testIncident(), out))
	assert.Equal(t, "platform-team", out.Service.Owner)
}

func TestServiceEnricherFailsWhenNotFound(t *testing.T) {
	e := NewServiceEnricher(mapCatalog{})
	out := &model.EnrichedContext{}
	err := e.Enrich(context.Background(), testIncident(), out)
	assert.Error(t, err)
}

type typeDirectory map[model.Type]model.TeamContext

func (d typeDirectory) LookupByType(ctx context.Context, t model.Type) (model.TeamContext, bool) {
	v, ok := d[t]
	return v, ok
}

func TestTeamEnricherLooksUpByIncidentType(t *testing.T) {
	dir := typeDirectory{model.TypeInfrastructure: {PrimaryTeam: "platform-team"}}
	e := NewTeamEnricher(dir)
	out := &model.EnrichedContext{}
	require.NoError(t, e.Enrich(context.Background(), testIncident(), out))
	assert.Equal(t, "platform-team", out.Team.PrimaryTeam)
}
