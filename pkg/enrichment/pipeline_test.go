package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
)

func testIncident() *model.Incident {
	now := time.Now()
	return &model.Incident{
		ID:           model.NewIncidentID(),
		Source:       "checkout-svc",
		Title:        "CPU high",
		Severity:     model.SeverityP1,
		IncidentType: model.TypeInfrastructure,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func succeedingEnricher(name string, priority int, field func(*model.EnrichedContext)) Enricher {
	return &funcEnricher{
		name:     name,
		priority: priority,
		enabled:  func(Config) bool { return true },
		run: func(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error {
			field(out)
			return nil
		},
	}
}

func failingEnricher(name string, priority int) Enricher {
	return &funcEnricher{
		name:     name,
		priority: priority,
		enabled:  func(Config) bool { return true },
		run: func(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error {
			return errors.New("boom")
		},
	}
}

func TestEnrichSequentialMergesAllFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AsyncEnrichment = false
	p := New(cfg, clock.NewManual(time.Now()))

	p.Register(succeedingEnricher("service", 20, func(c *model.EnrichedContext) {
		c.Service = &model.ServiceContext{ServiceName: "checkout"}
	}))
	p.Register(succeedingEnricher("team", 30, func(c *model.EnrichedContext) {
		c.Team = &model.TeamContext{PrimaryTeam: "platform-team"}
	}))
	p.Register(failingEnricher("metrics", 40))

	out := p.Enrich(context.Background(), testIncident())
	require.NotNil(t, out.Service)
	require.NotNil(t, out.Team)
	assert.Equal(t, "checkout", out.Service.ServiceName)
	assert.Contains(t, out.SuccessfulEnrichers, "service")
	assert.Contains(t, out.SuccessfulEnrichers, "team")
	assert.Contains(t, out.FailedEnrichers, "metrics")
}

func TestEnrichParallelMergesByField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AsyncEnrichment = true
	cfg.MaxConcurrent = 4
	p := New(cfg, clock.NewManual(time.Now()))

	p.Register(succeedingEnricher("service", 20, func(c *model.EnrichedContext) {
		c.Service = &model.ServiceContext{ServiceName: "checkout"}
	}))
	p.Register(succeedingEnricher("team", 30, func(c *model.EnrichedContext) {
		c.Team = &model.TeamContext{PrimaryTeam: "platform-team"}
	}))

	out := p.Enrich(context.Background(), testIncident())
	require.NotNil(t, out.Service)
	require.NotNil(t, out.Team)
	assert.Len(t, out.SuccessfulEnrichers, 2)
}

func TestEnrichCachesResult(t *testing.T) {
	cfg := DefaultConfig()
	mc := clock.NewManual(time.Now())
	p := New(cfg, mc)

	calls := 0
	p.Register(&funcEnricher{
		name:     "counter",
		priority: 1,
		enabled:  func(Config) bool { return true },
		run: func(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error {
			calls++
			return nil
		},
	})

	inc := testIncident()
	p.Enrich(context.Background(), inc)
	p.Enrich(context.Background(), inc)
	assert.Equal(t, 1, calls, "second Enrich within TTL must hit the cache")

	mc.Advance(time.Duration(cfg.CacheTTLSecs+1) * time.Second)
	p.Enrich(context.Background(), inc)
	assert.Equal(t, 2, calls, "cache must expire after TTL")
}

func TestEnrichNoEnrichersEnabledReturnsEmptyContext(t *testing.T) {
	p := New(DefaultConfig(), clock.NewManual(time.Now()))
	out := p.Enrich(context.Background(), testIncident())
	assert.Empty(t, out.SuccessfulEnrichers)
	assert.Empty(t, out.FailedEnrichers)
}
