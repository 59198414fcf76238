package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/dedup"
	"github.com/fluxguard/incidentcore/pkg/eventbus"
	"github.com/fluxguard/incidentcore/pkg/locator"
	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/notifysink"
	"github.com/fluxguard/incidentcore/pkg/store"
)

func newAlert(externalID string) *model.Alert {
	return &model.Alert{
		ID:         model.NewAlertID(),
		ExternalID: externalID,
		Source:     "checkout-svc",
		Title:      "CPU high",
		Type:       model.TypeInfrastructure,
		Severity:   model.SeverityP1,
	}
}

func newProcessor(t *testing.T) (*Processor, store.Store, *clock.Manual) {
	t.Helper()
	mc := clock.NewManual(time.Now())
	s := store.NewMemory()
	d := dedup.New(s, mc, dedup.DefaultConfig())
	pool := notifysink.NewPool(notifysink.DefaultConfig(), mc, nil)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)
	return New(s, d, pool, &eventbus.Bus{}, mc, locator.New()), s, mc
}

func TestProcessAlertCreatesIncident(t *testing.T) {
	p, s, _ := newProcessor(t)
	alert := newAlert("ext-1")

	ack, err := p.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, AckAccepted, ack.Status)
	assert.Equal(t, alert.ID, ack.AlertID)

	saved, err := s.GetIncident(context.Background(), ack.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, "checkout-svc", saved.Source)
	assert.NotEmpty(t, saved.Fingerprint)
}

func TestProcessAlertMergesDuplicate(t *testing.T) {
	p, _, mc := newProcessor(t)

	first, err := p.ProcessAlert(context.Background(), newAlert("ext-1"))
	require.NoError(t, err)

	mc.Advance(5 * time.Second)
	second, err := p.ProcessAlert(context.Background(), newAlert("ext-2"))
	require.NoError(t, err)

	assert.Equal(t, AckDuplicate, second.Status)
	assert.Equal(t, first.IncidentID, second.IncidentID)
}

func TestProcessAlertEmitsEventBusHooks(t *testing.T) {
	mc := clock.NewManual(time.Now())
	s := store.NewMemory()
	d := dedup.New(s, mc, dedup.DefaultConfig())

	var createdID model.IncidentID
	bus := &eventbus.Bus{
		OnIncidentCreated: func(inc *model.Incident) { createdID = inc.ID },
	}
	p := New(s, d, nil, bus, mc, locator.New())

	ack, err := p.ProcessAlert(context.Background(), newAlert("ext-1"))
	require.NoError(t, err)
	assert.Equal(t, ack.IncidentID, createdID)
}

func TestCreateIncidentRejectsDuplicateFingerprint(t *testing.T) {
	p, s, mc := newProcessor(t)

	inc := &model.Incident{
		ID:           model.NewIncidentID(),
		State:        model.StateDetected,
		Severity:     model.SeverityP1,
		IncidentType: model.TypeInfrastructure,
		Source:       "checkout-svc",
		Title:        "CPU high",
		CreatedAt:    mc.Now(),
		UpdatedAt:    mc.Now(),
	}
	_, err := p.CreateIncident(context.Background(), inc)
	require.NoError(t, err)

	dup := &model.Incident{
		ID:           model.NewIncidentID(),
		State:        model.StateDetected,
		Severity:     model.SeverityP1,
		IncidentType: model.TypeInfrastructure,
		Source:       "checkout-svc",
		Title:        "CPU high",
		CreatedAt:    mc.Now(),
		UpdatedAt:    mc.Now(),
	}
	_, err = p.CreateIncident(context.Background(), dup)
	require.Error(t, err)

	all, err := s.ListIncidents(context.Background(), store.IncidentFilter{}, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProcessAlertRunsOptionalPipelineStagesBestEffort(t *testing.T) {
	mc := clock.NewManual(time.Now())
	s := store.NewMemory()
	d := dedup.New(s, mc, dedup.DefaultConfig())

	loc := locator.New().WithRouting(failingRouter{})
	p := New(s, d, nil, nil, mc, loc)

	ack, err := p.ProcessAlert(context.Background(), newAlert("ext-1"))
	require.NoError(t, err)
	assert.Equal(t, AckAccepted, ack.Status)
}

type failingRouter struct{}

func (failingRouter) Evaluate(incident *model.Incident) model.RoutingResult {
	return model.RoutingResult{ActionsApplied: 1, ActionsFailed: 1}
}
