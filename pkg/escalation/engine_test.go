package escalation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
)

// recordingSink is an in-memory notifysink.Sink recording every channel
// queued, for assertions without spinning up the worker pool.
type recordingSink struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *recordingSink) QueueNotification(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, *n)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func twoLevelPolicy() *model.EscalationPolicy {
	return &model.EscalationPolicy{
		ID:      "pol-1",
		Name:    "two-level",
		Enabled: true,
		Levels: []model.Level{
			{Level: 0, DelayMin: 0, Targets: []model.Target{{Kind: model.TargetUser, Email: "u1@x"}}},
			{Level: 1, DelayMin: 1, Targets: []model.Target{{Kind: model.TargetUser, Email: "u2@x"}}},
		},
	}
}

// TestScenarioS3EscalationAdvancement matches the two-tick advancement
// scenario: L0 fires immediately, L1 fires after 61s, then the ladder
// completes.
func TestScenarioS3EscalationAdvancement(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	mc := clock.NewManual(now)
	sink := &recordingSink{}
	engine := New(sink, mc, DefaultConfig())

	policy := twoLevelPolicy()
	require.NoError(t, engine.RegisterPolicy(policy))

	incidentID := model.NewIncidentID()
	st := engine.Start(incidentID, policy)
	assert.Equal(t, model.EscalationActive, st.Status)

	engine.Tick(ctx)
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, "u1@x", sink.sent[0].Channel.To)

	st, _ = engine.StateFor(incidentID)
	assert.Equal(t, uint32(1), st.CurrentLevel)
	assert.WithinDuration(t, now.Add(60*time.Second), st.NextFireAt, time.Second)

	mc.Advance(61 * time.Second)
	engine.Tick(ctx)

	assert.Equal(t, 2, sink.count())
	assert.Equal(t, "u2@x", sink.sent[1].Channel.To)

	st, _ = engine.StateFor(incidentID)
	assert.Equal(t, model.EscalationCompleted, st.Status)
}

// TestScenarioS4AcknowledgeHaltsEscalation matches the stop_on_ack scenario.
func TestScenarioS4AcknowledgeHaltsEscalation(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	mc := clock.NewManual(now)
	sink := &recordingSink{}
	engine := New(sink, mc, DefaultConfig())

	policy := twoLevelPolicy()
	policy.Levels[0].StopOnAck = true
	require.NoError(t, engine.RegisterPolicy(policy))

	incidentID := model.NewIncidentID()
	engine.Start(incidentID, policy)
	engine.Tick(ctx)
	require.Equal(t, 1, sink.count())

	ok := engine.Acknowledge(incidentID, "ops@x")
	require.True(t, ok)

	mc.Advance(61 * time.Second)
	engine.Tick(ctx)

	assert.Equal(t, 1, sink.count(), "no further notification after acknowledge halts the ladder")
	st, _ := engine.StateFor(incidentID)
	assert.Equal(t, model.EscalationAcknowledged, st.Status)
	assert.Equal(t, "ops@x", st.AcknowledgedBy)
}

func TestAcknowledgeWithoutStopOnAckDoesNotHaltLadder(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	mc := clock.NewManual(now)
	sink := &recordingSink{}
	engine := New(sink, mc, DefaultConfig())

	policy := twoLevelPolicy() // StopOnAck left false
	require.NoError(t, engine.RegisterPolicy(policy))

	incidentID := model.NewIncidentID()
	engine.Start(incidentID, policy)
	engine.Tick(ctx)
	engine.Acknowledge(incidentID, "ops@x")

	mc.Advance(61 * time.Second)
	engine.Tick(ctx)

	assert.Equal(t, 2, sink.count(), "ladder keeps advancing when no executed level required stop_on_ack")
	st, _ := engine.StateFor(incidentID)
	assert.Equal(t, model.EscalationCompleted, st.Status)
	assert.True(t, st.Acknowledged)
}

func TestRepeatPolicyRestartsLadder(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	mc := clock.NewManual(now)
	sink := &recordingSink{}
	engine := New(sink, mc, DefaultConfig())

	policy := twoLevelPolicy()
	policy.Repeat = &model.RepeatPolicy{MaxRepeats: 1, IntervalMin: 2}
	require.NoError(t, engine.RegisterPolicy(policy))

	incidentID := model.NewIncidentID()
	engine.Start(incidentID, policy)
	engine.Tick(ctx) // L0
	mc.Advance(61 * time.Second)
	engine.Tick(ctx) // L1, exhausts levels, repeat_count 0 < max 1

	st, _ := engine.StateFor(incidentID)
	assert.Equal(t, model.EscalationActive, st.Status)
	assert.Equal(t, 1, st.RepeatCount)
	assert.Equal(t, uint32(0), st.CurrentLevel)

	mc.Advance(3 * time.Minute)
	engine.Tick(ctx) // L0 fires again (repeat round)

	st, _ = engine.StateFor(incidentID)
	assert.Equal(t, model.EscalationActive, st.Status)
	assert.Equal(t, uint32(1), st.CurrentLevel)

	mc.Advance(61 * time.Second)
	engine.Tick(ctx) // L1 fires again, repeat_count == max, ladder completes

	st, _ = engine.StateFor(incidentID)
	assert.Equal(t, model.EscalationCompleted, st.Status)
	assert.Equal(t, 4, sink.count())
}

func TestResolveAndCancelAreTerminal(t *testing.T) {
	now := time.Now()
	mc := clock.NewManual(now)
	engine := New(&recordingSink{}, mc, DefaultConfig())
	policy := twoLevelPolicy()
	require.NoError(t, engine.RegisterPolicy(policy))

	incidentID := model.NewIncidentID()
	engine.Start(incidentID, policy)
	require.True(t, engine.Resolve(incidentID))

	assert.False(t, engine.Acknowledge(incidentID, "anyone"), "terminal states never re-arm")
	assert.False(t, engine.Cancel(incidentID))
}

func TestFindPolicyForIncidentHonorsSeverityFilterAndOrder(t *testing.T) {
	mc := clock.NewManual(time.Now())
	engine := New(&recordingSink{}, mc, DefaultConfig())

	p1 := &model.EscalationPolicy{
		ID: "p1", Enabled: true,
		SeverityFilter: map[model.Severity]struct{}{model.SeverityP0: {}},
		Levels:         []model.Level{{Level: 0, Targets: []model.Target{{Kind: model.TargetUser, Email: "a@x"}}}},
	}
	p2 := &model.EscalationPolicy{
		ID: "p2", Enabled: true, // catch-all
		Levels: []model.Level{{Level: 0, Targets: []model.Target{{Kind: model.TargetUser, Email: "b@x"}}}},
	}
	require.NoError(t, engine.RegisterPolicy(p1))
	require.NoError(t, engine.RegisterPolicy(p2))

	assert.Equal(t, p1, engine.FindPolicyForIncident(model.SeverityP0))
	assert.Equal(t, p2, engine.FindPolicyForIncident(model.SeverityP3))
}

// TestScheduleTargetReusesCachedResolutionUntilHandoff pins the Tick-time
// schedule caching: two ticks inside the same rotation window must resolve
// to the identical cached slice, and a tick after the handoff must recompute.
func TestScheduleTargetReusesCachedResolutionUntilHandoff(t *testing.T) {
	mc := clock.NewManual(time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC))
	sink := &recordingSink{}
	engine := New(sink, mc, DefaultConfig())

	engine.RegisterSchedule(&model.OnCallSchedule{
		ID:       "sched-1",
		Timezone: "UTC",
		Layers: []model.Layer{{
			Name:     "primary",
			Users:    []string{"a@x", "b@x"},
			Rotation: model.Rotation{Kind: model.RotationDaily, HandoffHour: 9},
		}},
	})
	policy := &model.EscalationPolicy{
		ID: "pol-sched", Enabled: true,
		Levels: []model.Level{{Level: 0, Targets: []model.Target{{Kind: model.TargetSchedule, ScheduleID: "sched-1"}}}},
	}
	require.NoError(t, engine.RegisterPolicy(policy))

	engine.Start("inc-1", policy)
	engine.Tick(context.Background())
	require.Equal(t, 1, sink.count())
	assert.Equal(t, "a@x", sink.sent[0].Channel.To)

	first := engine.resolved["sched-1"]
	require.NotZero(t, first.validUntil)

	// Same-day re-resolution (a second schedule target firing before the
	// handoff) must reuse the cached entry rather than recompute.
	again := engine.resolveScheduleCached("sched-1", engine.schedules["sched-1"], mc.Now().Add(time.Hour))
	assert.Equal(t, first.result, again)

	// Past the handoff, the cache must recompute to the next user.
	mc.Advance(25 * time.Hour)
	afterHandoff := engine.resolveScheduleCached("sched-1", engine.schedules["sched-1"], mc.Now())
	require.Len(t, afterHandoff, 1)
	assert.Equal(t, "b@x", afterHandoff[0].Email)
}
