package escalation

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/notifysink"
)

// Config holds the tick period.
type Config struct {
	CheckIntervalSecs int
}

// DefaultConfig returns the default tick period.
func DefaultConfig() Config { return Config{CheckIntervalSecs: 30} }

func (c Config) interval() time.Duration {
	if c.CheckIntervalSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CheckIntervalSecs) * time.Second
}

// Engine owns the registered policies/schedules and every incident's
// runtime escalation state, and advances them on a tick loop the way the
// teacher's queue.WorkerPool drains work on an interval.
type Engine struct {
	sink  notifysink.Sink
	clock clock.Clock
	cfg   Config

	mu        sync.RWMutex
	policies  []*model.EscalationPolicy // registration order
	schedules map[model.ScheduleID]*model.OnCallSchedule
	states    map[model.IncidentID]*model.EscalationState
	resolved  map[model.ScheduleID]resolvedCacheEntry

	stopCh chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// resolvedCacheEntry caches a schedule resolution until the earliest handoff
// among its layers, so Tick doesn't re-walk rotation math every interval
// when nothing on the schedule has actually changed.
type resolvedCacheEntry struct {
	result     []model.Resolved
	validUntil time.Time
}

// New creates an Escalation Engine.
func New(sink notifysink.Sink, c clock.Clock, cfg Config) *Engine {
	return &Engine{
		sink:      sink,
		clock:     c,
		cfg:       cfg,
		schedules: make(map[model.ScheduleID]*model.OnCallSchedule),
		states:    make(map[model.IncidentID]*model.EscalationState),
		resolved:  make(map[model.ScheduleID]resolvedCacheEntry),
		stopCh:    make(chan struct{}),
	}
}

// RegisterPolicy appends a policy, validating its level sequence first.
func (e *Engine) RegisterPolicy(p *model.EscalationPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, p)
	return nil
}

// RegisterSchedule adds or replaces an on-call schedule, invalidating any
// cached resolution for it.
func (e *Engine) RegisterSchedule(s *model.OnCallSchedule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.schedules[s.ID] = s
	delete(e.resolved, s.ID)
}

// FindPolicyForIncident returns the first enabled, severity-matching policy
// in registration order, or nil.
func (e *Engine) FindPolicyForIncident(sev model.Severity) *model.EscalationPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.policies {
		if p.Enabled && p.MatchesSeverity(sev) {
			return p
		}
	}
	return nil
}

// Start begins escalation for incidentID under policy unless an Active
// state already exists for it.
func (e *Engine) Start(incidentID model.IncidentID, policy *model.EscalationPolicy) *model.EscalationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.states[incidentID]; ok && existing.Status == model.EscalationActive {
		return existing.Clone()
	}
	now := e.clock.Now()
	st := &model.EscalationState{
		IncidentID:   incidentID,
		PolicyID:     policy.ID,
		Status:       model.EscalationActive,
		CurrentLevel: 0,
		NextFireAt:   now.Add(time.Duration(policy.Levels[0].DelayMin) * time.Minute),
	}
	e.states[incidentID] = st
	return st.Clone()
}

// StateFor returns a copy of the current escalation state for an incident.
func (e *Engine) StateFor(incidentID model.IncidentID) (*model.EscalationState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.states[incidentID]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Acknowledge records the acknowledgment. It only halts further firing
// (transitioning Status to Acknowledged, which Tick skips) when some
// already-executed level had stop_on_ack=true; otherwise the ladder keeps
// advancing on schedule with the acknowledgment recorded alongside it.
func (e *Engine) Acknowledge(incidentID model.IncidentID, actor string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[incidentID]
	if !ok || st.Status.IsTerminal() {
		return false
	}
	st.Acknowledged = true
	st.AcknowledgedBy = actor
	st.AcknowledgedAt = e.clock.Now()
	if st.StopOnAckArmed {
		st.Status = model.EscalationAcknowledged
	}
	return true
}

// Resolve transitions an Active/Acknowledged state to Resolved.
func (e *Engine) Resolve(incidentID model.IncidentID) bool {
	return e.terminalize(incidentID, model.EscalationResolved)
}

// Cancel transitions an Active/Acknowledged state to Cancelled.
func (e *Engine) Cancel(incidentID model.IncidentID) bool {
	return e.terminalize(incidentID, model.EscalationCancelled)
}

func (e *Engine) terminalize(incidentID model.IncidentID, status model.EscalationStatus) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[incidentID]
	if !ok || st.Status.IsTerminal() {
		return false
	}
	st.Status = status
	return true
}

// Tick advances every Active state whose next_fire_at has elapsed: fires
// notifications for the current level's targets, then advances level,
// repeat, or completes the ladder.
func (e *Engine) Tick(ctx context.Context) {
	now := e.clock.Now()

	e.mu.Lock()
	due := make([]*model.EscalationState, 0)
	policyByID := make(map[model.PolicyID]*model.EscalationPolicy, len(e.policies))
	for _, p := range e.policies {
		policyByID[p.ID] = p
	}
	for _, st := range e.states {
		if st.Status == model.EscalationActive && !st.NextFireAt.After(now) {
			due = append(due, st)
		}
	}
	e.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].IncidentID < due[j].IncidentID })

	for _, st := range due {
		policy, ok := policyByID[st.PolicyID]
		if !ok {
			slog.Error("escalation: state references unknown policy", "incident_id", st.IncidentID, "policy_id", st.PolicyID)
			continue
		}
		e.fireLevel(ctx, st, policy, now)
	}
}

func (e *Engine) fireLevel(ctx context.Context, st *model.EscalationState, policy *model.EscalationPolicy, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st.Status != model.EscalationActive {
		return
	}
	level := policy.Levels[st.CurrentLevel]

	for _, target := range level.Targets {
		for _, recipient := range e.resolveTarget(target, now) {
			n := &model.Notification{
				ID:         model.NewNotificationID(),
				IncidentID: st.IncidentID,
				Channel:    recipient,
				Status:     model.NotificationPending,
				CreatedAt:  now,
			}
			err := e.sink.QueueNotification(ctx, n)
			attempt := model.NotificationAttempt{
				SentAt:  now,
				Level:   level.Level,
				Target:  target,
				Channel: string(recipient.Kind),
				Success: err == nil,
			}
			if err != nil {
				attempt.Error = err.Error()
			}
			st.Notifications = append(st.Notifications, attempt)
		}
	}

	if level.StopOnAck {
		// Recorded for Acknowledge to consult; stop_on_ack is a property of
		// the level just fired, not of future levels.
		st.StopOnAckArmed = true
	}

	switch {
	case int(st.CurrentLevel)+1 < len(policy.Levels):
		st.CurrentLevel++
		st.NextFireAt = now.Add(time.Duration(policy.Levels[st.CurrentLevel].DelayMin) * time.Minute)
	case policy.Repeat != nil && st.RepeatCount < policy.Repeat.MaxRepeats:
		st.RepeatCount++
		st.CurrentLevel = 0
		st.NextFireAt = now.Add(time.Duration(policy.Levels[0].DelayMin)*time.Minute +
			time.Duration(policy.Repeat.IntervalMin)*time.Minute)
	default:
		st.Status = model.EscalationCompleted
	}
}

// resolveScheduleCached returns sched's on-call resolution at now, reusing
// the cached result until the earliest handoff among its layers (computed
// in the schedule's timezone), or the next hour boundary when a layer has a
// restriction, rather than re-walking rotation math on every tick. Callers
// must hold e.mu.
func (e *Engine) resolveScheduleCached(id model.ScheduleID, sched *model.OnCallSchedule, now time.Time) []model.Resolved {
	if entry, ok := e.resolved[id]; ok && now.Before(entry.validUntil) {
		return entry.result
	}
	result := ResolveSchedule(sched, now)
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil || sched.Timezone == "" {
		loc = time.UTC
	}
	local := now.In(loc)
	validUntil := now.AddDate(0, 0, 400)
	for _, layer := range sched.Layers {
		if next := NextHandoffTime(layer, local); next.Before(validUntil) {
			validUntil = next
		}
		if layer.Restriction != nil {
			if next := local.Truncate(time.Hour).Add(time.Hour); next.Before(validUntil) {
				validUntil = next
			}
		}
	}
	e.resolved[id] = resolvedCacheEntry{result: result, validUntil: validUntil}
	return result
}

// resolveTarget flattens a Target into zero or more notification channels.
func (e *Engine) resolveTarget(target model.Target, now time.Time) []model.Channel {
	switch target.Kind {
	case model.TargetUser:
		return []model.Channel{{Kind: model.ChannelEmail, To: target.Email}}
	case model.TargetTeam:
		return []model.Channel{{Kind: model.ChannelSlack, SlackChannel: target.TeamID}}
	case model.TargetWebhook:
		return []model.Channel{{Kind: model.ChannelWebhook, URL: target.URL}}
	case model.TargetSchedule:
		schedID := model.ScheduleID(target.ScheduleID)
		sched, ok := e.schedules[schedID]
		if !ok {
			slog.Warn("escalation: target references unknown schedule", "schedule_id", target.ScheduleID)
			return nil
		}
		resolved := e.resolveScheduleCached(schedID, sched, now)
		out := make([]model.Channel, 0, len(resolved))
		for _, r := range resolved {
			out = append(out, model.Channel{Kind: model.ChannelEmail, To: r.Email})
		}
		return out
	default:
		return nil
	}
}

// StartTicker begins a ticker goroutine that calls Tick every configured
// interval.
func (e *Engine) StartTicker(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			case <-e.clock.After(e.cfg.interval()):
				e.Tick(ctx)
			}
		}
	}()
}

// StopTicker stops the ticker goroutine started by StartTicker.
func (e *Engine) StopTicker() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}
