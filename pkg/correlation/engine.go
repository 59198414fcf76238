package correlation

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/store"
)

// CandidateSource supplies the pool of incidents Analyze considers. In
// production this is backed by the incident store; tests can substitute a
// fixed slice.
type CandidateSource interface {
	ListIncidents(ctx context.Context, filter store.IncidentFilter) ([]*model.Incident, error)
}

// statusRank orders GroupStatus for merge comparisons; higher never regresses.
var statusRank = map[model.GroupStatus]int{
	model.GroupActive:   0,
	model.GroupStable:   1,
	model.GroupResolved: 2,
}

// Engine owns the live set of correlation groups and evaluates a fixed,
// ordered chain of scoring strategies against candidate incidents.
type Engine struct {
	source CandidateSource
	clock  clock.Clock
	cfg    Config

	mu           sync.RWMutex
	groups       map[model.GroupID]*model.CorrelationGroup
	correlations map[model.GroupID][]model.Correlation
	// memberOf lets an incident's current group be found in O(1).
	memberOf map[model.IncidentID]model.GroupID
}

// New creates a Correlation Engine.
func New(source CandidateSource, c clock.Clock, cfg Config) *Engine {
	return &Engine{
		source:       source,
		clock:        c,
		cfg:          cfg,
		groups:       make(map[model.GroupID]*model.CorrelationGroup),
		correlations: make(map[model.GroupID][]model.Correlation),
		memberOf:     make(map[model.IncidentID]model.GroupID),
	}
}

// Match pairs one fired strategy result with the candidate that produced it.
type Match struct {
	Candidate *model.Incident
	Type      model.CorrelationType
	Score     float64
	Reason    string
}

// Analyze runs every enabled strategy between incident and each active
// candidate, returning matches at or above MinCorrelationScore, highest
// score first. It never mutates incident or the candidates.
func (e *Engine) Analyze(ctx context.Context, incident *model.Incident) ([]Match, error) {
	candidates, err := e.source.ListIncidents(ctx, store.IncidentFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	var matches []Match
	considered := 0
	for _, c := range candidates {
		if c.ID == incident.ID {
			continue
		}
		if e.cfg.MaxCandidates > 0 && considered >= e.cfg.MaxCandidates {
			slog.Warn("correlation: candidate cap reached, remaining incidents skipped",
				"cap", e.cfg.MaxCandidates)
			break
		}
		considered++

		var fired []result
		if e.cfg.EnableTemporal {
			if r := temporal(incident, c, e.cfg.TemporalWindowSecs); r.fired {
				fired = append(fired, r)
			}
		}
		if e.cfg.EnablePattern {
			if r := pattern(incident, c, e.cfg.PatternSimilarityThresh); r.fired {
				fired = append(fired, r)
			}
		}
		if e.cfg.EnableSource {
			if r := source(incident, c); r.fired {
				fired = append(fired, r)
			}
		}
		if e.cfg.EnableFingerprint {
			if r := fingerprintStrategy(incident, c); r.fired {
				fired = append(fired, r)
			}
		}
		if e.cfg.EnableTopology {
			if r := topology(incident, c); r.fired {
				fired = append(fired, r)
			}
		}

		best := bestOf(fired)
		if combined, ok := combine(fired); ok && combined.score > best.score {
			best = combined
		}
		if best.fired && best.score >= e.cfg.MinCorrelationScore {
			matches = append(matches, Match{Candidate: c, Type: best.typ, Score: best.score, Reason: best.reason})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
}

func bestOf(fired []result) result {
	var best result
	for _, r := range fired {
		if r.score > best.score {
			best = r
		}
	}
	return best
}

// GroupFor returns the group an incident currently belongs to, if any.
func (e *Engine) GroupFor(id model.IncidentID) (*model.CorrelationGroup, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	gid, ok := e.memberOf[id]
	if !ok {
		return nil, false
	}
	g, ok := e.groups[gid]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// AssignToGroup places incident into match.Candidate's existing group (or
// the candidate into incident's group when only incident is grouped),
// creating a new group with incident as primary when neither is grouped,
// and unions the two groups when incident and candidate already belong to
// distinct groups. Returns the resulting group.
func (e *Engine) AssignToGroup(incident *model.Incident, match Match) *model.CorrelationGroup {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	incGID, incHasGroup := e.memberOf[incident.ID]
	candGID, candHasGroup := e.memberOf[match.Candidate.ID]

	corr := model.Correlation{
		ID:          model.NewCorrelationID(),
		IncidentIDs: map[model.IncidentID]struct{}{incident.ID: {}, match.Candidate.ID: {}},
		Score:       match.Score,
		Type:        match.Type,
		Reason:      match.Reason,
		CreatedAt:   now,
	}

	switch {
	case incHasGroup && candHasGroup && incGID != candGID:
		return e.mergeGroupsLocked(incGID, candGID, corr)
	case incHasGroup:
		return e.addMemberLocked(incGID, match.Candidate.ID, match.Score, corr)
	case candHasGroup:
		return e.addMemberLocked(candGID, incident.ID, match.Score, corr)
	default:
		return e.newGroupLocked(incident.ID, match.Candidate.ID, match, corr)
	}
}

func (e *Engine) newGroupLocked(a, b model.IncidentID, match Match, corr model.Correlation) *model.CorrelationGroup {
	ts := e.clock.Now()
	g := &model.CorrelationGroup{
		ID:                model.NewGroupID(),
		PrimaryIncidentID: a,
		Members:           map[model.IncidentID]float64{a: match.Score, b: match.Score},
		AggregateScore:    match.Score,
		Status:            model.GroupActive,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	e.groups[g.ID] = g
	e.correlations[g.ID] = []model.Correlation{corr}
	e.memberOf[a] = g.ID
	e.memberOf[b] = g.ID
	return g.Clone()
}

func (e *Engine) addMemberLocked(gid model.GroupID, member model.IncidentID, score float64, corr model.Correlation) *model.CorrelationGroup {
	g := e.groups[gid]
	if existing, ok := g.Members[member]; !ok || score > existing {
		g.Members[member] = score
	}
	e.memberOf[member] = gid
	g.AggregateScore = recomputeAggregate(g.Members)
	g.UpdatedAt = e.clock.Now()
	e.correlations[gid] = append(e.correlations[gid], corr)
	return g.Clone()
}

// mergeGroupsLocked unions b into a, keeping a's id and the more advanced of
// the two statuses (Active < Stable < Resolved, never regressing).
func (e *Engine) mergeGroupsLocked(a, b model.GroupID, corr model.Correlation) *model.CorrelationGroup {
	ga, gb := e.groups[a], e.groups[b]
	for id, score := range gb.Members {
		if existing, ok := ga.Members[id]; !ok || score > existing {
			ga.Members[id] = score
		}
		e.memberOf[id] = a
	}
	ga.AggregateScore = recomputeAggregate(ga.Members)
	if statusRank[gb.Status] > statusRank[ga.Status] {
		ga.Status = gb.Status
	}
	ga.UpdatedAt = e.clock.Now()
	e.correlations[a] = append(e.correlations[a], e.correlations[b]...)
	e.correlations[a] = append(e.correlations[a], corr)
	delete(e.groups, b)
	delete(e.correlations, b)
	return ga.Clone()
}

func recomputeAggregate(members map[model.IncidentID]float64) float64 {
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, v := range members {
		sum += v
	}
	return sum / float64(len(members))
}

// AdvanceGroupStatus transitions a group forward (Active→Stable→Resolved)
// if next is a legal forward move, reporting whether it happened.
func (e *Engine) AdvanceGroupStatus(gid model.GroupID, next model.GroupStatus) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.groups[gid]
	if !ok {
		return false
	}
	if g.AdvanceStatus(next) {
		g.UpdatedAt = e.clock.Now()
		return true
	}
	return false
}

// CorrelationsFor returns the accepted correlations backing a group, in the
// order they were recorded.
func (e *Engine) CorrelationsFor(gid model.GroupID) []model.Correlation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	src := e.correlations[gid]
	out := make([]model.Correlation, len(src))
	copy(out, src)
	return out
}

// Snapshot returns a deep copy of every live correlation group, useful for
// inspection and tests.
func (e *Engine) Snapshot() []*model.CorrelationGroup {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*model.CorrelationGroup, 0, len(e.groups))
	for _, g := range e.groups {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
