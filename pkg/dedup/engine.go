package dedup

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/store"
)

// Config holds the dedup window.
type Config struct {
	WindowSecs int // dedup_window_secs, default 900
}

// DefaultConfig returns the spec §6.4 default.
func DefaultConfig() Config {
	return Config{WindowSecs: 900}
}

func (c Config) window() time.Duration {
	if c.WindowSecs <= 0 {
		return 900 * time.Second
	}
	return time.Duration(c.WindowSecs) * time.Second
}

// Engine implements the match rule and merge semantics of spec §4.1.
type Engine struct {
	store store.Store
	clock clock.Clock
	cfg   Config

	// seenAlerts deduplicates the merge operation on alert.id within
	// the merge window, so presenting the same alert twice is idempotent
	// (spec §4.1: "store MUST de-dupe on alert id within the merge
	// window"). Keyed by incident id -> seen alert external id -> merge time.
	mu         sync.Mutex
	seenAlerts map[model.IncidentID]map[string]time.Time
}

// New creates a Dedup Engine.
func New(s store.Store, c clock.Clock, cfg Config) *Engine {
	return &Engine{
		store:      s,
		clock:      c,
		cfg:        cfg,
		seenAlerts: make(map[model.IncidentID]map[string]time.Time),
	}
}

// FindDuplicate returns the most recently updated open incident matching
// the alert's fingerprint within the dedup window, or nil if none (spec
// §4.1). Store errors are treated as "not a duplicate" per the documented
// failure semantics — never block the pipeline on a read failure.
func (e *Engine) FindDuplicate(ctx context.Context, alert *model.Alert) *model.Incident {
	fp := Fingerprint(alert.Source, alert.Title, alert.Type)
	candidates, err := e.store.FindByFingerprint(ctx, fp)
	if err != nil {
		slog.Error("dedup: fingerprint lookup failed, treating alert as new", "error", err)
		return nil
	}
	return e.pickCandidate(candidates)
}

// IsDuplicateIncident applies the same rule to a synthetic incident used
// for programmatic incident creation.
func (e *Engine) IsDuplicateIncident(ctx context.Context, inc *model.Incident) *model.Incident {
	candidates, err := e.store.FindByFingerprint(ctx, inc.Fingerprint)
	if err != nil {
		slog.Error("dedup: fingerprint lookup failed, treating incident as new", "error", err)
		return nil
	}
	return e.pickCandidate(candidates)
}

func (e *Engine) pickCandidate(candidates []*model.Incident) *model.Incident {
	cutoff := e.clock.Now().Add(-e.cfg.window())
	var matches []*model.Incident
	for _, c := range candidates {
		if !c.State.IsActive() {
			continue
		}
		if c.CreatedAt.Before(cutoff) {
			continue
		}
		matches = append(matches, c)
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].UpdatedAt.After(matches[j].UpdatedAt) })
	return matches[0]
}

// MergeInto merges alert into incident: increments occurrence_count,
// updates updated_at, appends an AlertMerged timeline event, and unions
// affected_resources/labels (right-biased on conflict). Idempotent if the
// same alert.id is presented twice within the merge window.
func (e *Engine) MergeInto(ctx context.Context, alert *model.Alert, incidentID model.IncidentID) (*model.Incident, error) {
	if e.alreadyMerged(incidentID, alert.ExternalID) {
		return e.store.GetIncident(ctx, incidentID)
	}

	var affected []string
	if svc, ok := alert.Labels["affected_resource"]; ok && svc != "" {
		affected = append(affected, svc)
	}

	m, ok := e.store.(interface {
		MutateIncident(ctx context.Context, id model.IncidentID, maxAttempts int, mutate func(*model.Incident)) (*model.Incident, error)
	})
	now := e.clock.Now()
	mutate := func(inc *model.Incident) {
		inc.MergeAlert(now, map[string]string{"id": alert.ExternalID}, alert.Labels, affected)
	}

	var (
		updated *model.Incident
		err     error
	)
	if ok {
		updated, err = m.MutateIncident(ctx, incidentID, 5, mutate)
	} else {
		updated, err = e.mutateViaGetUpdate(ctx, incidentID, mutate)
	}
	if err != nil {
		return nil, err
	}
	e.markMerged(incidentID, alert.ExternalID, now)
	return updated, nil
}

// mutateViaGetUpdate is the fallback for Store implementations that don't
// expose MutateIncident (e.g. a future persistent backend honoring only
// the narrow store.Store interface).
func (e *Engine) mutateViaGetUpdate(ctx context.Context, id model.IncidentID, mutate func(*model.Incident)) (*model.Incident, error) {
	inc, err := e.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(inc)
	if err := e.store.UpdateIncident(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

func (e *Engine) alreadyMerged(incidentID model.IncidentID, alertExternalID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen, ok := e.seenAlerts[incidentID]
	if !ok {
		return false
	}
	mergedAt, ok := seen[alertExternalID]
	if !ok {
		return false
	}
	return e.clock.Now().Sub(mergedAt) <= e.cfg.window()
}

func (e *Engine) markMerged(incidentID model.IncidentID, alertExternalID string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen, ok := e.seenAlerts[incidentID]
	if !ok {
		seen = make(map[string]time.Time)
		e.seenAlerts[incidentID] = seen
	}
	seen[alertExternalID] = at
}
