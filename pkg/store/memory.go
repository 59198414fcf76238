package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fluxguard/incidentcore/pkg/incidenterr"
	"github.com/fluxguard/incidentcore/pkg/model"
)

// Memory is an in-memory Store keyed by incident id, with a secondary
// fingerprint index. Mutations are serialized per-incident via a global
// RWMutex plus an optimistic CAS on UpdatedAt: callers that
// need compare-and-set semantics should use CompareAndSwap directly or
// MutateIncident, which retries it; UpdateIncident performs a plain
// existence-checked overwrite with no version check.
type Memory struct {
	mu          sync.RWMutex
	byID        map[model.IncidentID]*model.Incident
	fingerprint map[string]map[model.IncidentID]struct{}
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		byID:        make(map[model.IncidentID]*model.Incident),
		fingerprint: make(map[string]map[model.IncidentID]struct{}),
	}
}

// SaveIncident inserts or overwrites an incident.
func (m *Memory) SaveIncident(_ context.Context, inc *model.Incident) error {
	if inc == nil {
		return incidenterr.New(incidenterr.KindValidation, "incident must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(inc.Clone())
	return nil
}

func (m *Memory) put(inc *model.Incident) {
	m.byID[inc.ID] = inc
	if inc.Fingerprint != "" {
		set, ok := m.fingerprint[inc.Fingerprint]
		if !ok {
			set = make(map[model.IncidentID]struct{})
			m.fingerprint[inc.Fingerprint] = set
		}
		set[inc.ID] = struct{}{}
	}
}

// GetIncident returns a deep copy of the stored incident, or nil if absent.
func (m *Memory) GetIncident(_ context.Context, id model.IncidentID) (*model.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inc, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return inc.Clone(), nil
}

// UpdateIncident requires the incident to already exist.
func (m *Memory) UpdateIncident(_ context.Context, inc *model.Incident) error {
	if inc == nil {
		return incidenterr.New(incidenterr.KindValidation, "incident must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[inc.ID]; !ok {
		return incidenterr.Newf(incidenterr.KindNotFound, "incident %s not found", inc.ID)
	}
	m.put(inc.Clone())
	return nil
}

// CompareAndSwap applies mutate to the stored incident iff its current
// UpdatedAt equals expectedUpdatedAt, returning incidenterr.KindConflict
// otherwise. This is the CAS primitive spec §5/§9 calls for; callers that
// need serializable per-incident updates across engines should use this
// (or MutateIncident, which retries automatically) instead of
// UpdateIncident directly.
func (m *Memory) CompareAndSwap(_ context.Context, id model.IncidentID, expectedUpdatedAt time.Time, mutate func(*model.Incident)) (*model.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byID[id]
	if !ok {
		return nil, incidenterr.Newf(incidenterr.KindNotFound, "incident %s not found", id)
	}
	if !cur.UpdatedAt.Equal(expectedUpdatedAt) {
		return nil, incidenterr.Newf(incidenterr.KindConflict, "incident %s was updated concurrently", id)
	}
	next := cur.Clone()
	mutate(next)
	m.put(next)
	return next.Clone(), nil
}

// MutateIncident loads the incident, applies mutate to a clone, and
// retries the CompareAndSwap against the latest version on conflict, up
// to maxAttempts times. This is the pattern engines should use for
// read-modify-write sequences (spec §5: "last-write-wins conflict returns
// Conflict which callers retry at their discretion").
func (m *Memory) MutateIncident(ctx context.Context, id model.IncidentID, maxAttempts int, mutate func(*model.Incident)) (*model.Incident, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cur, err := m.GetIncident(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, incidenterr.Newf(incidenterr.KindNotFound, "incident %s not found", id)
		}
		updated, err := m.CompareAndSwap(ctx, id, cur.UpdatedAt, mutate)
		if err == nil {
			return updated, nil
		}
		if !incidenterr.IsConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// DeleteIncident removes an incident.
func (m *Memory) DeleteIncident(_ context.Context, id model.IncidentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.byID[id]
	if !ok {
		return incidenterr.Newf(incidenterr.KindNotFound, "incident %s not found", id)
	}
	delete(m.byID, id)
	if inc.Fingerprint != "" {
		delete(m.fingerprint[inc.Fingerprint], id)
	}
	return nil
}

// ListIncidents returns incidents matching filter, sorted by CreatedAt DESC
// and paginated.
func (m *Memory) ListIncidents(_ context.Context, filter IncidentFilter, page, pageSize int) ([]*model.Incident, error) {
	m.mu.RLock()
	all := make([]*model.Incident, 0, len(m.byID))
	for _, inc := range m.byID {
		if matches(inc, filter) {
			all = append(all, inc.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if pageSize <= 0 {
		return all, nil
	}
	start := page * pageSize
	if start >= len(all) {
		return []*model.Incident{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

// CountIncidents returns the number of incidents matching filter.
func (m *Memory) CountIncidents(_ context.Context, filter IncidentFilter) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n uint64
	for _, inc := range m.byID {
		if matches(inc, filter) {
			n++
		}
	}
	return n, nil
}

// FindByFingerprint returns every incident sharing the given fingerprint
//., used by the Dedup Engine.
func (m *Memory) FindByFingerprint(_ context.Context, fingerprint string) ([]*model.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.fingerprint[fingerprint]
	out := make([]*model.Incident, 0, len(ids))
	for id := range ids {
		if inc, ok := m.byID[id]; ok {
			out = append(out, inc.Clone())
		}
	}
	return out, nil
}

func matches(inc *model.Incident, filter IncidentFilter) bool {
	if filter.ActiveOnly && !inc.State.IsActive() {
		return false
	}
	if len(filter.Severities) > 0 && !severityIn(filter.Severities, inc.Severity) {
		return false
	}
	if len(filter.States) > 0 && !stateIn(filter.States, inc.State) {
		return false
	}
	if len(filter.Sources) > 0 && !sourceIn(filter.Sources, inc.Source) {
		return false
	}
	return true
}

func severityIn(list []model.Severity, v model.Severity) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func stateIn(list []model.State, v model.State) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func sourceIn(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

var _ Store = (*Memory)(nil)
