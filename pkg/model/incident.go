// Package model holds the data types shared by every engine: Incident,
// Alert, Correlation, CorrelationGroup, EscalationPolicy, EscalationState,
// OnCallSchedule, RoutingRule, Playbook, and Notification.
package model

import (
	"time"

	"github.com/google/uuid"
)

// IncidentID identifies an Incident. It is a 128-bit UUID, rendered as its
// canonical string form.
type IncidentID string

// NewIncidentID mints a fresh IncidentID.
func NewIncidentID() IncidentID {
	return IncidentID(uuid.NewString())
}

// State is the incident lifecycle state.
type State string

const (
	StateDetected      State = "detected"
	StateTriaged       State = "triaged"
	StateInvestigating State = "investigating"
	StateRemediating   State = "remediating"
	StateResolved      State = "resolved"
	StateClosed        State = "closed"
)

// IsActive reports whether incidents in this state are still open
// (not Resolved/Closed), matching the dedup match rule in spec §4.1.
func (s State) IsActive() bool {
	return s != StateResolved && s != StateClosed
}

// Severity ranks incident urgency; P0 is the highest.
type Severity string

const (
	SeverityP0 Severity = "P0"
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
	SeverityP4 Severity = "P4"
)

var severityOrder = map[Severity]int{
	SeverityP0: 0,
	SeverityP1: 1,
	SeverityP2: 2,
	SeverityP3: 3,
	SeverityP4: 4,
}

var severityByRank = []Severity{SeverityP0, SeverityP1, SeverityP2, SeverityP3, SeverityP4}

// PriorityScore maps severity to the routing evaluator's derived numeric
// field.: P0→10 ... P4→2.
func (s Severity) PriorityScore() float64 {
	rank, ok := severityOrder[s]
	if !ok {
		return 0
	}
	return float64(10 - 2*rank)
}

// Numeric maps P0..P4 onto [0.0, 1.0] for the round-trip property in spec §8.
func (s Severity) Numeric() float64 {
	rank, ok := severityOrder[s]
	if !ok {
		return 0
	}
	return float64(rank) / float64(len(severityByRank)-1)
}

// SeverityFromNumeric is the inverse of Numeric: it returns the unique
// bucket containing v, clamping out-of-range input to the nearest end.
func SeverityFromNumeric(v float64) Severity {
	n := len(severityByRank)
	idx := int(v*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return severityByRank[idx]
}

// Saturate moves the severity one notch toward more severe (up=true, toward
// P0) or less severe (up=false, toward P4), clamping at the ends. Used by
// the playbook SeverityIncrease/Decrease actions.
func (s Severity) Saturate(up bool) Severity {
	rank, ok := severityOrder[s]
	if !ok {
		return s
	}
	if up {
		rank--
	} else {
		rank++
	}
	if rank < 0 {
		rank = 0
	}
	if rank > len(severityByRank)-1 {
		rank = len(severityByRank) - 1
	}
	return severityByRank[rank]
}

// Type classifies the kind of problem an incident represents.
type Type string

const (
	TypeInfrastructure Type = "infrastructure"
	TypeApplication    Type = "application"
	TypeSecurity       Type = "security"
	TypePerformance    Type = "performance"
	TypeData           Type = "data"
	TypeAvailability   Type = "availability"
	TypeCompliance     Type = "compliance"
	TypeUnknown        Type = "unknown"
)

// ResolutionMethod records how an incident was resolved.
type ResolutionMethod string

const (
	ResolutionAutomated    ResolutionMethod = "automated"
	ResolutionManual       ResolutionMethod = "manual"
	ResolutionAutoResolved ResolutionMethod = "auto_resolved"
)

// Resolution is set once an incident is closed out.
type Resolution struct {
	Who        string
	Method     ResolutionMethod
	Notes      string
	RootCause  string
	ResolvedAt time.Time
}

// TimelineEvent records one accepted mutation against an incident. spec §8
// requires that timeline length equal the number of accepted mutations, so
// every mutating method on Incident must append exactly one of these.
type TimelineEvent struct {
	Timestamp   time.Time
	Type        string
	Actor       string
	Description string
	Metadata    map[string]string
}

// Incident is the system's durable record of a problem. Identity
// (ID, CreatedAt, Fingerprint derivation) is immutable; everything else
// mutates through the methods below so the timeline invariant holds.
type Incident struct {
	ID                IncidentID
	State             State
	Severity          Severity
	IncidentType      Type
	Source            string
	Title             string
	Description       string
	Labels            map[string]string
	Assignees         []string
	AffectedResources map[string]struct{}
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Fingerprint       string
	OccurrenceCount   int
	Resolution        *Resolution
	Timeline          []TimelineEvent
}

// Clone returns a deep copy so callers (stores, caches, snapshot readers)
// never share mutable state with the engine that owns the original.
func (inc *Incident) Clone() *Incident {
	if inc == nil {
		return nil
	}
	out := *inc
	out.Labels = cloneStringMap(inc.Labels)
	out.Assignees = append([]string(nil), inc.Assignees...)
	out.AffectedResources = cloneStringSet(inc.AffectedResources)
	out.Timeline = make([]TimelineEvent, len(inc.Timeline))
	for i, ev := range inc.Timeline {
		out.Timeline[i] = ev
		out.Timeline[i].Metadata = cloneStringMap(ev.Metadata)
	}
	if inc.Resolution != nil {
		res := *inc.Resolution
		out.Resolution = &res
	}
	return &out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringSet(m map[string]struct{}) map[string]struct{} {
	if m == nil {
		return nil
	}
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// appendEvent appends a timeline event and bumps UpdatedAt, enforcing the
// "every mutation appends a timeline event" invariant.
func (inc *Incident) appendEvent(now time.Time, typ, actor, description string, metadata map[string]string) {
	inc.Timeline = append(inc.Timeline, TimelineEvent{
		Timestamp:   now,
		Type:        typ,
		Actor:       actor,
		Description: description,
		Metadata:    metadata,
	})
	inc.UpdatedAt = now
}

// MergeAlert increments OccurrenceCount, unions AffectedResources and
// Labels (right-biased on conflict), and appends an AlertMerged timeline
// event. Used by the Dedup Engine.
func (inc *Incident) MergeAlert(now time.Time, alertID, sourceLabels map[string]string, affectedResources []string) {
	inc.OccurrenceCount++
	for k, v := range sourceLabels {
		if inc.Labels == nil {
			inc.Labels = make(map[string]string)
		}
		inc.Labels[k] = v
	}
	if inc.AffectedResources == nil {
		inc.AffectedResources = make(map[string]struct{})
	}
	for _, r := range affectedResources {
		inc.AffectedResources[r] = struct{}{}
	}
	inc.appendEvent(now, "AlertMerged", "dedup-engine", "alert merged into incident", map[string]string{
		"alert_id": alertID["id"],
	})
}

// Resolve sets the Resolution and transitions State to Resolved, appending
// a timeline event. It is a no-op if already resolved/closed.
func (inc *Incident) Resolve(now time.Time, actor string, method ResolutionMethod, notes, rootCause string) {
	if !inc.State.IsActive() {
		return
	}
	inc.Resolution = &Resolution{
		Who:        actor,
		Method:     method,
		Notes:      notes,
		RootCause:  rootCause,
		ResolvedAt: now,
	}
	inc.State = StateResolved
	inc.appendEvent(now, "IncidentResolved", actor, notes, nil)
}

// SetSeverity mutates severity and appends a timeline event.
func (inc *Incident) SetSeverity(now time.Time, actor string, sev Severity) {
	if inc.Severity == sev {
		return
	}
	old := inc.Severity
	inc.Severity = sev
	inc.appendEvent(now, "SeverityChanged", actor, string(old)+" -> "+string(sev), nil)
}

// AddLabels merges labels (right-biased) and appends a timeline event.
func (inc *Incident) AddLabels(now time.Time, actor string, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	if inc.Labels == nil {
		inc.Labels = make(map[string]string)
	}
	for k, v := range labels {
		inc.Labels[k] = v
	}
	inc.appendEvent(now, "LabelsAdded", actor, "labels merged", labels)
}

// Assign appends assignees (order preserved, no de-dup removal of
// existing entries) and appends a timeline event.
func (inc *Incident) Assign(now time.Time, actor string, assignees []string) {
	if len(assignees) == 0 {
		return
	}
	inc.Assignees = append(inc.Assignees, assignees...)
	inc.appendEvent(now, "Assigned", actor, "assignees updated", nil)
}

// SetState transitions state and appends a timeline event.
func (inc *Incident) SetState(now time.Time, actor string, state State) {
	if inc.State == state {
		return
	}
	inc.State = state
	inc.appendEvent(now, "StateChanged", actor, string(state), nil)
}
