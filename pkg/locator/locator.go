// Package locator breaks the engine↔engine / engine↔processor cycle spec.md
// §9 calls out: rather than the Processor importing every engine's full
// concrete type (and those engines importing each other back), each engine
// is described here by the narrow interface the Processor actually calls.
// Construction is two-phase, per §9: engines are built independently
// (pkg/dedup.New, pkg/correlation.New, ...) with no knowledge of each
// other, then wired into a Locator via the With* methods below before the
// Processor starts handling alerts.
package locator

import (
	"context"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// Dedup is the Deduplication Engine surface the Processor drives.
type Dedup interface {
	FindDuplicate(ctx context.Context, alert *model.Alert) *model.Incident
	MergeInto(ctx context.Context, alert *model.Alert, incidentID model.IncidentID) (*model.Incident, error)
}

// Enrichment is the Enrichment Pipeline surface the Processor drives.
type Enrichment interface {
	Enrich(ctx context.Context, incident *model.Incident) *model.EnrichedContext
}

// Routing is the Routing Rule Evaluator surface the Processor drives.
type Routing interface {
	Evaluate(incident *model.Incident) model.RoutingResult
}

// Escalation is the Escalation Engine surface the Processor drives.
type Escalation interface {
	FindPolicyForIncident(sev model.Severity) *model.EscalationPolicy
	Start(incidentID model.IncidentID, policy *model.EscalationPolicy) *model.EscalationState
}

// Playbooks is the Playbook Executor surface the Processor drives.
type Playbooks interface {
	MatchingPlaybooks(incident *model.Incident) []*model.Playbook
	Execute(ctx context.Context, playbook *model.Playbook, incident *model.Incident) PlaybookExecutionResult
}

// PlaybookExecutionResult mirrors playbook.ExecutionResult's shape without
// the Processor importing pkg/playbook for it.
type PlaybookExecutionResult struct {
	Failed bool
}

// Correlation is the Correlation Engine surface the Processor drives.
type Correlation interface {
	Analyze(ctx context.Context, incident *model.Incident) ([]CorrelationMatch, error)
	AssignToGroup(incident *model.Incident, match CorrelationMatch) *model.CorrelationGroup
}

// CorrelationMatch mirrors correlation.Match's shape without the Processor
// importing pkg/correlation for it.
type CorrelationMatch struct {
	Candidate *model.Incident
	Type      model.CorrelationType
	Score     float64
	Reason    string
}

// Locator is the set of narrow engine references the Incident Processor
// holds. Every field starts nil; a nil field means that best-effort
// pipeline stage is skipped (logged), which keeps the Processor usable in
// tests that only care about a subset of the pipeline.
type Locator struct {
	Dedup       Dedup
	Enrichment  Enrichment
	Routing     Routing
	Escalation  Escalation
	Playbooks   Playbooks
	Correlation Correlation
}

// New returns an empty Locator. Callers build each engine independently
// and then call the With* methods (or assign fields directly) before
// passing the Locator to processor.New — the two-phase init spec.md §9
// calls for.
func New() *Locator { return &Locator{} }

// WithDedup sets the Dedup engine and returns the Locator for chaining.
func (l *Locator) WithDedup(d Dedup) *Locator { l.Dedup = d; return l }

// WithEnrichment sets the Enrichment pipeline and returns the Locator.
func (l *Locator) WithEnrichment(e Enrichment) *Locator { l.Enrichment = e; return l }

// WithRouting sets the Routing evaluator and returns the Locator.
func (l *Locator) WithRouting(r Routing) *Locator { l.Routing = r; return l }

// WithEscalation sets the Escalation engine and returns the Locator.
func (l *Locator) WithEscalation(e Escalation) *Locator { l.Escalation = e; return l }

// WithPlaybooks sets the Playbook executor and returns the Locator.
func (l *Locator) WithPlaybooks(p Playbooks) *Locator { l.Playbooks = p; return l }

// WithCorrelation sets the Correlation engine and returns the Locator.
func (l *Locator) WithCorrelation(c Correlation) *Locator { l.Correlation = c; return l }
