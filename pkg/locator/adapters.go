package locator

import (
	"context"

	"github.com/fluxguard/incidentcore/pkg/correlation"
	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/playbook"
)

// correlationAdapter adapts *correlation.Engine to the Correlation
// interface, translating correlation.Match <-> CorrelationMatch so the
// Processor never imports pkg/correlation directly.
type correlationAdapter struct{ engine *correlation.Engine }

// AdaptCorrelation wraps a concrete Correlation Engine for Locator use.
func AdaptCorrelation(e *correlation.Engine) Correlation { return &correlationAdapter{engine: e} }

func (a *correlationAdapter) Analyze(ctx context.Context, incident *model.Incident) ([]CorrelationMatch, error) {
	matches, err := a.engine.Analyze(ctx, incident)
	if err != nil {
		return nil, err
	}
	out := make([]CorrelationMatch, len(matches))
	for i, m := range matches {
		out[i] = CorrelationMatch{Candidate: m.Candidate, Type: m.Type, Score: m.Score, Reason: m.Reason}
	}
	return out, nil
}

func (a *correlationAdapter) AssignToGroup(incident *model.Incident, match CorrelationMatch) *model.CorrelationGroup {
	return a.engine.AssignToGroup(incident, correlation.Match{
		Candidate: match.Candidate, Type: match.Type, Score: match.Score, Reason: match.Reason,
	})
}

// playbookAdapter adapts *playbook.Engine to the Playbooks interface.
type playbookAdapter struct{ engine *playbook.Engine }

// AdaptPlaybooks wraps a concrete Playbook Executor for Locator use.
func AdaptPlaybooks(e *playbook.Engine) Playbooks { return &playbookAdapter{engine: e} }

func (a *playbookAdapter) MatchingPlaybooks(incident *model.Incident) []*model.Playbook {
	return a.engine.MatchingPlaybooks(incident)
}

func (a *playbookAdapter) Execute(ctx context.Context, pb *model.Playbook, incident *model.Incident) PlaybookExecutionResult {
	result := a.engine.Execute(ctx, pb, incident)
	return PlaybookExecutionResult{Failed: result.Failed}
}
