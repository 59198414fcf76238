package playbook

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
)

// Engine runs registered playbooks against incidents.
type Engine struct {
	registry *Registry
	clock    clock.Clock

	mu        sync.RWMutex
	playbooks map[model.PlaybookID]*model.Playbook
}

// New creates a Playbook Executor.
func New(registry *Registry, c clock.Clock) *Engine {
	return &Engine{
		registry:  registry,
		clock:     c,
		playbooks: make(map[model.PlaybookID]*model.Playbook),
	}
}

// Register adds or replaces a playbook.
func (e *Engine) Register(p *model.Playbook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playbooks[p.ID] = p
}

// MatchingPlaybooks returns every enabled playbook whose triggers match the
// incident, for auto-execution.
func (e *Engine) MatchingPlaybooks(incident *model.Incident) []*model.Playbook {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*model.Playbook
	for _, p := range e.playbooks {
		if p.Enabled && p.Triggers.Matches(incident.Severity, incident.IncidentType, incident.Source) {
			out = append(out, p)
		}
	}
	return out
}

// ExecutionResult is the outcome of running every step of one playbook
// execution.
type ExecutionResult struct {
	PlaybookID model.PlaybookID
	Steps      []StepResult
	Failed     bool
}

// Execute runs playbook's steps against incident in declaration order.
// Steps run sequentially; a failed step stops the playbook (no rollback).
// Multiple concurrent executions against the same incident are safe: each
// gets its own ExecContext, and any incident mutation goes through the
// store's compare-and-swap retry wrapper inside the action handlers.
func (e *Engine) Execute(ctx context.Context, playbook *model.Playbook, incident *model.Incident) ExecutionResult {
	execCtx := newExecContext(incident, playbook.Variables)
	result := ExecutionResult{PlaybookID: playbook.ID}

	for _, step := range playbook.Steps {
		sr := runStep(ctx, step, e.registry, e.clock, incident.ID, execCtx)
		result.Steps = append(result.Steps, sr)
		if sr.Status != StepSkipped {
			execCtx.RecordOutput(step.ID, map[string]any{"status": string(sr.Status)})
		}
		if sr.Status == StepFailed {
			slog.Error("playbook: step failed, halting playbook", "playbook_id", playbook.ID, "step_id", step.ID, "error", sr.Err)
			result.Failed = true
			return result
		}
	}
	return result
}
