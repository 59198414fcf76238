package playbook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
)

// defaultStepTimeout applies when a step does not specify one.
const defaultStepTimeout = 300 * time.Second

func withStepTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// StepStatus is the outcome of running one step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult records what happened running one step, including attempt
// count so callers can inspect retries after the fact.
type StepResult struct {
	StepID   string
	Status   StepStatus
	Attempts int
	Note     string
	Err      error
}

// maxParallelActions bounds concurrent actions within one step so a
// playbook with many parallel actions cannot thunder-herd downstream
// systems.
const maxParallelActions = 8

// runStep executes one step: condition check, then actions (sequential or
// bounded-parallel), with retry/backoff on failure, each attempt bounded by
// the step's timeout.
func runStep(ctx context.Context, step model.Step, registry *Registry, c clock.Clock,
	incidentID model.IncidentID, execCtx *ExecContext) StepResult {

	if !execCtx.EvaluateCondition(step.Condition) {
		return StepResult{StepID: step.ID, Status: StepSkipped, Note: "Skipped due to condition"}
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}

	maxAttempts := step.Retry + 1
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attemptCtx, cancel := withStepTimeout(ctx, timeout)
		err := runActions(attemptCtx, step, registry, incidentID, execCtx)
		cancel()
		if err == nil {
			return StepResult{StepID: step.ID, Status: StepCompleted, Attempts: attempt + 1}
		}
		lastErr = err
		slog.Warn("playbook: step attempt failed", "step_id", step.ID, "attempt", attempt+1, "error", err)

		if attempt+1 < maxAttempts {
			select {
			case <-c.After(step.Backoff.Delay(attempt)):
			case <-ctx.Done():
				return StepResult{StepID: step.ID, Status: StepFailed, Attempts: attempt + 1, Err: ctx.Err()}
			}
		}
	}
	return StepResult{StepID: step.ID, Status: StepFailed, Attempts: maxAttempts, Err: lastErr}
}

func runActions(ctx context.Context, step model.Step, registry *Registry, incidentID model.IncidentID, execCtx *ExecContext) error {
	if step.Parallel {
		return runActionsParallel(ctx, step, registry, incidentID, execCtx)
	}
	for i, action := range step.Actions {
		if err := runOneAction(ctx, i, action, registry, incidentID, execCtx); err != nil {
			return err
		}
	}
	return nil
}

func runActionsParallel(ctx context.Context, step model.Step, registry *Registry, incidentID model.IncidentID, execCtx *ExecContext) error {
	sem := make(chan struct{}, maxParallelActions)
	var wg sync.WaitGroup
	errs := make([]error, len(step.Actions))

	for i, action := range step.Actions {
		i, action := i, action
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = runOneAction(ctx, i, action, registry, incidentID, execCtx)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func runOneAction(ctx context.Context, index int, action model.PlaybookAction, registry *Registry, incidentID model.IncidentID, execCtx *ExecContext) error {
	fn, ok := registry.lookup(action.Type)
	if !ok {
		return fmt.Errorf("playbook: unregistered action type %q", action.Type)
	}
	params := execCtx.substituteParams(action.Parameters)
	result, err := fn(ctx, incidentID, params)
	if err != nil {
		return err
	}
	execCtx.RecordOutput(fmt.Sprintf("action_%d", index), result.Outputs)
	return nil
}
