package routing

import (
	"sort"
	"sync"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// Engine holds the registered rule set and evaluates it against incidents.
type Engine struct {
	mu    sync.RWMutex
	rules map[model.RuleID]*model.RoutingRule
}

// New creates a Routing Rule Evaluator.
func New() *Engine {
	return &Engine{rules: make(map[model.RuleID]*model.RoutingRule)}
}

// UpsertRule adds or replaces a rule.
func (e *Engine) UpsertRule(r *model.RoutingRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[r.ID] = r
}

// DeleteRule removes a rule by id.
func (e *Engine) DeleteRule(id model.RuleID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, id)
}

// ListRules returns enabled rules sorted by priority descending.
func (e *Engine) ListRules() []*model.RoutingRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*model.RoutingRule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Evaluate runs every enabled rule against incident, AND-joining each
// rule's conditions, and merges the suggestions of every matching rule
// additively, highest priority first.
func (e *Engine) Evaluate(incident *model.Incident) model.RoutingResult {
	var result model.RoutingResult

	for _, rule := range e.ListRules() {
		if !ruleMatches(rule, incident) {
			continue
		}
		for _, action := range rule.Actions {
			applyAction(&result, action)
			result.ActionsApplied++
		}
	}
	return result
}

func ruleMatches(rule *model.RoutingRule, incident *model.Incident) bool {
	for _, cond := range rule.Conditions {
		actual := project(incident, cond.Field)
		if !evaluate(cond, actual) {
			return false
		}
	}
	return true
}

// applyAction merges one matched action into result: labels union with
// last-write-wins on key collision, severity last-write-wins, everything
// else appends.
func applyAction(result *model.RoutingResult, action model.RoutingAction) {
	switch action.Kind {
	case model.ActionNotify:
		result.Notifications = append(result.Notifications, action.Channels...)
	case model.ActionAssign:
		result.SuggestedAssignees = append(result.SuggestedAssignees, action.Assignees...)
	case model.ActionApplyPlaybook:
		result.PlaybooksToExecute = append(result.PlaybooksToExecute, action.PlaybookID)
	case model.ActionAddLabels:
		if result.SuggestedLabels == nil {
			result.SuggestedLabels = make(map[string]string, len(action.Labels))
		}
		for k, v := range action.Labels {
			result.SuggestedLabels[k] = v
		}
	case model.ActionSetSeverity:
		result.SuggestedSeverity = action.Severity
	case model.ActionSuppress:
		result.SuppressForMinutes = action.SuppressMinutes
	}
}
