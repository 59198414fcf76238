// Package playbook implements the Playbook Executor: ordered step
// execution with sequential or bounded-parallel actions, condition
// templating, retry/backoff, and an extensible action-type registry.
package playbook

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/fluxguard/incidentcore/pkg/model"
)

var placeholderRe = regexp.MustCompile(`\$\{([a-zA-Z0-9_.-]+)\}`)

// ExecContext is the running substitution context for one playbook
// execution: incident fields, input variables, and prior steps'/actions'
// recorded outputs.
type ExecContext struct {
	incident  *model.Incident
	variables map[string]any

	mu      sync.RWMutex
	outputs map[string]map[string]any // "stepID" or "action_<n>" -> outputs
}

func newExecContext(incident *model.Incident, variables map[string]any) *ExecContext {
	return &ExecContext{
		incident:  incident,
		variables: variables,
		outputs:   make(map[string]map[string]any),
	}
}

// RecordOutput stores a namespace's (step id or action_<index>) output
// fields for later ${...} substitution.
func (c *ExecContext) RecordOutput(namespace string, fields map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[namespace] = fields
}

// substitute replaces every ${...} placeholder in s with its resolved
// value; a missing reference leaves the placeholder intact and logs once.
func (c *ExecContext) substitute(s string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(token string) string {
		path := token[2 : len(token)-1]
		v, ok := c.resolve(path)
		if !ok {
			slog.Warn("playbook: unresolved template reference", "path", path)
			return token
		}
		return fmt.Sprint(v)
	})
}

// substituteParams applies substitute to every string-valued parameter,
// recursing into nested maps; non-string values pass through unchanged.
func (c *ExecContext) substituteParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = c.substituteValue(v)
	}
	return out
}

func (c *ExecContext) substituteValue(v any) any {
	switch val := v.(type) {
	case string:
		return c.substitute(val)
	case map[string]any:
		return c.substituteParams(val)
	default:
		return v
	}
}

func (c *ExecContext) resolve(path string) (any, bool) {
	bucket, rest, hasRest := cut(path)
	switch {
	case bucket == "incident":
		return c.incidentField(rest)
	case bucket == "variables":
		v, ok := c.variables[rest]
		return v, ok
	case bucket == "step" && hasRest:
		// step.<id>.<key>
		stepID, key, ok := cut(rest)
		if !ok {
			return nil, false
		}
		return c.lookupOutput(stepID, key)
	case hasRest:
		// action_<index>.<key>: bucket is the namespace itself.
		return c.lookupOutput(bucket, rest)
	default:
		return nil, false
	}
}

func (c *ExecContext) lookupOutput(namespace, key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	outputs, ok := c.outputs[namespace]
	if !ok {
		return nil, false
	}
	v, ok := outputs[key]
	return v, ok
}

func cut(s string) (head, rest string, hasRest bool) {
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}

func (c *ExecContext) incidentField(field string) (any, bool) {
	if c.incident == nil {
		return nil, false
	}
	switch field {
	case "id":
		return string(c.incident.ID), true
	case "title":
		return c.incident.Title, true
	case "description":
		return c.incident.Description, true
	case "severity":
		return string(c.incident.Severity), true
	case "source":
		return c.incident.Source, true
	case "state":
		return string(c.incident.State), true
	default:
		return nil, false
	}
}

// EvaluateCondition reports whether a step's condition expression allows
// the step to run. An empty condition always runs. A condition is treated
// as a truthy check on its substituted, trimmed string value ("", "false",
// "0" are falsy).
func (c *ExecContext) EvaluateCondition(expr string) bool {
	if strings.TrimSpace(expr) == "" {
		return true
	}
	resolved := strings.TrimSpace(c.substitute(expr))
	switch strings.ToLower(resolved) {
	case "", "false", "0":
		return false
	default:
		return true
	}
}
