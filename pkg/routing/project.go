// Package routing implements the Routing Rule Evaluator: a field
// projection grammar over incidents, AND-joined predicate conditions, and
// additive merge of matched rules' suggested actions.
package routing

import (
	"strings"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// project resolves field against incident using the grammar: top-level
// scalar fields, "labels.<name>" for label lookups, and nil for anything
// unrecognized.
func project(incident *model.Incident, field string) any {
	switch field {
	case "id":
		return string(incident.ID)
	case "source":
		return incident.Source
	case "title":
		return incident.Title
	case "description":
		return incident.Description
	case "severity":
		return string(incident.Severity)
	case "state":
		return string(incident.State)
	case "incident_type":
		return string(incident.IncidentType)
	case "priority_score":
		return incident.Severity.PriorityScore()
	case "assignees":
		out := make([]any, len(incident.Assignees))
		for i, a := range incident.Assignees {
			out[i] = a
		}
		return out
	}
	if rest, ok := strings.CutPrefix(field, "labels."); ok {
		if v, ok := incident.Labels[rest]; ok {
			return v
		}
		return nil
	}
	return nil
}
