package model

import "time"

// SimilarIncident is one historical match surfaced by the historical
// enricher.
type SimilarIncident struct {
	IncidentID       IncidentID
	SimilarityScore  float64
	Title            string
	Resolution       string
	ResolutionTimeMS int64
	OccurredAt       time.Time
}

// HistoricalContext summarizes past incidents similar to the one being
// enriched.
type HistoricalContext struct {
	SimilarIncidents    []SimilarIncident
	AvgResolutionTimeMS int64
	RecurrenceRate      float64
	LastOccurrence      *time.Time
}

// ServiceStatus is the health state of a service in the catalog.
type ServiceStatus string

const (
	ServiceHealthy  ServiceStatus = "healthy"
	ServiceDegraded ServiceStatus = "degraded"
	ServiceDown     ServiceStatus = "down"
)

// ServiceDependency names one upstream/downstream dependency of a service.
type ServiceDependency struct {
	ServiceName string
	Status      ServiceStatus
}

// ServiceContext is service-catalog context for the incident's owning
// service.
type ServiceContext struct {
	ServiceName  string
	Owner        string
	Tier         string
	Status       ServiceStatus
	Dependencies []ServiceDependency
	HealthScore  float64
}

// OnCallEngineer is one entry in a team's current on-call roster.
type OnCallEngineer struct {
	Name  string
	Email string
	Role  string
}

// TeamContext is ownership and on-call context for the incident.
type TeamContext struct {
	PrimaryTeam        string
	OnCall             []OnCallEngineer
	SlackChannel       string
	EscalationPolicyID string
}

// MetricSample is one named metric value captured at enrichment time.
type MetricSample struct {
	Name  string
	Value float64
	Unit  string
}

// MetricsContext carries recent metric samples relevant to the incident.
type MetricsContext struct {
	Samples []MetricSample
}

// LogsContext carries recent log lines relevant to the incident.
type LogsContext struct {
	Lines []string
}

// EnrichedContext accumulates every enricher's partial contribution for one
// incident.
type EnrichedContext struct {
	IncidentID          IncidentID
	Historical          *HistoricalContext
	Service              *ServiceContext
	Team                *TeamContext
	Metrics              *MetricsContext
	Logs                 *LogsContext
	Metadata              map[string]string
	SuccessfulEnrichers   []string
	FailedEnrichers       []string
	EnrichmentDurationMS  int64
}

// Clone returns a deep copy, used by the per-incident enrichment cache so
// cached entries are never mutated in place.
func (c *EnrichedContext) Clone() *EnrichedContext {
	if c == nil {
		return nil
	}
	out := *c
	if c.Historical != nil {
		h := *c.Historical
		h.SimilarIncidents = append([]SimilarIncident(nil), c.Historical.SimilarIncidents...)
		out.Historical = &h
	}
	if c.Service != nil {
		s := *c.Service
		s.Dependencies = append([]ServiceDependency(nil), c.Service.Dependencies...)
		out.Service = &s
	}
	if c.Team != nil {
		t := *c.Team
		t.OnCall = append([]OnCallEngineer(nil), c.Team.OnCall...)
		out.Team = &t
	}
	if c.Metrics != nil {
		m := *c.Metrics
		m.Samples = append([]MetricSample(nil), c.Metrics.Samples...)
		out.Metrics = &m
	}
	if c.Logs != nil {
		l := *c.Logs
		l.Lines = append([]string(nil), c.Logs.Lines...)
		out.Logs = &l
	}
	out.Metadata = cloneStringMap(c.Metadata)
	out.SuccessfulEnrichers = append([]string(nil), c.SuccessfulEnrichers...)
	out.FailedEnrichers = append([]string(nil), c.FailedEnrichers...)
	return &out
}
