package enrichment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/store"
)

// HistoricalCandidates supplies past incidents for the historical
// enricher's similarity search. Satisfied by store.Store.
type HistoricalCandidates interface {
	ListIncidents(ctx context.Context, filter store.IncidentFilter, page, pageSize int) ([]*model.Incident, error)
}

// NewHistoricalEnricher surfaces past incidents similar in title/description
// to the one being enriched, the way the retired incident store's
// historical enricher scored similarity before this rewrite.
func NewHistoricalEnricher(src HistoricalCandidates, similarityThreshold float64) Enricher {
	if similarityThreshold <= 0 {
		similarityThreshold = 0.5
	}
	return &funcEnricher{
		name:     "historical",
		priority: 10,
		enabled:  func(cfg Config) bool { return cfg.EnableHistorical },
		run: func(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error {
			candidates, err := src.ListIncidents(ctx, store.IncidentFilter{}, 0, 1000)
			if err != nil {
				return err
			}

			type scored struct {
				inc   *model.Incident
				score float64
			}
			var similar []scored
			for _, c := range candidates {
				if c.ID == incident.ID {
					continue
				}
				sim := historicalSimilarity(incident, c)
				if sim >= similarityThreshold {
					similar = append(similar, scored{inc: c, score: sim})
				}
			}
			sort.Slice(similar, func(i, j int) bool { return similar[i].score > similar[j].score })
			if len(similar) > 10 {
				similar = similar[:10]
			}

			hc := &model.HistoricalContext{}
			var totalResolutionMS, resolvedCount int64
			for _, s := range similar {
				entry := model.SimilarIncident{
					IncidentID:      s.inc.ID,
					SimilarityScore: s.score,
					Title:           s.inc.Title,
					OccurredAt:      s.inc.CreatedAt,
				}
				if s.inc.Resolution != nil {
					entry.Resolution = s.inc.Resolution.Notes
					entry.ResolutionTimeMS = s.inc.Resolution.ResolvedAt.Sub(s.inc.CreatedAt).Milliseconds()
					totalResolutionMS += entry.ResolutionTimeMS
					resolvedCount++
				}
				hc.SimilarIncidents = append(hc.SimilarIncidents, entry)
			}
			if resolvedCount > 0 {
				hc.AvgResolutionTimeMS = totalResolutionMS / resolvedCount
			}
			if len(hc.SimilarIncidents) > 0 {
				t := hc.SimilarIncidents[0].OccurredAt
				hc.LastOccurrence = &t
				hc.RecurrenceRate = float64(len(hc.SimilarIncidents)) / 10.0
			}
			out.Historical = hc
			return nil
		},
	}
}

// historicalSimilarity weighs title (0.4) and description (0.3) token
// overlap plus source agreement (+0.15) and type agreement (+0.15).
// Severity is not compared.
func historicalSimilarity(a, b *model.Incident) float64 {
	titleSim := jaccardSim(strings.Fields(strings.ToLower(a.Title)), strings.Fields(strings.ToLower(b.Title)))
	descSim := jaccardSim(strings.Fields(strings.ToLower(a.Description)), strings.Fields(strings.ToLower(b.Description)))
	score := titleSim*0.4 + descSim*0.3
	if a.Source == b.Source {
		score += 0.15
	}
	if a.IncidentType == b.IncidentType {
		score += 0.15
	}
	return score
}

func jaccardSim(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ServiceCatalog resolves an incident's owning service to catalog metadata.
// The real catalog lives outside the core (spec §1); this interface is
// what a deployment wires a CMDB/service-catalog client into.
type ServiceCatalog interface {
	Lookup(ctx context.Context, serviceName string) (model.ServiceContext, bool)
}

// NewServiceEnricher resolves the incident's source (or a "service:"-ish
// token in its title) against catalog.
func NewServiceEnricher(catalog ServiceCatalog) Enricher {
	return &funcEnricher{
		name:     "service",
		priority: 20,
		enabled:  func(cfg Config) bool { return cfg.EnableService },
		run: func(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error {
			name := extractServiceName(incident)
			if name == "" {
				return fmt.Errorf("service: could not determine service name for incident %s", incident.ID)
			}
			svc, ok := catalog.Lookup(ctx, name)
			if !ok {
				return fmt.Errorf("service: %q not found in catalog", name)
			}
			out.Service = &svc
			return nil
		},
	}
}

func extractServiceName(incident *model.Incident) string {
	if incident.Source != "" {
		return incident.Source
	}
	for _, word := range strings.Fields(strings.ToLower(incident.Title)) {
		if strings.Contains(word, "service") || strings.Contains(word, "api") || strings.Contains(word, "db") {
			return word
		}
	}
	return ""
}

// TeamDirectory resolves an incident type to its owning team and on-call
// roster. The real directory (PagerDuty/Opsgenie-equivalent) lives outside
// the core; this is the seam a deployment wires in.
type TeamDirectory interface {
	LookupByType(ctx context.Context, incidentType model.Type) (model.TeamContext, bool)
}

// NewTeamEnricher resolves incident.IncidentType against directory.
func NewTeamEnricher(directory TeamDirectory) Enricher {
	return &funcEnricher{
		name:     "team",
		priority: 30,
		enabled:  func(cfg Config) bool { return cfg.EnableTeam },
		run: func(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error {
			team, ok := directory.LookupByType(ctx, incident.IncidentType)
			if !ok {
				return fmt.Errorf("team: no owning team for incident type %q", incident.IncidentType)
			}
			out.Team = &team
			return nil
		},
	}
}

// MetricsSource supplies recent metric samples relevant to an incident's
// affected resources. The real time-series backend is out of scope (spec
// §1); this is the seam.
type MetricsSource interface {
	RecentSamples(ctx context.Context, incident *model.Incident) ([]model.MetricSample, error)
}

// NewMetricsEnricher pulls recent metric samples from source.
func NewMetricsEnricher(source MetricsSource) Enricher {
	return &funcEnricher{
		name:     "metrics",
		priority: 40,
		enabled:  func(cfg Config) bool { return cfg.EnableMetrics },
		run: func(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error {
			samples, err := source.RecentSamples(ctx, incident)
			if err != nil {
				return err
			}
			out.Metrics = &model.MetricsContext{Samples: samples}
			return nil
		},
	}
}

// LogsSource supplies recent log lines relevant to an incident. The real
// full-text search subsystem is out of scope (spec §1); this is the seam.
type LogsSource interface {
	RecentLines(ctx context.Context, incident *model.Incident, limit int) ([]string, error)
}

// NewLogsEnricher pulls up to limit recent log lines from source.
func NewLogsEnricher(source LogsSource, limit int) Enricher {
	if limit <= 0 {
		limit = 50
	}
	return &funcEnricher{
		name:     "logs",
		priority: 50,
		enabled:  func(cfg Config) bool { return cfg.EnableLogs },
		run: func(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error {
			lines, err := source.RecentLines(ctx, incident, limit)
			if err != nil {
				return err
			}
			out.Logs = &model.LogsContext{Lines: lines}
			return nil
		},
	}
}
