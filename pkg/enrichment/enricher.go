// Package enrichment implements the Enrichment Pipeline: a registry of
// priority-ordered enrichers fanned out (sequentially or with bounded
// parallelism) against an incident, merged into one EnrichedContext and
// cached per-incident with a TTL.
package enrichment

import (
	"context"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// Enricher augments an incident with one slice of external context. The
// set is open: deployments register their own alongside the built-ins.
type Enricher interface {
	Name() string
	// Enrich populates its slice of ctx. A non-nil error marks the
	// enricher failed for this run; the pipeline still merges whatever
	// partial EnrichedContext fields an implementation chooses to leave
	// set before returning.
	Enrich(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error
	// Enabled reports whether this enricher should run given cfg.
	Enabled(cfg Config) bool
	// Priority orders execution in sequential mode; lower runs first.
	Priority() int
}

// funcEnricher adapts a plain function into an Enricher, for simple
// built-ins that don't need their own type.
type funcEnricher struct {
	name     string
	priority int
	enabled  func(Config) bool
	run      func(context.Context, *model.Incident, *model.EnrichedContext) error
}

func (f *funcEnricher) Name() string         { return f.name }
func (f *funcEnricher) Priority() int        { return f.priority }
func (f *funcEnricher) Enabled(cfg Config) bool {
	if f.enabled == nil {
		return true
	}
	return f.enabled(cfg)
}
func (f *funcEnricher) Enrich(ctx context.Context, incident *model.Incident, out *model.EnrichedContext) error {
	return f.run(ctx, incident, out)
}
