package enrichment

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
)

// Config mirrors spec §6.4's enrichment.* keys.
type Config struct {
	TimeoutSecs      int  // enrichment.timeout_secs
	CacheTTLSecs     int  // enrichment.cache_ttl_secs
	AsyncEnrichment  bool // enrichment.async_enrichment
	MaxConcurrent    int  // enrichment.max_concurrent

	EnableHistorical bool
	EnableService    bool
	EnableTeam       bool
	EnableMetrics    bool
	EnableLogs       bool
}

// DefaultConfig returns the pipeline's out-of-the-box tunables.
func DefaultConfig() Config {
	return Config{
		TimeoutSecs:      5,
		CacheTTLSecs:      300,
		AsyncEnrichment:  true,
		MaxConcurrent:    4,
		EnableHistorical: true,
		EnableService:    true,
		EnableTeam:       true,
		EnableMetrics:    true,
		EnableLogs:       true,
	}
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Pipeline registers enrichers and fans them out against incidents,
// merging results into a per-incident cached EnrichedContext.
type Pipeline struct {
	cfg   Config
	clock clock.Clock
	cache *cache

	mu        sync.RWMutex
	enrichers []Enricher
}

// New creates an Enrichment Pipeline.
func New(cfg Config, c clock.Clock) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		clock: c,
		cache: newCache(time.Duration(cfg.CacheTTLSecs)*time.Second, c),
	}
}

// Register adds an enricher. Order among same-priority enrichers is
// registration order (stable sort).
func (p *Pipeline) Register(e Enricher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrichers = append(p.enrichers, e)
}

// Enrich runs every enabled enricher against incident, merging their
// partial contributions, and caches the result keyed by incident id.
// A cache hit short-circuits the whole fan-out. No single enricher's
// failure fails the pipeline.
func (p *Pipeline) Enrich(ctx context.Context, incident *model.Incident) *model.EnrichedContext {
	if cached, ok := p.cache.get(incident.ID); ok {
		return cached
	}

	start := p.clock.Now()
	out := &model.EnrichedContext{IncidentID: incident.ID, Metadata: map[string]string{}}

	p.mu.RLock()
	enabled := make([]Enricher, 0, len(p.enrichers))
	for _, e := range p.enrichers {
		if e.Enabled(p.cfg) {
			enabled = append(enabled, e)
		}
	}
	p.mu.RUnlock()

	if len(enabled) == 0 {
		slog.Warn("enrichment: no enrichers enabled", "incident_id", incident.ID)
		p.cache.set(incident.ID, out)
		return out
	}

	sort.SliceStable(enabled, func(i, j int) bool { return enabled[i].Priority() < enabled[j].Priority() })

	if p.cfg.AsyncEnrichment && p.cfg.MaxConcurrent > 1 {
		p.runParallel(ctx, incident, out, enabled)
	} else {
		p.runSequential(ctx, incident, out, enabled)
	}

	out.EnrichmentDurationMS = p.clock.Now().Sub(start).Milliseconds()
	p.cache.set(incident.ID, out)
	return out
}

func (p *Pipeline) runSequential(ctx context.Context, incident *model.Incident, out *model.EnrichedContext, enrichers []Enricher) {
	for _, e := range enrichers {
		runOne(ctx, e, incident, out, p.cfg.timeout())
	}
}

// runOne runs one enricher under a timeout. The enricher writes into its
// own scratch context, which is merged into out once it returns (also when
// it returns an error), so an enricher still running after its timeout
// never writes into out.
func runOne(ctx context.Context, e Enricher, incident *model.Incident, out *model.EnrichedContext, timeout time.Duration) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scratch := &model.EnrichedContext{IncidentID: incident.ID, Metadata: map[string]string{}}
	done := make(chan error, 1)
	go func() { done <- e.Enrich(attemptCtx, incident, scratch) }()

	select {
	case err := <-done:
		mergeInto(out, scratch)
		if err != nil {
			out.FailedEnrichers = append(out.FailedEnrichers, e.Name())
			slog.Warn("enrichment: enricher failed", "enricher", e.Name(), "incident_id", incident.ID, "error", err)
			return
		}
		out.SuccessfulEnrichers = append(out.SuccessfulEnrichers, e.Name())
	case <-attemptCtx.Done():
		out.FailedEnrichers = append(out.FailedEnrichers, e.Name())
		slog.Error("enrichment: enricher timed out", "enricher", e.Name(), "incident_id", incident.ID)
	}
}

// runParallel runs each enricher against its own scratch EnrichedContext
// (bounded by MaxConcurrent), then merges each one's fields into out by
// field (including what a failed enricher left set), metadata
// last-write-wins per the teacher's worker-pool idiom of bounding fan-out
// with a semaphore.
func (p *Pipeline) runParallel(ctx context.Context, incident *model.Incident, out *model.EnrichedContext, enrichers []Enricher) {
	type partial struct {
		name string
		ctx  *model.EnrichedContext
		ok   bool
	}

	sem := make(chan struct{}, p.cfg.MaxConcurrent)
	results := make([]partial, len(enrichers))
	var wg sync.WaitGroup

	for i, e := range enrichers {
		i, e := i, e
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			scratch := &model.EnrichedContext{IncidentID: incident.ID}
			runOne(ctx, e, incident, scratch, p.cfg.timeout())
			results[i] = partial{name: e.Name(), ctx: scratch, ok: len(scratch.SuccessfulEnrichers) > 0}
		}()
	}
	wg.Wait()

	for _, r := range results {
		mergeInto(out, r.ctx)
		if !r.ok {
			out.FailedEnrichers = append(out.FailedEnrichers, r.name)
			continue
		}
		out.SuccessfulEnrichers = append(out.SuccessfulEnrichers, r.name)
	}
}

// mergeInto folds src's populated fields into dst; metadata merges
// last-write-wins per key.
func mergeInto(dst, src *model.EnrichedContext) {
	if src.Historical != nil {
		dst.Historical = src.Historical
	}
	if src.Service != nil {
		dst.Service = src.Service
	}
	if src.Team != nil {
		dst.Team = src.Team
	}
	if src.Metrics != nil {
		dst.Metrics = src.Metrics
	}
	if src.Logs != nil {
		dst.Logs = src.Logs
	}
	for k, v := range src.Metadata {
		if dst.Metadata == nil {
			dst.Metadata = make(map[string]string)
		}
		dst.Metadata[k] = v
	}
}

// ClearCache empties the enrichment cache.
func (p *Pipeline) ClearCache() { p.cache.Clear() }
