package enrichment

import (
	"sync"
	"time"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
)

// cacheEntry holds a cached context with the clock instant it was produced.
type cacheEntry struct {
	context  *model.EnrichedContext
	cachedAt time.Time
}

// cache is a thread-safe per-incident TTL cache. Expired entries are
// cleaned up lazily on Get, modeled on the teacher's runbook.Cache:
// entries are replaced wholesale, never mutated in place.
type cache struct {
	mu      sync.RWMutex
	entries map[model.IncidentID]cacheEntry
	ttl     time.Duration
	clock   clock.Clock
}

func newCache(ttl time.Duration, c clock.Clock) *cache {
	return &cache{entries: make(map[model.IncidentID]cacheEntry), ttl: ttl, clock: c}
}

func (c *cache) get(id model.IncidentID) (*model.EnrichedContext, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(entry.cachedAt) > c.ttl {
		c.mu.Lock()
		if current, ok := c.entries[id]; ok && c.clock.Now().Sub(current.cachedAt) > c.ttl {
			delete(c.entries, id)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.context.Clone(), true
}

func (c *cache) set(id model.IncidentID, ctx *model.EnrichedContext) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[id] = cacheEntry{context: ctx.Clone(), cachedAt: c.clock.Now()}
	c.mu.Unlock()
}

// Clear empties the cache.
func (c *cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[model.IncidentID]cacheEntry)
	c.mu.Unlock()
}
