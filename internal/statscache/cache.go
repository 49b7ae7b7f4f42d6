// Package statscache holds the in-memory source of truth for entity stats and
// the single aggregate snapshot.
package statscache

import (
	"maps"
	"sync"
	"time"

	"github.com/expl-one/livestats/internal/model"
	"github.com/expl-one/livestats/internal/timestamp"
)

// Cache maps entity keys to their last known RepoStats and holds the aggregate
// slot. All methods are safe for concurrent use and never block on I/O.
type Cache struct {
	mu        sync.RWMutex
	entities  map[string]model.RepoStats
	aggregate model.AggregateStats
	hasAgg    bool
	lastPull  time.Time
	ttl       time.Duration
}

// New creates an empty cache. A non-positive ttl uses model.DefaultCacheTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = model.DefaultCacheTTL
	}
	return &Cache{
		entities: make(map[string]model.RepoStats),
		ttl:      ttl,
	}
}

// Entity returns the last known stats for key; ok is false when the key was never populated.
func (c *Cache) Entity(key string) (model.RepoStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rs, ok := c.entities[key]
	return rs, ok
}

// Entities returns a copy of the entity map.
func (c *Cache) Entities() map[string]model.RepoStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.entities)
}

// Len returns the number of cached entities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

// ReplaceAll overwrites the whole entity map.
func (c *Cache) ReplaceAll(entities map[string]model.RepoStats) {
	c.mu.Lock()
	c.replaceLocked(entities)
	c.mu.Unlock()
}

// UpsertAll writes every key present in delta and leaves the others untouched.
// Each entry replaces the previous one for its key; fields are never merged.
func (c *Cache) UpsertAll(delta map[string]model.RepoStats) {
	if len(delta) == 0 {
		return
	}
	c.mu.Lock()
	c.upsertLocked(delta)
	c.mu.Unlock()
}

// Aggregate returns the aggregate snapshot; ok is false until one has been set.
func (c *Cache) Aggregate() (model.AggregateStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.aggregate, c.hasAgg
}

// SetAggregate replaces the aggregate slot as a whole.
func (c *Cache) SetAggregate(a model.AggregateStats) {
	c.mu.Lock()
	c.setAggregateLocked(a)
	c.mu.Unlock()
}

// ApplyAggregate resolves a wire patch against the current aggregate and stores
// the result as a whole value. Absent fields keep their previous value. The
// stored aggregate is returned.
func (c *Cache) ApplyAggregate(p *model.AggregatePatch) model.AggregateStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyAggregateLocked(p)
}

// Apply writes one update: a full update replaces the entity map, a delta is
// upserted, and the aggregate patch (if any) is resolved. Everything happens
// under one lock so readers never observe half an update.
func (c *Cache) Apply(u model.StatsUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u.Full {
		c.replaceLocked(u.RepoStats)
	} else {
		c.upsertLocked(u.RepoStats)
	}
	c.applyAggregateLocked(u.Stats)
}

func (c *Cache) replaceLocked(entities map[string]model.RepoStats) {
	next := make(map[string]model.RepoStats, len(entities))
	maps.Copy(next, entities)
	c.entities = next
}

func (c *Cache) upsertLocked(delta map[string]model.RepoStats) {
	maps.Copy(c.entities, delta)
}

func (c *Cache) setAggregateLocked(a model.AggregateStats) {
	c.aggregate = a
	c.hasAgg = true
}

func (c *Cache) applyAggregateLocked(p *model.AggregatePatch) model.AggregateStats {
	if p.Empty() {
		return c.aggregate
	}
	c.setAggregateLocked(p.Apply(c.aggregate, timestamp.Format))
	return c.aggregate
}

// MarkPulled records the time of a successful full pull.
func (c *Cache) MarkPulled(t time.Time) {
	c.mu.Lock()
	c.lastPull = t
	c.mu.Unlock()
}

// Fresh reports whether a pull made at now can be served from the cache: the
// cache holds entities and the last pull is younger than the TTL.
func (c *Cache) Fresh(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entities) == 0 || c.lastPull.IsZero() {
		return false
	}
	return now.Sub(c.lastPull) < c.ttl
}

// TTL returns the staleness window.
func (c *Cache) TTL() time.Duration { return c.ttl }
