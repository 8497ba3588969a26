package prediction

import (
	"sort"
	"sync/atomic"
	"time"
)

// Key identifies one snapshot.
type Key struct {
	Gameweek int
	Variant  string
}

// Snapshot holds definitive answers for one gameweek and model variant. A
// published Snapshot is never modified; adding answers produces a new one.
type Snapshot struct {
	key       Key
	points    map[int]float64
	missing   map[int]struct{}
	version   uint64
	createdAt time.Time
}

// Key returns the snapshot key.
func (s *Snapshot) Key() Key { return s.key }

// Version increases each time answers are merged into the key.
func (s *Snapshot) Version() uint64 { return s.version }

// CreatedAt is when the first version for the key was published.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Len returns the number of answers, found or not.
func (s *Snapshot) Len() int { return len(s.points) + len(s.missing) }

// Resolve reports the cached answer for id. known is false when the snapshot
// has no answer yet; found is false when the source said the player does not exist.
func (s *Snapshot) Resolve(id int) (points float64, found, known bool) {
	if s == nil {
		return 0, false, false
	}
	if p, ok := s.points[id]; ok {
		return p, true, true
	}
	if _, ok := s.missing[id]; ok {
		return 0, false, true
	}
	return 0, false, false
}

func (s *Snapshot) merge(points map[int]float64, missing []int, now time.Time) *Snapshot {
	next := &Snapshot{
		key:       s.key,
		points:    make(map[int]float64, len(s.points)+len(points)),
		missing:   make(map[int]struct{}, len(s.missing)+len(missing)),
		version:   s.version + 1,
		createdAt: s.createdAt,
	}
	if next.createdAt.IsZero() {
		next.createdAt = now
	}
	for id, p := range s.points {
		next.points[id] = p
	}
	for id := range s.missing {
		next.missing[id] = struct{}{}
	}
	for id, p := range points {
		next.points[id] = p
		delete(next.missing, id)
	}
	for _, id := range missing {
		if _, ok := next.points[id]; !ok {
			next.missing[id] = struct{}{}
		}
	}
	return next
}

type registry map[Key]*Snapshot

// Cache publishes snapshots copy-on-write. Readers never take a lock and
// never observe a half-built table.
type Cache struct {
	current atomic.Pointer[registry]
	now     func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache creates an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	empty := registry{}
	c.current.Store(&empty)
	return c
}

// Get returns the current snapshot for key, or nil.
func (c *Cache) Get(key Key) *Snapshot {
	return (*c.current.Load())[key]
}

// Publish merges answers into the snapshot for key and returns the new version.
func (c *Cache) Publish(key Key, points map[int]float64, missing []int) *Snapshot {
	for {
		old := c.current.Load()
		base := (*old)[key]
		if base == nil {
			base = &Snapshot{key: key}
		}
		snap := base.merge(points, missing, c.now())

		next := make(registry, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[key] = snap
		if c.current.CompareAndSwap(old, &next) {
			return snap
		}
	}
}

// Invalidate drops the snapshot for key.
func (c *Cache) Invalidate(key Key) bool {
	for {
		old := c.current.Load()
		if _, ok := (*old)[key]; !ok {
			return false
		}
		next := make(registry, len(*old))
		for k, v := range *old {
			if k != key {
				next[k] = v
			}
		}
		if c.current.CompareAndSwap(old, &next) {
			return true
		}
	}
}

// EvictOlderThan drops snapshots first published more than age ago and
// returns how many were removed.
func (c *Cache) EvictOlderThan(age time.Duration) int {
	for {
		old := c.current.Load()
		cutoff := c.now().Add(-age)
		next := make(registry, len(*old))
		removed := 0
		for k, v := range *old {
			if v.createdAt.Before(cutoff) {
				removed++
				continue
			}
			next[k] = v
		}
		if removed == 0 {
			return 0
		}
		if c.current.CompareAndSwap(old, &next) {
			return removed
		}
	}
}

// Len returns the number of published snapshots.
func (c *Cache) Len() int {
	return len(*c.current.Load())
}

// Keys returns the published keys ordered by gameweek then variant.
func (c *Cache) Keys() []Key {
	reg := *c.current.Load()
	keys := make([]Key, 0, len(reg))
	for k := range reg {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Gameweek != keys[j].Gameweek {
			return keys[i].Gameweek < keys[j].Gameweek
		}
		return keys[i].Variant < keys[j].Variant
	})
	return keys
}
