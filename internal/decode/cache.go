package decode

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/banshee-data/logcode.report/internal/icd"
	"github.com/banshee-data/logcode.report/internal/monitoring"
)

// SchemaSource builds logcode schemas. Implementations may be expensive
// (database reads, document scans); the cache makes sure each logcode is
// built at most once at a time.
type SchemaSource interface {
	SchemaForLogcode(logcodeID uint16) (*icd.LogcodeSchema, error)
}

// DefaultCacheCapacity bounds each of the two internal LRU maps (schemas and
// expanded layouts) when no explicit capacity is configured.
const DefaultCacheCapacity = 64

// DefaultFailureTTL is how long a failed schema build is remembered before a
// retry is allowed through. Long enough to absorb a miss storm against a
// broken table source, short enough that a fix takes effect without a
// process restart.
const DefaultFailureTTL = 5 * time.Second

// EvictFunc is called after an entry is evicted from the cache, outside the
// cache lock.
type EvictFunc func(key string)

// Cache holds built logcode schemas and expanded layouts behind a bounded
// LRU, and coalesces concurrent builds of the same key into a single flight
// so a thundering herd of decode calls triggers one schema build, not many.
//
// Cached values are immutable; only the recency bookkeeping mutates, and all
// of it is serialized behind one mutex. Failed builds are memoized for
// failureTTL and never longer, so a repaired table source recovers on the
// next miss.
type Cache struct {
	source   SchemaSource
	expander *Expander

	mu       sync.Mutex
	capacity int
	schemas  *lruMap
	layouts  *lruMap
	failures map[string]buildFailure
	onEvict  EvictFunc

	flight     singleflight.Group
	failureTTL time.Duration
	now        func() time.Time
}

type buildFailure struct {
	err error
	at  time.Time
}

// NewCache builds a cache over the given schema source and expander.
// capacity <= 0 selects DefaultCacheCapacity.
func NewCache(source SchemaSource, expander *Expander, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		source:     source,
		expander:   expander,
		capacity:   capacity,
		schemas:    newLRUMap(capacity),
		layouts:    newLRUMap(capacity),
		failures:   make(map[string]buildFailure),
		failureTTL: DefaultFailureTTL,
		now:        time.Now,
	}
}

// SetEvictFunc installs a callback invoked with the key of every evicted
// entry. Must be set before the cache is shared.
func (c *Cache) SetEvictFunc(f EvictFunc) { c.onEvict = f }

// SetFailureTTL overrides the negative-result lifetime.
func (c *Cache) SetFailureTTL(d time.Duration) { c.failureTTL = d }

// Schema returns the built schema for a logcode, building it through the
// source on a miss. Concurrent misses for the same logcode share one build;
// every waiter gets the same result or the same error.
func (c *Cache) Schema(logcodeID uint16) (*icd.LogcodeSchema, error) {
	key := "schema/" + icd.FormatLogcodeID(logcodeID)

	c.mu.Lock()
	if v, ok := c.schemas.get(key); ok {
		c.mu.Unlock()
		return v.(*icd.LogcodeSchema), nil
	}
	if f, ok := c.failures[key]; ok {
		if c.now().Sub(f.at) < c.failureTTL {
			c.mu.Unlock()
			return nil, f.err
		}
		delete(c.failures, key)
	}
	c.mu.Unlock()

	v, err, shared := c.flight.Do(key, func() (any, error) {
		schema, err := c.source.SchemaForLogcode(logcodeID)
		if err != nil {
			c.rememberFailure(key, err)
			return nil, err
		}
		if err := schema.Validate(); err != nil {
			c.rememberFailure(key, err)
			return nil, err
		}
		c.store(c.schemas, key, schema)
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		monitoring.Logf("schema build for %s coalesced with concurrent callers", icd.FormatLogcodeID(logcodeID))
	}
	return v.(*icd.LogcodeSchema), nil
}

// Layout returns the expanded layout for (logcode, table), expanding on a
// miss. baseBytes is part of the layout's identity only insofar as it is
// fixed per logcode (the version field size), so the key omits it.
func (c *Cache) Layout(schema *icd.LogcodeSchema, tableNumber string, baseBytes int) (*ExpandedLayout, error) {
	key := fmt.Sprintf("layout/%s/%s", icd.FormatLogcodeID(schema.LogcodeID), tableNumber)

	c.mu.Lock()
	if v, ok := c.layouts.get(key); ok {
		c.mu.Unlock()
		return v.(*ExpandedLayout), nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(key, func() (any, error) {
		layout, err := c.expander.Expand(tableNumber, schema, baseBytes)
		if err != nil {
			// Expansion failures are not memoized: they are cheap to
			// reproduce and usually mean a missing table that the provider
			// may supply on the next call.
			return nil, err
		}
		c.store(c.layouts, key, layout)
		return layout, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ExpandedLayout), nil
}

// Len reports the number of cached schemas and layouts.
func (c *Cache) Len() (schemas, layouts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schemas.len(), c.layouts.len()
}

func (c *Cache) rememberFailure(key string, err error) {
	c.mu.Lock()
	c.failures[key] = buildFailure{err: err, at: c.now()}
	c.mu.Unlock()
}

func (c *Cache) store(m *lruMap, key string, value any) {
	c.mu.Lock()
	evicted := m.put(key, value)
	c.mu.Unlock()
	if evicted != "" && c.onEvict != nil {
		c.onEvict(evicted)
	}
}

// lruMap is a small intrusive LRU: map for lookup, list for recency. Not
// goroutine safe; the cache serializes access.
type lruMap struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recent
}

type lruEntry struct {
	key   string
	value any
}

func newLRUMap(capacity int) *lruMap {
	return &lruMap{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (m *lruMap) get(key string) (any, bool) {
	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

// put inserts or refreshes key and returns the key of the entry it evicted,
// if any.
func (m *lruMap) put(key string, value any) (evicted string) {
	if el, ok := m.entries[key]; ok {
		el.Value.(*lruEntry).value = value
		m.order.MoveToFront(el)
		return ""
	}
	if m.order.Len() >= m.capacity {
		oldest := m.order.Back()
		if oldest != nil {
			entry := oldest.Value.(*lruEntry)
			m.order.Remove(oldest)
			delete(m.entries, entry.key)
			evicted = entry.key
		}
	}
	m.entries[key] = m.order.PushFront(&lruEntry{key: key, value: value})
	return evicted
}

func (m *lruMap) len() int { return m.order.Len() }
