// Package poolcache provides the volatility-adaptive pool snapshot
// cache fronting chain reads. Entries carry a per-pool TTL that
// shrinks as measured price volatility grows, bounding staleness for
// fast-moving pools without re-fetching stable ones.
package poolcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// Config bounds cache size and TTL behavior.
type Config struct {
	// Capacity caps entry count; inserting beyond it evicts the LRU entry.
	Capacity int
	// BaseTTL is the TTL at zero volatility.
	BaseTTL time.Duration
	// MinTTL floors the adaptive TTL.
	MinTTL time.Duration
	// MaxTTL ceils the adaptive TTL.
	MaxTTL time.Duration
	// VolatilityFactor scales how strongly volatility shortens the TTL.
	VolatilityFactor float64
}

// DefaultConfig returns production cache bounds.
func DefaultConfig() Config {
	return Config{
		Capacity:         512,
		BaseTTL:          10 * time.Second,
		MinTTL:           500 * time.Millisecond,
		MaxTTL:           30 * time.Second,
		VolatilityFactor: 20,
	}
}

// Stats is a point-in-time cache counter snapshot.
type Stats struct {
	Hits        uint64 // Get calls served from a fresh entry
	Misses      uint64 // Get calls with no entry
	Expirations uint64 // entries dropped lazily on Get after TTL elapsed
	Evictions   uint64 // LRU entries dropped to make room
	Size        int    // current entry count
	Capacity    int    // configured cap
}

// entry is one cached snapshot with its adaptive TTL.
type entry struct {
	poolID     string
	pool       *domain.Pool
	ttl        time.Duration
	volatility float64
	storedAt   time.Time
}

// Cache is a mutex-guarded LRU with per-entry adaptive TTL. Safe for
// concurrent use by multiple in-flight requests.
type Cache struct {
	mu      sync.Mutex
	config  Config
	items   map[string]*list.Element
	lru     *list.List // front = most recently used
	stats   Stats
	nowFunc func() time.Time
}

// New creates a cache with the given bounds.
func New(config Config) *Cache {
	if config.Capacity <= 0 {
		config.Capacity = DefaultConfig().Capacity
	}
	return &Cache{
		config:  config,
		items:   make(map[string]*list.Element, config.Capacity),
		lru:     list.New(),
		nowFunc: time.Now,
	}
}

// TTLFor computes the adaptive TTL for a volatility estimate:
// clamp(baseTTL / (1 + k*volatility), minTTL, maxTTL). Monotonically
// non-increasing in volatility.
func (c *Cache) TTLFor(volatility float64) time.Duration {
	if volatility < 0 {
		volatility = 0
	}
	ttl := time.Duration(float64(c.config.BaseTTL) / (1 + c.config.VolatilityFactor*volatility))
	if ttl < c.config.MinTTL {
		ttl = c.config.MinTTL
	}
	if ttl > c.config.MaxTTL {
		ttl = c.config.MaxTTL
	}
	return ttl
}

// Get returns a fresh snapshot for the pool id, or (nil, false) on
// miss. TTL expiry is checked lazily here; there is no background
// sweep. A hit marks the entry most recently used.
func (c *Cache) Get(poolID string) (*domain.Pool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[poolID]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	e := elem.Value.(*entry)
	if c.nowFunc().Sub(e.storedAt) > e.ttl {
		c.removeLocked(elem)
		c.stats.Expirations++
		c.stats.Misses++
		return nil, false
	}

	c.lru.MoveToFront(elem)
	c.stats.Hits++
	return e.pool.Clone(), true
}

// Set stores a snapshot with a TTL derived from the volatility
// estimate, evicting the least-recently-used entry when at capacity.
func (c *Cache) Set(poolID string, pool *domain.Pool, volatility float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{
		poolID:     poolID,
		pool:       pool.Clone(),
		ttl:        c.TTLFor(volatility),
		volatility: volatility,
		storedAt:   c.nowFunc(),
	}

	if elem, ok := c.items[poolID]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}

	if c.lru.Len() >= c.config.Capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.removeLocked(oldest)
			c.stats.Evictions++
		}
	}

	c.items[poolID] = c.lru.PushFront(e)
}

// Invalidate drops the entry for a pool id, if present. Used when a
// push feed reports the underlying account changed.
func (c *Cache) Invalidate(poolID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[poolID]
	if !ok {
		return false
	}
	c.removeLocked(elem)
	return true
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.lru.Len()
	s.Capacity = c.config.Capacity
	return s
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.items, e.poolID)
	c.lru.Remove(elem)
}
