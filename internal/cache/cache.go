package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Fallbacks applied by New when an Options field is left zero.
const (
	DefaultCapacity        = 1000
	DefaultTTL             = 10 * time.Minute
	DefaultCleanupInterval = time.Minute
)

// Options controls construction of a Cache.
type Options struct {
	// Name identifies the instance in logs and stats output.
	Name string

	// Capacity is the maximum entry count. Inserting beyond it evicts the
	// least recently used entries until there is room.
	Capacity int

	// DefaultTTL applies to Set calls that pass ttl <= 0.
	DefaultTTL time.Duration

	// CleanupInterval is the reaper period. Negative disables the background
	// reaper entirely (expiration then happens lazily on access only).
	CleanupInterval time.Duration
}

// Cache is a single named cache instance: bounded size with strict LRU
// eviction, per-entry TTL, and monotonic usage counters. All methods are safe
// for concurrent use.
//
// Ownership model: Cache owns its reaper goroutine. Call Close to stop it.
type Cache struct {
	name       string
	capacity   int
	defaultTTL time.Duration

	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List // Front = most recently used, Back = eviction candidate
	expiry map[string]time.Time

	hits        int64
	misses      int64
	sets        int64
	deletes     int64
	evictions   int64
	expirations int64

	createdAt   time.Time
	lastCleanup time.Time

	cleanupEvery time.Duration
	stop         chan struct{}
	wg           sync.WaitGroup
	closed       bool
}

// entry is the value stored in the LRU list elements. The key lives here too
// because eviction starts from list nodes. Expiry deadlines live in the
// sibling index, not on the entry.
type entry struct {
	key   string
	value any
}

// now is a small indirection to allow test stubbing if needed.
var now = time.Now

// New constructs a cache and starts its background reaper (unless disabled).
// New never returns a nil Cache.
func New(opts Options) *Cache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}

	ts := now()
	c := &Cache{
		name:         opts.Name,
		capacity:     opts.Capacity,
		defaultTTL:   opts.DefaultTTL,
		items:        make(map[string]*list.Element),
		order:        list.New(),
		expiry:       make(map[string]time.Time),
		createdAt:    ts,
		lastCleanup:  ts,
		cleanupEvery: opts.CleanupInterval,
		stop:         make(chan struct{}),
	}

	if c.cleanupEvery > 0 {
		c.wg.Add(1)
		go c.cleanupLoop()
	}

	return c
}

// Set stores value under key. Any existing entry for key is replaced and the
// key counts as freshly inserted, so its recency position resets. Entries are
// evicted from the LRU end while the cache is at capacity. The absolute
// expiry is now + ttl, or now + the instance default when ttl <= 0.
//
// Set reports whether the value was stored; it returns false only on a
// closed cache, in which case nothing was mutated.
func (c *Cache) Set(key string, value any, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	if el, ok := c.items[key]; ok {
		c.removeElementLocked(el)
	}

	for len(c.items) >= c.capacity {
		c.evictOldestLocked()
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	el := c.order.PushFront(&entry{key: key, value: value})
	c.items[key] = el
	c.expiry[key] = now().Add(ttl)
	c.sets++
	return true
}

// Get returns the live value stored under key. A hit moves the entry to the
// most-recently-used position and increments hits; a miss increments misses.
// An expired entry is removed on access and counts as both an expiration and
// a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.expiredLocked(key) {
		c.removeElementLocked(el)
		c.expirations++
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return el.Value.(*entry).value, true
}

// Exists reports whether key holds a live value. Unlike Get it neither
// touches recency order nor counts toward hits/misses, but it does remove an
// entry it finds expired.
func (c *Cache) Exists(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if c.expiredLocked(key) {
		c.removeElementLocked(el)
		c.expirations++
		return false
	}
	return true
}

// Delete removes key if present and reports whether anything was removed.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElementLocked(el)
	c.deletes++
	return true
}

// DeleteMatching removes every entry whose key matches pattern and reports
// how many were removed, counting each toward deletes. "*" and "all" match
// everything, a trailing "*" matches by prefix, and any other pattern
// matches keys containing it.
func (c *Cache) DeleteMatching(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if matchKey(el.Value.(*entry).key, pattern) {
			c.removeElementLocked(el)
			c.deletes++
			removed++
		}
		el = next
	}
	return removed
}

func matchKey(key, pattern string) bool {
	switch {
	case pattern == "*" || pattern == "all":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	default:
		return strings.Contains(key, pattern)
	}
}

// Clear removes every entry and expiry record. Counters are not touched:
// clearing data is distinct from resetting statistics (see ResetStats).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.expiry = make(map[string]time.Time)
	c.order.Init()
	log.Info("cache cleared", "cache", c.name)
}

// Len returns the number of resident entries, including any that have
// expired but not yet been swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns keys in most-to-least recently used order. Debug helper.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).key)
	}
	return out
}

// Name returns the instance name.
func (c *Cache) Name() string { return c.name }

// Capacity returns the maximum entry count.
func (c *Cache) Capacity() int { return c.capacity }

// Close stops the reaper goroutine and marks the instance closed. Set on a
// closed cache returns false; reads keep working against whatever is
// resident. Close is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()
}

// expiredLocked reports whether key's deadline has passed. Deadlines are
// exclusive: a key expires strictly after its recorded instant.
func (c *Cache) expiredLocked(key string) bool {
	exp, ok := c.expiry[key]
	return ok && now().After(exp)
}

// removeElementLocked drops an entry from the order list, the item index,
// and the expiry index together. No counters are touched here; callers
// account for the removal reason.
func (c *Cache) removeElementLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	delete(c.expiry, e.key)
	c.order.Remove(el)
}

func (c *Cache) evictOldestLocked() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeElementLocked(el)
	c.evictions++
}
