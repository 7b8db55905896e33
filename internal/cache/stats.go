package cache

import (
	"fmt"
	"math"
	"reflect"

	"github.com/charmbracelet/log"
)

// Bookkeeping constants for the memory estimate: per-entry overhead of the
// ordered map and of the expiry index.
const (
	entryOverhead  = 64
	expiryOverhead = 16
)

// Snapshot is a point-in-time view of one instance's counters and derived
// figures. Field names follow the stats endpoint's JSON contract.
type Snapshot struct {
	Hits               int64   `json:"hits"`
	Misses             int64   `json:"misses"`
	Sets               int64   `json:"sets"`
	Deletes            int64   `json:"deletes"`
	Evictions          int64   `json:"evictions"`
	Expirations        int64   `json:"expirations"`
	CurrentSize        int     `json:"current_size"`
	MaxSize            int     `json:"max_size"`
	HitRate            float64 `json:"hit_rate"`
	MemoryUsageMB      float64 `json:"memory_usage_mb"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	LastCleanupSeconds float64 `json:"last_cleanup_seconds"`
}

// Stats returns a consistent snapshot taken under the instance lock. Hit rate
// is a percentage over the counters' lifetime, 0 before the first request.
func (c *Cache) Stats() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = round2(float64(c.hits) / float64(total) * 100)
	}

	ts := now()
	return Snapshot{
		Hits:               c.hits,
		Misses:             c.misses,
		Sets:               c.sets,
		Deletes:            c.deletes,
		Evictions:          c.evictions,
		Expirations:        c.expirations,
		CurrentSize:        len(c.items),
		MaxSize:            c.capacity,
		HitRate:            hitRate,
		MemoryUsageMB:      round2(float64(c.memoryBytesLocked()) / (1024 * 1024)),
		UptimeSeconds:      round2(ts.Sub(c.createdAt).Seconds()),
		LastCleanupSeconds: round2(ts.Sub(c.lastCleanup).Seconds()),
	}
}

// ResetStats zeroes every counter. Data stays resident; this is the explicit
// counterpart to Clear keeping counters intact.
func (c *Cache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = 0
	c.misses = 0
	c.sets = 0
	c.deletes = 0
	c.evictions = 0
	c.expirations = 0
	log.Info("cache stats reset", "cache", c.name)
}

// memoryBytesLocked estimates the resident footprint: key bytes, a
// type-dependent value estimate, and fixed bookkeeping overhead per entry.
// The estimate is approximate on purpose; a fault while sizing values is
// logged and reported as 0.
func (c *Cache) memoryBytesLocked() (total int) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("cache memory estimate failed", "cache", c.name, "err", r)
			total = 0
		}
	}()

	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		total += len(e.key)
		total += valueSize(e.value)
	}
	total += len(c.items) * entryOverhead
	total += len(c.expiry) * expiryOverhead
	return total
}

func valueSize(v any) int {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return len(val)
	case []byte:
		return len(val)
	case bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return 8
	}

	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() * 8
	case reflect.Map, reflect.Struct, reflect.Pointer:
		return len(fmt.Sprint(v)) * 2
	default:
		return len(fmt.Sprint(v))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
