// Package memoize wraps computations with cache-backed result reuse. Callers
// pick the cache instance and key explicitly; the wrapper stays invisible on
// failure, degrading to a plain call when anything in the caching path goes
// wrong.
package memoize

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"shortlink-api/internal/cache"
)

// flights deduplicates concurrent computations of the same key so a cold key
// under load is computed once, not once per caller.
var flights singleflight.Group

// Key derives a deterministic, fixed-length cache key from a logical function
// identity and its arguments. Arguments are rendered in order; use Named for
// keyword-style arguments that need a stable rendering regardless of map
// order. The optional prefix namespaces the key.
func Key(prefix, fn string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, fn)
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%v", a))
	}
	raw := strings.Join(parts, ":")
	if prefix != "" {
		raw = prefix + ":" + raw
	}
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Named renders a set of named arguments as one deterministic key component:
// name:value pairs sorted by name.
type Named map[string]any

func (n Named) String() string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", k, n[k]))
	}
	return strings.Join(parts, ":")
}

// Do returns the value cached under key, computing it with fn on a miss. On a
// hit fn never runs, so its side effects do not occur. On a miss fn runs at
// most once per key across concurrent callers; a nil-error result is stored
// with ttl (instance default when ttl <= 0), an error result propagates
// unchanged and is never stored. A cached value of the wrong type counts as
// a miss.
func Do[T any](c *cache.Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	if c == nil {
		return fn()
	}

	if v, ok := lookup[T](c, key); ok {
		return v, nil
	}

	out, err, _ := flights.Do(key, func() (any, error) {
		// Another caller may have populated the key while we queued.
		if v, ok := lookup[T](c, key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		store(c, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

// DoSlice is the sequence-payload variant of Do: rows produces elements
// lazily through yield, and DoSlice drains them into a slice before storage
// so the cached payload is fully materialized, never a live row source. On a
// hit rows never runs. Stopping early is not supported; yield always reports
// that more elements are wanted.
func DoSlice[T any](c *cache.Cache, key string, ttl time.Duration, rows func(yield func(T) bool) error) ([]T, error) {
	return Do(c, key, ttl, func() ([]T, error) {
		out := []T{}
		if err := rows(func(v T) bool {
			out = append(out, v)
			return true
		}); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// lookup reads key from the cache, demanding type T. Faults degrade to a
// miss so the caller just recomputes.
func lookup[T any](c *cache.Cache, key string) (value T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("memoize lookup failed", "key", key, "err", r)
			ok = false
		}
	}()

	v, found := c.Get(key)
	if !found {
		return value, false
	}
	typed, isT := v.(T)
	if !isT {
		return value, false
	}
	return typed, true
}

// store writes the computed value back. Faults are logged and dropped; the
// caller already has the value.
func store(c *cache.Cache, key string, v any, ttl time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("memoize store failed", "key", key, "err", r)
		}
	}()
	c.Set(key, v, ttl)
}
