package cache

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Instance names. Manager.Get falls back to General for anything else.
const (
	URL       = "url"
	User      = "user"
	Analytics = "analytics"
	Session   = "session"
	General   = "general"
)

// instanceNames fixes the construction order.
var instanceNames = []string{URL, User, Analytics, Session, General}

// Profile fixes one named instance's capacity and default TTL.
type Profile struct {
	Capacity   int
	DefaultTTL time.Duration
}

// ManagerConfig carries the per-instance profiles and the shared reaper
// interval. Missing profiles fall back to the defaults below.
type ManagerConfig struct {
	Profiles        map[string]Profile
	CleanupInterval time.Duration
}

// DefaultManagerConfig returns the stock workload profiles: a large
// long-lived instance for redirect targets, medium ones for user data and
// general use, and smaller short-lived ones for analytics and sessions.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Profiles: map[string]Profile{
			URL:       {Capacity: 5000, DefaultTTL: time.Hour},
			User:      {Capacity: 1000, DefaultTTL: 30 * time.Minute},
			Analytics: {Capacity: 500, DefaultTTL: 15 * time.Minute},
			Session:   {Capacity: 2000, DefaultTTL: 5 * time.Minute},
			General:   {Capacity: 1000, DefaultTTL: 10 * time.Minute},
		},
		CleanupInterval: DefaultCleanupInterval,
	}
}

// Manager owns the fixed set of named cache instances. It is constructed
// once at startup and handed to whatever needs cache access; there is no
// package-level registry. Every instance exists before NewManager returns,
// and no instance is shared between names.
type Manager struct {
	caches    map[string]*Cache
	closeOnce sync.Once
}

// NewManager builds all named instances eagerly, in a fixed order, each with
// its own lock and reaper.
func NewManager(cfg ManagerConfig) *Manager {
	defaults := DefaultManagerConfig()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}

	m := &Manager{caches: make(map[string]*Cache, len(instanceNames))}
	for _, name := range instanceNames {
		profile, ok := cfg.Profiles[name]
		if !ok {
			profile = defaults.Profiles[name]
		}
		m.caches[name] = New(Options{
			Name:            name,
			Capacity:        profile.Capacity,
			DefaultTTL:      profile.DefaultTTL,
			CleanupInterval: cfg.CleanupInterval,
		})
		log.Debug("cache instance ready",
			"cache", name,
			"capacity", profile.Capacity,
			"default_ttl", profile.DefaultTTL,
		)
	}
	return m
}

// Get returns the named instance, or the general instance for a name it does
// not recognize. Unknown names are a soft condition, never an error.
func (m *Manager) Get(name string) *Cache {
	if c, ok := m.caches[name]; ok {
		return c
	}
	return m.caches[General]
}

// Valid reports whether name is one of the managed instance names.
func (m *Manager) Valid(name string) bool {
	_, ok := m.caches[name]
	return ok
}

// Names returns the instance names in construction order.
func (m *Manager) Names() []string {
	out := make([]string, len(instanceNames))
	copy(out, instanceNames)
	return out
}

// ClearAll empties every instance's data. Counters are untouched.
func (m *Manager) ClearAll() {
	for _, name := range instanceNames {
		m.caches[name].Clear()
	}
	log.Info("all caches cleared")
}

// AllStats returns a snapshot per instance.
func (m *Manager) AllStats() map[string]Snapshot {
	out := make(map[string]Snapshot, len(m.caches))
	for name, c := range m.caches {
		out[name] = c.Stats()
	}
	return out
}

// ResetAllStats zeroes every instance's counters.
func (m *Manager) ResetAllStats() {
	for _, name := range instanceNames {
		m.caches[name].ResetStats()
	}
}

// Close stops every instance's reaper. Safe to call multiple times.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		for _, name := range instanceNames {
			m.caches[name].Close()
		}
		log.Info("cache manager closed")
	})
}
