package cache

import (
	"testing"
	"time"
)

func newTestManager() *Manager {
	return NewManager(ManagerConfig{
		Profiles: map[string]Profile{
			URL:       {Capacity: 20, DefaultTTL: time.Minute},
			User:      {Capacity: 10, DefaultTTL: time.Minute},
			Analytics: {Capacity: 10, DefaultTTL: time.Minute},
			Session:   {Capacity: 10, DefaultTTL: time.Minute},
			General:   {Capacity: 10, DefaultTTL: time.Minute},
		},
		CleanupInterval: -1,
	})
}

func TestManager_AllInstancesExist(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	names := m.Names()
	if len(names) != 5 {
		t.Fatalf("expected 5 instances, got %d", len(names))
	}
	seen := map[*Cache]string{}
	for _, name := range names {
		c := m.Get(name)
		if c == nil {
			t.Fatalf("expected instance for %s", name)
		}
		if c.Name() != name {
			t.Fatalf("expected instance name %s, got %s", name, c.Name())
		}
		if prev, dup := seen[c]; dup {
			t.Fatalf("instance shared between %s and %s", prev, name)
		}
		seen[c] = name
	}
}

func TestManager_UnknownNameFallsBack(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	c := m.Get("no_such_cache")
	if c != m.Get(General) {
		t.Fatalf("expected fallback to the general instance")
	}
	if m.Valid("no_such_cache") {
		t.Fatalf("expected unknown name to be invalid")
	}
	if !m.Valid(URL) {
		t.Fatalf("expected url to be valid")
	}
}

func TestManager_ClearAllKeepsCounters(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	m.Get(URL).Set("a", 1, 0)
	m.Get(User).Set("b", 2, 0)
	m.Get(URL).Get("a")

	m.ClearAll()

	stats := m.AllStats()
	for name, s := range stats {
		if s.CurrentSize != 0 {
			t.Fatalf("expected %s empty, size=%d", name, s.CurrentSize)
		}
	}
	if stats[URL].Sets != 1 || stats[URL].Hits != 1 {
		t.Fatalf("expected url counters to survive clear_all, got %+v", stats[URL])
	}

	m.ResetAllStats()
	if s := m.AllStats()[URL]; s.Sets != 0 || s.Hits != 0 {
		t.Fatalf("expected counters zeroed, got %+v", s)
	}
}

func TestManager_AllStatsCoversEveryInstance(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	stats := m.AllStats()
	for _, name := range m.Names() {
		if _, ok := stats[name]; !ok {
			t.Fatalf("expected stats for %s", name)
		}
	}
	if stats[URL].MaxSize != 20 {
		t.Fatalf("expected configured capacity in stats, got %d", stats[URL].MaxSize)
	}
}

func TestManager_Invalidate(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	m.Get(User).Set("user_profile_7", "p", 0)
	if !m.Invalidate(User, "user_profile_7") {
		t.Fatalf("expected targeted invalidation to remove the key")
	}
	if m.Invalidate(User, "user_profile_7") {
		t.Fatalf("expected second invalidation to remove nothing")
	}

	m.Get(Session).Set("s1", 1, 0)
	m.Get(Session).Set("s2", 2, 0)
	m.InvalidateAll(Session)
	if m.Get(Session).Len() != 0 {
		t.Fatalf("expected session cache emptied")
	}
}

func TestManager_InvalidatePattern(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	g := m.Get(General)
	g.Set("perf_metrics:/api/urls", 1, 0)
	g.Set("perf_metrics:/api/users", 2, 0)
	g.Set("other", 3, 0)

	if n := m.InvalidatePattern(General, "perf_metrics:*"); n != 2 {
		t.Fatalf("expected 2 invalidated, got %d", n)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", g.Len())
	}

	// Sentinel clears everything and reports what was resident.
	g.Set("x", 1, 0)
	if n := m.InvalidatePattern(General, "all"); n != 2 {
		t.Fatalf("expected sentinel to report 2, got %d", n)
	}
	if g.Len() != 0 {
		t.Fatalf("expected empty cache after sentinel")
	}

	// Pattern invalidation against an unknown name lands on general.
	g.Set("y", 1, 0)
	if n := m.InvalidatePattern("mystery", "*"); n != 1 {
		t.Fatalf("expected fallback instance to be cleared, got %d", n)
	}
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	m := NewManager(ManagerConfig{CleanupInterval: 10 * time.Millisecond})
	m.Get(URL).Set("a", 1, 0)
	m.Close()
	m.Close()

	if m.Get(URL).Set("b", 2, 0) {
		t.Fatalf("expected Set refused after manager close")
	}
}
