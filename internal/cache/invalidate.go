package cache

// Invalidation helpers used after mutations: handlers and middleware delete
// the keys they know are stale instead of waiting out the TTL.

// Invalidate removes one known key from the named instance and reports
// whether anything was removed.
func (m *Manager) Invalidate(cacheName, key string) bool {
	return m.Get(cacheName).Delete(key)
}

// InvalidateAll clears the named instance's data.
func (m *Manager) InvalidateAll(cacheName string) {
	m.Get(cacheName).Clear()
}

// InvalidatePattern removes entries matching pattern from the named instance
// and returns how many were removed. The sentinels "*" and "all" clear the
// whole instance and report the count that was resident; other patterns are
// matched per DeleteMatching.
func (m *Manager) InvalidatePattern(cacheName, pattern string) int {
	c := m.Get(cacheName)
	if pattern == "*" || pattern == "all" {
		n := c.Len()
		c.Clear()
		return n
	}
	return c.DeleteMatching(pattern)
}
