package cache

import (
	"time"

	"github.com/charmbracelet/log"
)

// cleanupLoop runs the reaper: a ticker-based full scan of the expiry index.
// The sleep between sweeps never holds the instance lock, so foreground
// callers only contend with the brief sweep itself.
func (c *Cache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes every expired entry and stamps lastCleanup. A fault inside
// one sweep is logged and swallowed so the next scheduled sweep still runs.
func (c *Cache) sweep() {
	defer func() {
		if r := recover(); r != nil {
			log.Error("cache cleanup failed", "cache", c.name, "err", r)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	ts := now()
	removed := 0
	for key, exp := range c.expiry {
		if !ts.After(exp) {
			continue
		}
		if el, ok := c.items[key]; ok {
			c.removeElementLocked(el)
			c.expirations++
			removed++
		}
	}
	c.lastCleanup = ts

	if removed > 0 {
		log.Debug("cache cleanup", "cache", c.name, "removed", removed)
	}
}
