package handlers

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"shortlink-api/internal/cache"
	"shortlink-api/internal/middleware"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// systemInfo reports host and process memory via gopsutil. A probe that
// fails just leaves its fields out.
func systemInfo() gin.H {
	info := gin.H{}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["system_memory_total_gb"] = round2(float64(vm.Total) / (1 << 30))
		info["system_memory_available_gb"] = round2(float64(vm.Available) / (1 << 30))
		info["system_memory_percent_used"] = round2(vm.UsedPercent)
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			info["process_memory_mb"] = round2(float64(mi.RSS) / (1 << 20))
		}
	}
	return info
}

/*
*
CacheStats handles GET /api/cache/stats
Returns per-instance snapshots, overall hit rate, and system memory info
*/
func CacheStats(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := m.AllStats()

		var totalHits, totalMisses int64
		var totalMemory float64
		for _, s := range all {
			totalHits += s.Hits
			totalMisses += s.Misses
			totalMemory += s.MemoryUsageMB
		}
		totalRequests := totalHits + totalMisses
		overallHitRate := 0.0
		if totalRequests > 0 {
			overallHitRate = float64(totalHits) / float64(totalRequests) * 100
		}

		c.JSON(http.StatusOK, gin.H{
			"timestamp": time.Now().Unix(),
			"overall_performance": gin.H{
				"total_requests":        totalRequests,
				"total_hits":            totalHits,
				"total_misses":          totalMisses,
				"overall_hit_rate":      round2(overallHitRate),
				"total_cache_memory_mb": round2(totalMemory),
			},
			"system_info":     systemInfo(),
			"cache_instances": all,
		})
	}
}

// CacheHealth handles GET /api/cache/health
// Flags instances with poor hit rates or near-capacity occupancy
func CacheHealth(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := m.AllStats()

		health := "healthy"
		issues := []string{}
		var totalMemory float64
		totalEntries := 0
		for _, name := range m.Names() {
			s := all[name]
			if s.Hits+s.Misses > 0 && s.HitRate < 10 {
				issues = append(issues, fmt.Sprintf("%s: Low hit rate (%v%%)", name, s.HitRate))
			}
			if float64(s.CurrentSize) > float64(s.MaxSize)*0.9 {
				issues = append(issues, fmt.Sprintf("%s: High memory usage (%d/%d)", name, s.CurrentSize, s.MaxSize))
			}
			totalMemory += s.MemoryUsageMB
			totalEntries += s.CurrentSize
		}
		if len(issues) > 0 {
			health = "warning"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":          health,
			"timestamp":       time.Now().Unix(),
			"total_memory_mb": round2(totalMemory),
			"total_entries":   totalEntries,
			"issues":          issues,
			"cache_count":     len(all),
		})
	}
}

// CacheClear handles POST /api/cache/clear
func CacheClear(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.ClearAll()
		log.Info("all caches cleared by admin", "admin", c.GetString("username"))

		c.JSON(http.StatusOK, gin.H{
			"message":   "All caches cleared successfully",
			"timestamp": time.Now().Unix(),
		})
	}
}

// CacheClearOne handles POST /api/cache/clear/:name
func CacheClearOne(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if !m.Valid(name) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid cache type: %s", name),
				"valid": m.Names(),
			})
			return
		}

		m.Get(name).Clear()
		log.Info("cache cleared by admin", "cache", name, "admin", c.GetString("username"))

		c.JSON(http.StatusOK, gin.H{
			"message":    fmt.Sprintf("Cache %q cleared successfully", name),
			"cache_type": name,
			"timestamp":  time.Now().Unix(),
		})
	}
}

// InvalidateRequest represents the request payload for pattern invalidation
type InvalidateRequest struct {
	Pattern   string `json:"pattern"`
	CacheType string `json:"cache_type"`
}

// CacheInvalidate handles POST /api/cache/invalidate
// Deletes entries matching a pattern from one instance
func CacheInvalidate(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InvalidateRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Pattern == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Pattern is required"})
			return
		}
		if req.CacheType == "" {
			req.CacheType = cache.General
		}

		count := m.InvalidatePattern(req.CacheType, req.Pattern)
		log.Info("cache pattern invalidated by admin",
			"pattern", req.Pattern,
			"cache", req.CacheType,
			"count", count,
			"admin", c.GetString("username"))

		c.JSON(http.StatusOK, gin.H{
			"message":           fmt.Sprintf("Cache pattern %q invalidated", req.Pattern),
			"invalidated_count": count,
			"cache_type":        req.CacheType,
			"timestamp":         time.Now().Unix(),
		})
	}
}

// CacheResetStats handles POST /api/cache/reset-stats
func CacheResetStats(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.ResetAllStats()
		log.Info("cache statistics reset by admin", "admin", c.GetString("username"))

		c.JSON(http.StatusOK, gin.H{
			"message":   "Cache statistics reset",
			"timestamp": time.Now().Unix(),
		})
	}
}

// CacheKeys handles GET /api/cache/keys/:name
// Debug surface: returns one instance's stats. Keys themselves stay private.
func CacheKeys(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		c.JSON(http.StatusOK, gin.H{
			"cache_type": name,
			"stats":      m.Get(name).Stats(),
			"note":       "Key listing not implemented for security reasons",
			"timestamp":  time.Now().Unix(),
		})
	}
}

// PerformanceEndpoints handles GET /api/performance/endpoints
// Summarizes the rolling per-path metrics the performance middleware records
func PerformanceEndpoints(m *cache.Manager) gin.HandlerFunc {
	type entry struct {
		endpoint string
		metrics  middleware.EndpointMetrics
	}

	return func(c *gin.Context) {
		general := m.Get(cache.General)

		entries := []entry{}
		for _, key := range general.Keys() {
			if !strings.HasPrefix(key, "perf_metrics:") {
				continue
			}
			v, ok := general.Get(key)
			if !ok {
				continue
			}
			metrics, ok := v.(middleware.EndpointMetrics)
			if !ok {
				continue
			}
			entries = append(entries, entry{
				endpoint: strings.TrimPrefix(key, "perf_metrics:"),
				metrics:  metrics,
			})
		}

		bySlow := make([]entry, len(entries))
		copy(bySlow, entries)
		sort.Slice(bySlow, func(i, j int) bool { return bySlow[i].metrics.AvgTime > bySlow[j].metrics.AvgTime })

		byQueries := make([]entry, len(entries))
		copy(byQueries, entries)
		sort.Slice(byQueries, func(i, j int) bool { return byQueries[i].metrics.AvgQueries > byQueries[j].metrics.AvgQueries })

		slow := []gin.H{}
		for i, e := range bySlow {
			if i == 10 {
				break
			}
			slow = append(slow, gin.H{
				"endpoint":      e.endpoint,
				"avg_time":      e.metrics.AvgTime,
				"max_time":      e.metrics.MaxTime,
				"request_count": e.metrics.Count,
			})
		}

		highQuery := []gin.H{}
		for i, e := range byQueries {
			if i == 10 {
				break
			}
			highQuery = append(highQuery, gin.H{
				"endpoint":      e.endpoint,
				"avg_queries":   e.metrics.AvgQueries,
				"max_queries":   e.metrics.MaxQueries,
				"request_count": e.metrics.Count,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"timestamp":            time.Now().Unix(),
			"total_endpoints":      len(entries),
			"slow_endpoints":       slow,
			"high_query_endpoints": highQuery,
		})
	}
}

// PerformanceClear handles POST /api/performance/clear
func PerformanceClear(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		count := m.Get(cache.General).DeleteMatching("perf_metrics:*")
		log.Info("performance metrics cleared by admin",
			"count", count,
			"admin", c.GetString("username"))

		c.JSON(http.StatusOK, gin.H{
			"message":       fmt.Sprintf("Cleared %d performance metrics", count),
			"cleared_count": count,
			"timestamp":     time.Now().Unix(),
		})
	}
}
