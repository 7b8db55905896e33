package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"

	"shortlink-api/internal/cache"
	"shortlink-api/internal/database"
)

const (
	defaultSlowRequestThreshold = time.Second
	defaultGzipMinSize          = 500

	// Requests issuing more than this many queries are logged as suspect.
	highQueryCount = 10

	metricsKeyPrefix = "perf_metrics:"
	metricsTTL       = time.Hour
)

var compressibleTypes = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/javascript",
}

// EndpointMetrics is the rolling per-path record kept in the general cache.
// Times are in seconds.
type EndpointMetrics struct {
	Count        int64   `json:"count"`
	TotalTime    float64 `json:"total_time"`
	AvgTime      float64 `json:"avg_time"`
	MaxTime      float64 `json:"max_time"`
	TotalQueries int64   `json:"total_queries"`
	AvgQueries   float64 `json:"avg_queries"`
	MaxQueries   int64   `json:"max_queries"`
	TotalSize    int64   `json:"total_size"`
	AvgSize      float64 `json:"avg_size"`
	MaxSize      int64   `json:"max_size"`
}

// perfWriter buffers the whole response so headers can still be set, the
// body optionally compressed, and everything flushed once after the handler
// returns. WriteHeaderNow is swallowed for the same reason: nothing may reach
// the client early.
type perfWriter struct {
	gin.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (w *perfWriter) WriteHeader(code int) {
	if code > 0 {
		w.status = code
		w.wroteHeader = true
	}
}

func (w *perfWriter) WriteHeaderNow() {}

func (w *perfWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *perfWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *perfWriter) Status() int { return w.status }

func (w *perfWriter) Size() int { return w.body.Len() }

func (w *perfWriter) Written() bool { return w.wroteHeader || w.body.Len() > 0 }

// Performance times every request, counts its queries, stamps diagnostic and
// security headers, gzips large compressible bodies, and keeps rolling
// per-endpoint metrics in the general cache. Websocket upgrades pass through
// untouched since their connection outlives the response.
func Performance(m *cache.Manager, slowAfter time.Duration, gzipMin int) gin.HandlerFunc {
	if slowAfter <= 0 {
		slowAfter = defaultSlowRequestThreshold
	}
	if gzipMin <= 0 {
		gzipMin = defaultGzipMinSize
	}

	return func(c *gin.Context) {
		if c.IsWebsocket() {
			c.Next()
			return
		}

		start := time.Now()
		ctx, queries := database.ContextWithQueryCounter(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		w := &perfWriter{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = w
		c.Next()

		elapsed := time.Since(start)
		queryCount := queries.Load()

		header := w.Header()
		header.Set("X-Request-Time", fmt.Sprintf("%.4fs", elapsed.Seconds()))
		header.Set("X-Query-Count", strconv.FormatInt(queryCount, 10))
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("X-Frame-Options", "DENY")
		header.Set("X-XSS-Protection", "1; mode=block")

		body := w.body.Bytes()
		if shouldCompress(c, header.Get("Content-Type"), len(body), gzipMin) {
			if compressed, err := compressBody(body); err == nil {
				body = compressed
				header.Set("Content-Encoding", "gzip")
				header.Del("Content-Length")
				addVaryAcceptEncoding(header)
			} else {
				log.Error("gzip compression failed", "path", c.Request.URL.Path, "err", err)
			}
		}

		w.ResponseWriter.WriteHeader(w.status)
		if len(body) > 0 {
			w.ResponseWriter.Write(body)
		} else {
			w.ResponseWriter.WriteHeaderNow()
		}

		path := c.Request.URL.Path
		size := len(body)
		if elapsed > slowAfter {
			log.Warn("slow request",
				"method", c.Request.Method,
				"path", path,
				"status", w.status,
				"duration", elapsed,
				"queries", queryCount,
				"size", humanize.Bytes(uint64(size)))
		}
		if queryCount > highQueryCount {
			log.Warn("high query count",
				"path", path,
				"queries", queryCount,
				"duration", elapsed)
		}

		recordEndpointMetrics(m, path, elapsed, queryCount, size)
	}
}

func shouldCompress(c *gin.Context, contentType string, size, minSize int) bool {
	if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
		return false
	}
	if size < minSize {
		return false
	}
	for _, t := range compressibleTypes {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func compressBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addVaryAcceptEncoding(header http.Header) {
	vary := header.Get("Vary")
	switch {
	case vary == "":
		header.Set("Vary", "Accept-Encoding")
	case !strings.Contains(vary, "Accept-Encoding"):
		header.Set("Vary", vary+", Accept-Encoding")
	}
}

// recordEndpointMetrics folds one request into the path's rolling record.
// Metrics must never break a request, so faults are logged and dropped.
func recordEndpointMetrics(m *cache.Manager, path string, elapsed time.Duration, queryCount int64, size int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("recording endpoint metrics failed", "path", path, "err", r)
		}
	}()

	store := m.Get(cache.General)
	key := metricsKeyPrefix + path

	metrics := EndpointMetrics{}
	if v, ok := store.Get(key); ok {
		if existing, ok := v.(EndpointMetrics); ok {
			metrics = existing
		}
	}

	seconds := elapsed.Seconds()
	metrics.Count++
	metrics.TotalTime += seconds
	metrics.TotalQueries += queryCount
	metrics.TotalSize += int64(size)
	metrics.MaxTime = max(metrics.MaxTime, seconds)
	metrics.MaxQueries = max(metrics.MaxQueries, queryCount)
	metrics.MaxSize = max(metrics.MaxSize, int64(size))
	metrics.AvgTime = metrics.TotalTime / float64(metrics.Count)
	metrics.AvgQueries = float64(metrics.TotalQueries) / float64(metrics.Count)
	metrics.AvgSize = float64(metrics.TotalSize) / float64(metrics.Count)

	store.Set(key, metrics, metricsTTL)
}
