package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"shortlink-api/internal/cache"
	"shortlink-api/internal/models"
	"shortlink-api/internal/testutil"
)

func TestPerformance_DiagnosticAndSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager(t)

	r := gin.New()
	r.Use(Performance(m, time.Second, 500))
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"pong":true}`, w.Body.String())
	require.Regexp(t, regexp.MustCompile(`^\d+\.\d{4}s$`), w.Header().Get("X-Request-Time"))
	require.Equal(t, "0", w.Header().Get("X-Query-Count"))
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	require.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
}

func TestPerformance_CountsQueriesPerRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager(t)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	r := gin.New()
	r.Use(Performance(m, time.Second, 500))
	r.GET("/api/users", func(c *gin.Context) {
		var users []models.User
		db.WithContext(c.Request.Context()).Find(&users)
		db.WithContext(c.Request.Context()).Find(&users)
		c.JSON(http.StatusOK, gin.H{"count": len(users)})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "2", w.Header().Get("X-Query-Count"))
}

func TestPerformance_GzipsLargeCompressibleBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager(t)

	payload := strings.Repeat("shortlink ", 200)
	r := gin.New()
	r.Use(Performance(m, time.Second, 500))
	r.GET("/api/big", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": payload})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	require.Contains(t, w.Header().Get("Vary"), "Accept-Encoding")

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(plain), payload)
}

func TestPerformance_NoGzipWithoutAcceptEncoding(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager(t)

	payload := strings.Repeat("shortlink ", 200)
	r := gin.New()
	r.Use(Performance(m, time.Second, 500))
	r.GET("/api/big", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": payload})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/big", nil))

	require.Empty(t, w.Header().Get("Content-Encoding"))
	require.Contains(t, w.Body.String(), payload)
}

func TestPerformance_NoGzipBelowMinSize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager(t)

	r := gin.New()
	r.Use(Performance(m, time.Second, 500))
	r.GET("/api/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/small", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)

	require.Empty(t, w.Header().Get("Content-Encoding"))
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestPerformance_RecordsEndpointMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager(t)

	r := gin.New()
	r.Use(Performance(m, time.Second, 500))
	r.GET("/api/thing", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
	}

	v, ok := m.Get(cache.General).Get("perf_metrics:/api/thing")
	require.True(t, ok, "metrics entry must exist after requests")
	metrics, ok := v.(EndpointMetrics)
	require.True(t, ok)
	require.Equal(t, int64(3), metrics.Count)
	require.Greater(t, metrics.TotalSize, int64(0))
	require.InDelta(t, float64(metrics.TotalSize)/3, metrics.AvgSize, 0.001)
	require.GreaterOrEqual(t, metrics.MaxTime, metrics.AvgTime)
}

func TestPerformance_NoContentPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager(t)

	r := gin.New()
	r.Use(Performance(m, time.Second, 500))
	r.DELETE("/api/thing", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/thing", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Zero(t, w.Body.Len())
	require.NotEmpty(t, w.Header().Get("X-Request-Time"))
}
