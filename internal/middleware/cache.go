package middleware

import (
	"bytes"
	"net/http"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"shortlink-api/internal/cache"
	"shortlink-api/internal/memoize"
)

// CacheRule maps a path pattern to a response caching policy.
type CacheRule struct {
	Pattern      *regexp.Regexp
	Cache        string
	TTL          time.Duration
	VaryByUser   bool
	VaryByMethod bool
}

// DefaultCacheRules covers the read-heavy authenticated endpoints. The
// redirect endpoint is not listed: it answers 302 and only 200 responses are
// stored, so /r/:code caches at the handler instead.
func DefaultCacheRules() []CacheRule {
	return []CacheRule{
		{Pattern: regexp.MustCompile(`^/api/urls$`), Cache: cache.URL, TTL: 5 * time.Minute, VaryByUser: true},
		{Pattern: regexp.MustCompile(`^/api/urls/stats$`), Cache: cache.Analytics, TTL: 15 * time.Minute, VaryByUser: true},
		{Pattern: regexp.MustCompile(`^/api/urls/analytics$`), Cache: cache.Analytics, TTL: 15 * time.Minute, VaryByUser: true},
		{Pattern: regexp.MustCompile(`^/api/users/profile$`), Cache: cache.User, TTL: 30 * time.Minute, VaryByUser: true},
	}
}

// cachedResponse is the replayable part of a response.
type cachedResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// bodyCapture tees the response body so a copy can be cached after the
// handler runs.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache serves matching GET requests from the named cache instances.
// A hit replays the stored response with X-Cache: HIT and skips the handler;
// a miss runs the handler and stores the response when it is a 200. Cache
// trouble never fails the request.
func ResponseCache(m *cache.Manager, rules []CacheRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		rule := matchCacheRule(rules, c.Request.URL.Path)
		if rule == nil {
			c.Next()
			return
		}

		key := responseCacheKey(c, rule)
		store := m.Get(rule.Cache)

		if v, ok := store.Get(key); ok {
			if resp, ok := v.(cachedResponse); ok {
				log.Debug("response cache hit", "path", c.Request.URL.Path, "key", key)
				c.Header("X-Cache", "HIT")
				c.Data(resp.Status, resp.ContentType, resp.Body)
				c.Abort()
				return
			}
		}

		log.Debug("response cache miss", "path", c.Request.URL.Path, "key", key)
		c.Header("X-Cache", "MISS")

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		if capture.Status() != http.StatusOK {
			return
		}
		body := make([]byte, capture.buf.Len())
		copy(body, capture.buf.Bytes())
		store.Set(key, cachedResponse{
			Status:      http.StatusOK,
			ContentType: capture.Header().Get("Content-Type"),
			Body:        body,
		}, rule.TTL)
	}
}

func matchCacheRule(rules []CacheRule, path string) *CacheRule {
	for i := range rules {
		if rules[i].Pattern.MatchString(path) {
			return &rules[i]
		}
	}
	return nil
}

// responseCacheKey hashes the request identity: path, then sorted query,
// then the caller, then the method, with parts included only when the rule
// varies on them.
func responseCacheKey(c *gin.Context, rule *CacheRule) string {
	args := make([]any, 0, 3)
	if query := c.Request.URL.Query().Encode(); query != "" {
		args = append(args, query)
	}
	if rule.VaryByUser {
		if uid := c.GetString("user_id"); uid != "" {
			args = append(args, "user_"+uid)
		}
	}
	if rule.VaryByMethod {
		args = append(args, c.Request.Method)
	}
	return "middleware:" + memoize.Key("", c.Request.URL.Path, args...)
}
