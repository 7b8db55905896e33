package middleware

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"shortlink-api/internal/cache"
)

// invalidationPrefixes are the paths whose successful mutations make a user's
// cached reads stale.
var invalidationPrefixes = []string{
	"/api/urls",
	"/api/users/profile",
}

// CacheInvalidation drops a user's cached entries after any successful
// mutation under the watched paths. It runs after the handler and never fails
// the request.
func CacheInvalidation(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return
		}

		switch c.Writer.Status() {
		case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		default:
			return
		}

		path := c.Request.URL.Path
		watched := false
		for _, prefix := range invalidationPrefixes {
			if strings.HasPrefix(path, prefix) {
				watched = true
				break
			}
		}
		if !watched {
			return
		}

		uid := c.GetString("user_id")
		if uid == "" {
			return
		}

		m.Invalidate(cache.User, "user_profile_"+uid)
		m.Invalidate(cache.URL, "user_urls_"+uid)
		m.Invalidate(cache.Analytics, "user_stats_"+uid)
		// Analytics keys carry a range suffix after the user id.
		m.InvalidatePattern(cache.Analytics, "user_analytics_"+uid+"_*")
		log.Debug("user cache entries invalidated", "user_id", uid, "path", path)
	}
}
