package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"shortlink-api/internal/cache"
	"shortlink-api/internal/database"
	"shortlink-api/internal/memoize"
	"shortlink-api/internal/models"
	"shortlink-api/internal/realtime"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateURLRequest represents the request payload for shortening a URL
type CreateURLRequest struct {
	OriginalURL string     `json:"original_url" binding:"required"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// URLStats aggregates one user's link counters.
type URLStats struct {
	TotalURLs   int64 `json:"total_urls"`
	ActiveURLs  int64 `json:"active_urls"`
	TotalClicks int64 `json:"total_clicks"`
}

// SeriesPoint is one day of the urls_created series.
type SeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// TopURL is one row of the click-count leaderboard.
type TopURL struct {
	ShortCode  string `json:"short_code"`
	Title      string `json:"title"`
	ClickCount int64  `json:"click_count"`
}

// URLAnalytics is the per-user analytics payload.
type URLAnalytics struct {
	Range       string        `json:"range"`
	Interval    string        `json:"interval"`
	Totals      URLStats      `json:"totals"`
	URLsCreated []SeriesPoint `json:"urls_created"`
	TopURLs     []TopURL      `json:"top_urls"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// analyticsDays maps the accepted range params to their day spans.
var analyticsDays = map[string]int{
	"7d":   7,
	"30d":  30,
	"90d":  90,
	"180d": 180,
	"365d": 365,
}

func validOriginalURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

/*
*
CreateShortURL handles POST /api/urls
Shortens a URL for the authenticated user
*/
func CreateShortURL(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "User ID not found in token",
			})
			return
		}

		var req CreateURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}

		if !validOriginalURL(req.OriginalURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "original_url must be a valid http or https URL"})
			return
		}

		db := database.GetDB().WithContext(c.Request.Context())

		// Collisions in an 8-character alphanumeric space are rare; a handful
		// of retries is plenty.
		var code string
		for attempt := 0; attempt < 5; attempt++ {
			candidate := models.NewShortCode()
			var taken int64
			if err := db.Model(&models.ShortenedURL{}).Where("short_code = ?", candidate).Count(&taken).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create short URL"})
				return
			}
			if taken == 0 {
				code = candidate
				break
			}
		}
		if code == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not allocate a unique short code"})
			return
		}

		link := models.ShortenedURL{
			ID:          fmt.Sprintf("url-%d", time.Now().UnixNano()),
			OriginalURL: req.OriginalURL,
			ShortCode:   code,
			Title:       req.Title,
			Description: req.Description,
			UserID:      userID,
			IsActive:    true,
			ExpiresAt:   req.ExpiresAt,
		}

		if err := db.Create(&link).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create short URL"})
			return
		}

		m.Invalidate(cache.URL, "user_urls_"+userID)

		realtime.GetHub().BroadcastEvent(userID, realtime.Event{
			Type:      realtime.EventURLCreated,
			URLID:     link.ID,
			ShortCode: link.ShortCode,
		})

		c.JSON(http.StatusCreated, link)
	}
}

/*
*
ListURLs handles GET /api/urls
Returns all links owned by the authenticated user, newest first
*/
func ListURLs(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "User ID not found in token",
			})
			return
		}

		db := database.GetDB().WithContext(c.Request.Context())

		urls, err := memoize.DoSlice(m.Get(cache.URL), "user_urls_"+userID, 5*time.Minute,
			func(yield func(models.ShortenedURL) bool) error {
				rows, err := db.Model(&models.ShortenedURL{}).
					Where("user_id = ?", userID).
					Order("created_at desc").
					Rows()
				if err != nil {
					return err
				}
				defer rows.Close()

				for rows.Next() {
					var link models.ShortenedURL
					if err := db.ScanRows(rows, &link); err != nil {
						return err
					}
					if !yield(link) {
						break
					}
				}
				return rows.Err()
			})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch URLs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"urls":  urls,
			"count": len(urls),
		})
	}
}

// GetURLStats handles GET /api/urls/stats
// Returns the authenticated user's aggregate link counters
func GetURLStats(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
			return
		}

		db := database.GetDB().WithContext(c.Request.Context())

		stats, err := memoize.Do(m.Get(cache.Analytics), "user_stats_"+userID, 15*time.Minute,
			func() (URLStats, error) {
				var out URLStats
				err := db.Model(&models.ShortenedURL{}).
					Select("COUNT(*) as total_urls, COUNT(CASE WHEN is_active THEN 1 END) as active_urls, COALESCE(SUM(click_count), 0) as total_clicks").
					Where("user_id = ?", userID).
					Scan(&out).Error
				return out, err
			})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get statistics"})
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

// GetURLAnalytics handles GET /api/urls/analytics
// Returns a daily creation series and click leaderboard over ?range=30d
func GetURLAnalytics(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
			return
		}

		rangeParam := c.DefaultQuery("range", "30d")
		days, ok := analyticsDays[rangeParam]
		if !ok {
			rangeParam, days = "30d", 30
		}

		db := database.GetDB().WithContext(c.Request.Context())
		key := fmt.Sprintf("user_analytics_%s_%s", userID, rangeParam)

		analytics, err := memoize.Do(m.Get(cache.Analytics), key, 15*time.Minute,
			func() (URLAnalytics, error) {
				return buildAnalytics(db, userID, rangeParam, days)
			})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get analytics"})
			return
		}

		c.JSON(http.StatusOK, analytics)
	}
}

func buildAnalytics(db *gorm.DB, userID, rangeParam string, days int) (URLAnalytics, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -(days - 1))
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	var totals URLStats
	if err := db.Model(&models.ShortenedURL{}).
		Select("COUNT(*) as total_urls, COUNT(CASE WHEN is_active THEN 1 END) as active_urls, COALESCE(SUM(click_count), 0) as total_clicks").
		Where("user_id = ?", userID).
		Scan(&totals).Error; err != nil {
		return URLAnalytics{}, err
	}

	var createdAts []time.Time
	if err := db.Model(&models.ShortenedURL{}).
		Where("user_id = ? AND created_at >= ?", userID, startDay).
		Pluck("created_at", &createdAts).Error; err != nil {
		return URLAnalytics{}, err
	}

	perDay := make(map[string]int64, len(createdAts))
	for _, at := range createdAts {
		perDay[at.Format("2006-01-02")]++
	}

	// Zero-fill the buckets so the series has one point per day.
	series := make([]SeriesPoint, 0, days)
	for day := startDay; !day.After(now); day = day.AddDate(0, 0, 1) {
		date := day.Format("2006-01-02")
		series = append(series, SeriesPoint{Date: date, Count: perDay[date]})
	}

	top := []TopURL{}
	if err := db.Model(&models.ShortenedURL{}).
		Select("short_code, title, click_count").
		Where("user_id = ?", userID).
		Order("click_count desc").
		Limit(10).
		Scan(&top).Error; err != nil {
		return URLAnalytics{}, err
	}

	return URLAnalytics{
		Range:       rangeParam,
		Interval:    "day",
		Totals:      totals,
		URLsCreated: series,
		TopURLs:     top,
		UpdatedAt:   now,
	}, nil
}

// DeleteURL handles DELETE /api/urls/:id
// Deletes a link owned by the authenticated user
func DeleteURL(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "User ID not found in token",
			})
			return
		}

		urlID := c.Param("id")
		if urlID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "URL ID is required"})
			return
		}

		db := database.GetDB().WithContext(c.Request.Context())

		var link models.ShortenedURL
		result := db.Where("id = ? AND user_id = ?", urlID, userID).First(&link)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "URL not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch URL"})
			}
			return
		}

		if err := db.Delete(&link).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete URL"})
			return
		}

		// A deleted link must stop redirecting now, not when its entry ages
		// out.
		m.Invalidate(cache.URL, "redirect_"+link.ShortCode)
		m.Invalidate(cache.URL, "user_urls_"+userID)
		m.Invalidate(cache.Analytics, "user_stats_"+userID)

		realtime.GetHub().BroadcastEvent(userID, realtime.Event{
			Type:      realtime.EventURLDeleted,
			URLID:     link.ID,
			ShortCode: link.ShortCode,
		})

		c.JSON(http.StatusOK, gin.H{
			"message": "URL deleted successfully",
			"id":      urlID,
		})
	}
}

/*
*
RedirectURL handles GET /r/:code
Sends visitors to the original URL, serving hot codes from cache
*/
func RedirectURL(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		store := m.Get(cache.URL)
		key := "redirect_" + code

		if v, ok := store.Get(key); ok {
			if target, ok := v.(string); ok {
				recordClick(c, code)
				c.Redirect(http.StatusFound, target)
				return
			}
		}

		db := database.GetDB().WithContext(c.Request.Context())

		var link models.ShortenedURL
		result := db.Where("short_code = ?", code).First(&link)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "URL not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve URL"})
			}
			return
		}

		if !link.IsActive {
			c.JSON(http.StatusGone, gin.H{"error": "This URL is no longer active"})
			return
		}
		if link.Expired() {
			c.JSON(http.StatusGone, gin.H{"error": "This URL has expired"})
			return
		}

		// Cache for an hour, or until the link itself expires if that is
		// sooner.
		ttl := time.Hour
		if link.ExpiresAt != nil {
			if until := time.Until(*link.ExpiresAt); until < ttl {
				ttl = until
			}
		}
		store.Set(key, link.OriginalURL, ttl)

		recordClick(c, code)
		c.Redirect(http.StatusFound, link.OriginalURL)
	}
}

// recordClick bumps the click counter and tells the owner over the hub.
// Recording trouble never breaks the redirect itself.
func recordClick(c *gin.Context, code string) {
	db := database.GetDB().WithContext(c.Request.Context())

	if err := db.Model(&models.ShortenedURL{}).
		Where("short_code = ?", code).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1)).Error; err != nil {
		log.Warn("click count update failed", "short_code", code, "err", err)
		return
	}

	var link models.ShortenedURL
	if err := db.Select("id", "user_id", "short_code", "click_count").
		Where("short_code = ?", code).
		First(&link).Error; err != nil {
		log.Warn("click readback failed", "short_code", code, "err", err)
		return
	}

	realtime.GetHub().BroadcastEvent(link.UserID, realtime.Event{
		Type:       realtime.EventClickUpdate,
		URLID:      link.ID,
		ShortCode:  link.ShortCode,
		ClickCount: link.ClickCount,
	})
}
