package routes

import (
	"net/http"

	"shortlink-api/internal/cache"
	"shortlink-api/internal/config"
	"shortlink-api/internal/database"
	"shortlink-api/internal/handlers"
	"shortlink-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(m *cache.Manager, cfg *config.Config) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.New()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204) // This depends on the implementation of the frontend
			return
		}

		c.Next()
	})

	// Performance buffers every response, so Recovery must sit inside it:
	// a recovered panic then surfaces as a buffered 500 instead of an
	// unflushed empty response.
	ginRouter.Use(middleware.Performance(m, cfg.SlowRequestThreshold, cfg.GzipMinSize))
	ginRouter.Use(gin.Recovery())

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		sqlDB, err := database.GetDB().DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "degraded",
				"message": "Database is unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Shortlink API is running",
		})
	})

	// Public redirect endpoint: short links must work without a token
	ginRouter.GET("/r/:code", handlers.RedirectURL(m))

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/auth/register", handlers.Register)
		api.POST("/auth/login", handlers.Login)
		api.GET("/cache/health", handlers.CacheHealth(m))
	}

	// Protected routes (authentication required). Response caching and
	// invalidation live here: both key on the authenticated user.
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	protectedRoutes.Use(middleware.ResponseCache(m, middleware.DefaultCacheRules()))
	protectedRoutes.Use(middleware.CacheInvalidation(m))
	{
		// URL endpoints
		protectedRoutes.GET("/urls", handlers.ListURLs(m))
		protectedRoutes.POST("/urls", handlers.CreateShortURL(m))
		protectedRoutes.DELETE("/urls/:id", handlers.DeleteURL(m))
		protectedRoutes.GET("/urls/stats", handlers.GetURLStats(m))
		protectedRoutes.GET("/urls/analytics", handlers.GetURLAnalytics(m))
		// Profile endpoints
		protectedRoutes.GET("/users/profile", handlers.GetProfile(m))
		protectedRoutes.PUT("/users/profile", handlers.UpdateProfile(m))
		// Live click updates
		protectedRoutes.GET("/ws", handlers.WebSocketHandler)
	}

	// Admin routes (cache and performance operations)
	adminRoutes := api.Group("")
	adminRoutes.Use(middleware.JWTAuthMiddleware())
	adminRoutes.Use(middleware.RequireAdmin())
	{
		adminRoutes.GET("/cache/stats", handlers.CacheStats(m))
		adminRoutes.POST("/cache/clear", handlers.CacheClear(m))
		adminRoutes.POST("/cache/clear/:name", handlers.CacheClearOne(m))
		adminRoutes.POST("/cache/invalidate", handlers.CacheInvalidate(m))
		adminRoutes.POST("/cache/reset-stats", handlers.CacheResetStats(m))
		adminRoutes.GET("/cache/keys/:name", handlers.CacheKeys(m))
		adminRoutes.GET("/performance/endpoints", handlers.PerformanceEndpoints(m))
		adminRoutes.POST("/performance/clear", handlers.PerformanceClear(m))
	}

	return ginRouter
}
