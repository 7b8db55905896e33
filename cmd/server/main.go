package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"shortlink-api/internal/cache"
	"shortlink-api/internal/config"
	"shortlink-api/internal/database"
	"shortlink-api/internal/routes"

	"github.com/charmbracelet/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "err", err)
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warn("Unknown log level, staying on info", "level", cfg.LogLevel)
	}

	// Init database
	database.InitDB(cfg.DBPath)

	// One manager owns every cache instance; closing it stops the reapers.
	manager := cache.NewManager(managerConfig(cfg))
	defer manager.Close()

	// Setup the routes (public, protected and admin routes)
	ginRoutes := routes.SetupRoutes(manager, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: ginRoutes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", "err", err)
	}
}

// managerConfig maps the flat environment config onto per-instance cache
// profiles.
func managerConfig(cfg *config.Config) cache.ManagerConfig {
	return cache.ManagerConfig{
		Profiles: map[string]cache.Profile{
			cache.URL:       {Capacity: cfg.URLCacheSize, DefaultTTL: cfg.URLCacheTTL},
			cache.User:      {Capacity: cfg.UserCacheSize, DefaultTTL: cfg.UserCacheTTL},
			cache.Analytics: {Capacity: cfg.AnalyticsCacheSize, DefaultTTL: cfg.AnalyticsCacheTTL},
			cache.Session:   {Capacity: cfg.SessionCacheSize, DefaultTTL: cfg.SessionCacheTTL},
			cache.General:   {Capacity: cfg.GeneralCacheSize, DefaultTTL: cfg.GeneralCacheTTL},
		},
		CleanupInterval: cfg.CacheCleanupInterval,
	}
}
