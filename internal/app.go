// Package internal wires the linkpulse application together.
package internal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"linkpulse/internal/clicks"
	"linkpulse/internal/config"
	"linkpulse/internal/database"
	"linkpulse/internal/geo"
	"linkpulse/internal/jobs"
	"linkpulse/internal/links"
	"linkpulse/internal/pkg/geoip"
	"linkpulse/internal/ratelimit"
)

// Application wraps cartridge.Application with linkpulse-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager // linkpulse DB manager with migration methods
	Logger    *slog.Logger
	Cache     *links.Cache
	Scheduler *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	// Create logger
	logger := cartridge.NewLogger(cfg, nil)
	geoip.InitLogger(logger)

	// Initialize database manager
	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cache, err := links.NewCacheFromURL(cfg.RedisURL, cfg.GetLinkCacheTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize link cache: %w", err)
	}
	if cache != nil {
		logger.Info("Link cache enabled", slog.Duration("ttl", cfg.GetLinkCacheTTL()))
	}

	resolver := geo.NewResolverFromConfig(cfg, logger)
	logger.Info("Geolocation providers configured", slog.Any("providers", resolver.Providers()))

	limiter := ratelimit.New(cfg.RateLimitRequests, cfg.GetRateLimitWindow())

	scheduler := jobs.NewScheduler(logger,
		time.Duration(cfg.JobIntervalSeconds)*time.Second,
		jobs.NewRateLimitSweepJob(limiter, logger),
		jobs.NewGeoLiteReloadJob(cfg.GeoDBPath, logger),
	)

	deps := RouteDeps{
		Cache:    cache,
		Recorder: clicks.NewRecorder(dbManager, resolver, logger),
		Limiter:  limiter,
	}

	// Create the cartridge application using NewApplication
	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    MountAppRoutes(deps),
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Logger:      logger,
		Cache:       cache,
		Scheduler:   scheduler,
	}, nil
}
