package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"

	"linkpulse/internal/clicks"
	"linkpulse/internal/config"
	"linkpulse/internal/http"
	"linkpulse/internal/http/middleware"
	"linkpulse/internal/links"
	"linkpulse/internal/ratelimit"
)

// apiCORSConfig lets dashboards on other origins call the analytics API
// with a bearer token.
var apiCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization",
}

// RouteDeps are the long-lived collaborators the handlers close over.
type RouteDeps struct {
	Cache    *links.Cache
	Recorder *clicks.Recorder
	Limiter  *ratelimit.Limiter
}

// clientIPKey keys the redirect limiter by the same address the click
// recorder attributes the click to.
func clientIPKey(c *fiber.Ctx) string {
	return clicks.ExtractClientIP(clicks.NewRequestContext(c.Get, c.IP(), time.Now()))
}

// MountAppRoutes returns the route mount function for deps.
func MountAppRoutes(deps RouteDeps) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		cfg := config.GetConfig()
		logger := srv.GetLogger()

		// ============================================
		// ROUTE CONFIGURATIONS
		// ============================================

		// Redirects come from anywhere; browsers following a short link send
		// cross-site Sec-Fetch-Site, so the check is off.
		redirectConfig := &cartridge.RouteConfig{
			EnableSecFetchSite: cartridge.Bool(false),
			CustomMiddleware: []fiber.Handler{
				ratelimit.Middleware(deps.Limiter, clientIPKey, logger),
			},
		}

		analyticsConfig := &cartridge.RouteConfig{
			EnableCORS:         true,
			CORSConfig:         apiCORSConfig,
			EnableSecFetchSite: cartridge.Bool(false),
			CustomMiddleware: []fiber.Handler{
				middleware.BearerAuth(cfg.JWTSecret, logger),
			},
		}

		healthConfig := &cartridge.RouteConfig{
			EnableSecFetchSite: cartridge.Bool(false),
		}

		// Health check endpoint
		srv.Get("/_health", http.HealthIndexAction, healthConfig)
		srv.Head("/_health", http.HealthIndexAction, healthConfig)

		// === ANALYTICS API ===
		srv.Get("/api/analytics/dashboard", http.AnalyticsDashboardAction, analyticsConfig)
		srv.Get("/api/analytics/:id/overview", http.AnalyticsOverviewAction, analyticsConfig)
		srv.Get("/api/analytics/:id/devices", http.AnalyticsDevicesAction, analyticsConfig)
		srv.Get("/api/analytics/:id/geography", http.AnalyticsGeographyAction, analyticsConfig)
		srv.Get("/api/analytics/:id/timeline", http.AnalyticsTimelineAction, analyticsConfig)
		srv.Get("/api/analytics/:id/clicks", http.AnalyticsClicksAction, analyticsConfig)
		srv.Get("/api/analytics/:id/export", http.AnalyticsExportAction, analyticsConfig)

		// === REDIRECTS ===
		// Registered last so the catch-all never shadows the routes above.
		srv.Get("/:code", http.RedirectAction(deps.Cache, deps.Recorder), redirectConfig)
	}
}
