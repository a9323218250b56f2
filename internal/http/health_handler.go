package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpulse/internal/config"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
}

// HealthIndexAction reports database connectivity. It answers 503 when
// the database cannot be reached.
func HealthIndexAction(ctx *cartridge.Context) error {
	dbStatus := "connected"

	db := ctx.DBManager.GetConnection()
	if db == nil {
		dbStatus = "disconnected"
		ctx.Logger.Error("Database connection unavailable")
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			dbStatus = "disconnected"
			ctx.Logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "disconnected"
			ctx.Logger.Error("Database ping failed", slog.Any("error", err))
		}
	}

	health := HealthStatus{
		Status:      "healthy",
		Database:    dbStatus,
		Environment: config.GetConfig().Environment,
		Timestamp:   time.Now().UTC(),
	}

	if dbStatus != "connected" {
		health.Status = "unhealthy"
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(health)
	}

	return ctx.JSON(health)
}
