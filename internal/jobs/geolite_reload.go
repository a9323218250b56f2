package jobs

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"linkpulse/internal/pkg/geoip"
)

// GeoLiteReloadJob reopens the GeoLite2 database when the file on disk
// changes, so a database replaced by an external updater is picked up
// without a restart.
type GeoLiteReloadJob struct {
	path    string
	logger  *slog.Logger
	reload  func()
	lastMod time.Time
}

// NewGeoLiteReloadJob watches path. An empty path makes the job a no-op.
func NewGeoLiteReloadJob(path string, logger *slog.Logger) *GeoLiteReloadJob {
	j := &GeoLiteReloadJob{path: path, logger: logger, reload: geoip.ReloadGeoDB}
	if info, err := os.Stat(path); err == nil {
		j.lastMod = info.ModTime()
	}
	return j
}

func (j *GeoLiteReloadJob) Name() string { return "geolite_reload" }

// Run reloads the database if its modification time moved forward.
func (j *GeoLiteReloadJob) Run() error {
	if j.path == "" {
		return nil
	}

	info, err := os.Stat(j.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat geolite database: %w", err)
	}

	if !info.ModTime().After(j.lastMod) {
		return nil
	}

	j.logger.Info("GeoLite2 database changed on disk, reloading",
		slog.String("path", j.path),
		slog.Time("mod_time", info.ModTime()))
	j.reload()
	j.lastMod = info.ModTime()
	return nil
}
