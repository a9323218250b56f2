package geoip

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"linkpulse/internal/config"
)

// ErrUnavailable is returned by lookups when no GeoLite2 database is loaded.
var ErrUnavailable = errors.New("geolite2 database not available")

var (
	geoDB  *geoip2.Reader
	once   sync.Once
	mu     sync.RWMutex
	logger *slog.Logger
)

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	logger = l
}

// OpenGeoDB opens the GeoLite2-City database at path.
// Returns nil if the path is empty or the file is missing (GeoIP is optional).
func OpenGeoDB(path string) *geoip2.Reader {
	if path == "" {
		if logger != nil {
			logger.Debug("GeoIP database path not configured - offline lookups disabled")
		}
		return nil
	}

	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		if logger != nil {
			logger.Info("GeoLite2 database not found - offline lookups disabled",
				slog.String("path", path),
				slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		}
		return nil
	} else if err != nil {
		if logger != nil {
			logger.Warn("Error checking GeoLite2 database file",
				slog.String("path", path),
				slog.Any("error", err))
		}
		return nil
	}

	if logger != nil {
		logger.Debug("GeoIP database file details",
			slog.String("path", path),
			slog.Int64("size_bytes", fileInfo.Size()),
			slog.Time("mod_time", fileInfo.ModTime()))
	}

	db, err := geoip2.Open(path)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to open GeoLite2 database",
				slog.String("path", path),
				slog.Any("error", err))
		}
		return nil
	}

	if logger != nil {
		logger.Info("GeoLite2 database initialized successfully",
			slog.String("path", path),
			slog.String("db_type", db.Metadata().DatabaseType))
	}
	return db
}

// GetGeoDB returns the GeoLite2 database reader, initializing it if necessary.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = OpenGeoDB(config.GetConfig().GeoDBPath)
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// Available reports whether a database is loaded.
func Available() bool {
	return GetGeoDB() != nil
}

// LookupCity resolves ip against the loaded database. The read lock is held
// for the whole lookup so a concurrent reload cannot close the reader under it.
func LookupCity(ip net.IP) (*geoip2.City, error) {
	GetGeoDB()

	mu.RLock()
	defer mu.RUnlock()
	if geoDB == nil {
		return nil, ErrUnavailable
	}
	return geoDB.City(ip)
}

// ReloadGeoDB reloads the GeoLite2 database from disk.
// Call this after downloading a new database file.
func ReloadGeoDB() {
	GetGeoDB()

	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}

	geoDB = OpenGeoDB(config.GetConfig().GeoDBPath)

	if geoDB != nil && logger != nil {
		logger.Info("GeoLite2 database reloaded successfully")
	}
}
