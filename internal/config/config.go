// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

const defaultJWTSecret = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	JWTSecret   string   `mapstructure:"jwtsecret"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Link cache (empty RedisURL disables it)
	RedisURL            string `mapstructure:"redisurl"`
	LinkCacheTTLSeconds int    `mapstructure:"linkcachettlseconds"`

	// Geolocation
	GeoProviders         string `mapstructure:"geoproviders"`
	GeoLookupTimeoutSecs int    `mapstructure:"geolookuptimeoutseconds"`

	// Redirect rate limiting
	RateLimitRequests      int `mapstructure:"ratelimitrequests"`
	RateLimitWindowSeconds int `mapstructure:"ratelimitwindowseconds"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "linkpulse")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("jwtsecret", defaultJWTSecret)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("publicdir", "web/dist/assets")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("redisurl", "")
		v.SetDefault("linkcachettlseconds", 600)
		v.SetDefault("geoproviders", "geolite,ip-api,ipapi.co,ipinfo")
		v.SetDefault("geolookuptimeoutseconds", 5)
		v.SetDefault("ratelimitrequests", 300)
		v.SetDefault("ratelimitwindowseconds", 300)
		v.SetDefault("jobintervalseconds", 60)

		v.BindEnv("appname", "LINKPULSE_APP_NAME")
		v.BindEnv("appport", "LINKPULSE_APP_PORT")
		v.BindEnv("environment", "LINKPULSE_ENV")
		v.BindEnv("loglevel", "LINKPULSE_LOG_LEVEL")
		v.BindEnv("jwtsecret", "LINKPULSE_JWT_SECRET")
		v.BindEnv("storagepath", "LINKPULSE_STORAGE_PATH")
		v.BindEnv("geodbpath", "LINKPULSE_GEO_DB_PATH")
		v.BindEnv("publicdir", "LINKPULSE_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "LINKPULSE_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "LINKPULSE_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "LINKPULSE_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "LINKPULSE_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "LINKPULSE_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "LINKPULSE_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "LINKPULSE_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "LINKPULSE_DB_MAX_IDLE_CONNS")
		v.BindEnv("redisurl", "LINKPULSE_REDIS_URL")
		v.BindEnv("linkcachettlseconds", "LINKPULSE_LINK_CACHE_TTL_SECONDS")
		v.BindEnv("geoproviders", "LINKPULSE_GEO_PROVIDERS")
		v.BindEnv("geolookuptimeoutseconds", "LINKPULSE_GEO_LOOKUP_TIMEOUT_SECONDS")
		v.BindEnv("ratelimitrequests", "LINKPULSE_RATE_LIMIT_REQUESTS")
		v.BindEnv("ratelimitwindowseconds", "LINKPULSE_RATE_LIMIT_WINDOW_SECONDS")
		v.BindEnv("jobintervalseconds", "LINKPULSE_JOB_INTERVAL_SECONDS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.JWTSecret == "" {
			log.Fatal("JWT secret is required")
		}
		if cfg.IsProduction() && cfg.JWTSecret == defaultJWTSecret {
			log.Fatal("Production requires a unique LINKPULSE_JWT_SECRET (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.RateLimitRequests < 0 || c.RateLimitWindowSeconds < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the signing secret (implements cartridge.FactoryConfig interface).
// The same secret verifies report bearer tokens.
func (c *Config) GetSessionSecret() string {
	return c.JWTSecret
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (concurrent reads for report queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLinkCacheTTL returns how long a resolved link stays in the redirect cache.
func (c *Config) GetLinkCacheTTL() time.Duration {
	return time.Duration(c.LinkCacheTTLSeconds) * time.Second
}

// GetGeoLookupTimeout returns the per-provider geolocation timeout.
func (c *Config) GetGeoLookupTimeout() time.Duration {
	if c.GeoLookupTimeoutSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.GeoLookupTimeoutSecs) * time.Second
}

// GetGeoProviders returns the configured provider names in priority order.
func (c *Config) GetGeoProviders() []string {
	var names []string
	for _, name := range strings.Split(c.GeoProviders, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// GetRateLimitWindow returns the sliding window used by the redirect limiter.
func (c *Config) GetRateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
