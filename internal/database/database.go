package database

import (
	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linkpulse/internal/clicks"
	"linkpulse/internal/config"
	"linkpulse/internal/links"
)

// DBManager wraps cartridge's sqlite.Manager with linkpulse-specific migration methods.
type DBManager struct {
	*sqlite.Manager
	logger *slog.Logger
}

// NewDBManager creates a new database manager using cartridge's sqlite.Manager.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	sqliteCfg := sqlite.Config{
		Path:         ConnectionPath(cfg.DatabaseName),
		MaxOpenConns: cfg.GetMaxOpenConns(),
		MaxIdleConns: cfg.GetMaxIdleConns(),
		Logger:       logger,
		EnableWAL:    true,
		TxImmediate:  true,
		BusyTimeout:  5000,
	}

	return &DBManager{
		Manager: sqlite.NewManager(sqliteCfg),
		logger:  logger,
	}
}

// ConnectionPath adds the options every pooled connection needs to a
// database file path. foreign_keys is per connection in SQLite, so it goes
// in the DSN. sqlite.Manager appends "?_txlock=immediate"; after the
// trailing "&" that is an unknown parameter, so _txlock is set here too.
func ConnectionPath(path string) string {
	return path + "?_txlock=immediate&_foreign_keys=on&"
}

// Init initializes the database connection.
func (dm *DBManager) Init() error {
	_, err := dm.Manager.Connect()
	return err
}

// Models lists every table owned by linkpulse, parents first.
func Models() []any {
	return []any{
		&links.Link{},
		&clicks.ClickEvent{},
	}
}

// MigrateDatabase creates or updates the links and click_events tables.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(Models()...)
	})
	if err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	if err := dm.CheckpointWAL("FULL"); err != nil {
		dm.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}
