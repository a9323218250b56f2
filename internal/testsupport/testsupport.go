package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linkpulse/internal/clicks"
	"linkpulse/internal/config"
	"linkpulse/internal/database"
	"linkpulse/internal/links"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with linkpulse's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a test database with all linkpulse models migrated.
// Uses a named in-memory database with cache=shared to allow multiple connections
// to share the same database within a test. Caches the database by test name
// so multiple calls within the same test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared&_foreign_keys=on", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	SetTestEnv(t)

	cfg := config.GetConfig()
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set LINKPULSE_ENV=test", cfg.Environment)
	}

	db := SetupTestDB(t)
	return NewTestDBManager(db), GetLogger()
}

// SetTestEnv forces the test environment and reloads configuration.
func SetTestEnv(t *testing.T) {
	t.Helper()
	if os.Getenv("LINKPULSE_ENV") != config.Test {
		t.Setenv("LINKPULSE_ENV", config.Test)
		config.Reset()
	}
}

// CreateTestLink stores a link owned by userID (0 means no owner).
func CreateTestLink(t *testing.T, db *gorm.DB, code, url string, userID uint) *links.Link {
	t.Helper()

	link := &links.Link{URL: url, ShortCode: code}
	if userID != 0 {
		link.UserID = &userID
	}
	require.NoError(t, links.CreateLink(db, GetLogger(), link))
	return link
}

// ClickOption customizes a click event created by CreateTestClick.
type ClickOption func(*clicks.ClickEvent)

// WithCountry sets country and country code.
func WithCountry(country, code string) ClickOption {
	return func(e *clicks.ClickEvent) {
		e.Country = &country
		e.CountryCode = &code
	}
}

// WithCity sets the city.
func WithCity(city string) ClickOption {
	return func(e *clicks.ClickEvent) { e.City = &city }
}

// WithBrowser sets the browser name.
func WithBrowser(name string) ClickOption {
	return func(e *clicks.ClickEvent) { e.BrowserName = &name }
}

// WithOS sets the operating system name.
func WithOS(name string) ClickOption {
	return func(e *clicks.ClickEvent) { e.OSName = &name }
}

// WithDevice sets the device type and brand.
func WithDevice(deviceType, brand string) ClickOption {
	return func(e *clicks.ClickEvent) {
		e.DeviceType = deviceType
		if brand != "" {
			e.DeviceBrand = &brand
		}
	}
}

// WithReferer sets the referer header value.
func WithReferer(referer string) ClickOption {
	return func(e *clicks.ClickEvent) { e.Referer = &referer }
}

// WithTimezone sets the timezone.
func WithTimezone(tz string) ClickOption {
	return func(e *clicks.ClickEvent) { e.Timezone = &tz }
}

// WithISP sets the ISP.
func WithISP(isp string) ClickOption {
	return func(e *clicks.ClickEvent) { e.ISP = &isp }
}

// WithSession sets the visitor fingerprint.
func WithSession(session string) ClickOption {
	return func(e *clicks.ClickEvent) { e.SessionID = &session }
}

// WithUnique marks the click unique or repeat.
func WithUnique(unique bool) ClickOption {
	return func(e *clicks.ClickEvent) { e.IsUnique = unique }
}

// CreateTestClick inserts a click event directly, bypassing the recorder.
func CreateTestClick(t *testing.T, db *gorm.DB, linkID uint, at time.Time, opts ...ClickOption) *clicks.ClickEvent {
	t.Helper()

	event := &clicks.ClickEvent{
		LinkID:      linkID,
		IPAddress:   "192.168.1.xxx",
		UserAgent:   "Mozilla/5.0 Test Browser",
		DeviceType:  "Desktop",
		IsUnique:    true,
		ClickedAt:   at.UTC(),
		ProcessedAt: at.UTC(),
	}
	for _, opt := range opts {
		opt(event)
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

// GenerateToken signs a bearer token for userID with the configured secret.
func GenerateToken(t *testing.T, userID uint) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", userID),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.GetConfig().JWTSecret))
	require.NoError(t, err)
	return signed
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}
