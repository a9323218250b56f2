package http_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"linkpulse/internal/clicks"
	"linkpulse/internal/config"
	"linkpulse/internal/geo"
	"linkpulse/internal/http"
	"linkpulse/internal/http/middleware"
	"linkpulse/internal/links"
	"linkpulse/internal/testsupport"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type testServer struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestServer(t *testing.T, cache *links.Cache) *testServer {
	t.Helper()

	dbManager, logger := testsupport.SetupTestDBManager(t)

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = config.GetConfig()
	cfg.Logger = logger
	cfg.DBManager = dbManager
	cfg.StaticDirectory = t.TempDir()
	cfg.TemplatesDirectory = t.TempDir()
	cfg.EnableSecFetchSite = false

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	recorder := clicks.NewRecorder(dbManager, geo.NewResolver(logger, time.Second), logger)
	api := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{middleware.BearerAuth(config.GetConfig().JWTSecret, logger)},
	}
	public := &cartridge.RouteConfig{EnableSecFetchSite: cartridge.Bool(false)}

	srv.Get("/_health", http.HealthIndexAction, public)
	srv.Get("/api/analytics/dashboard", http.AnalyticsDashboardAction, api)
	srv.Get("/api/analytics/:id/overview", http.AnalyticsOverviewAction, api)
	srv.Get("/api/analytics/:id/devices", http.AnalyticsDevicesAction, api)
	srv.Get("/api/analytics/:id/geography", http.AnalyticsGeographyAction, api)
	srv.Get("/api/analytics/:id/timeline", http.AnalyticsTimelineAction, api)
	srv.Get("/api/analytics/:id/clicks", http.AnalyticsClicksAction, api)
	srv.Get("/api/analytics/:id/export", http.AnalyticsExportAction, api)
	srv.Get("/:code", http.RedirectAction(cache, recorder), public)

	return &testServer{app: srv.App(), db: dbManager.GetConnection()}
}

type response struct {
	status int
	body   fiber.Map
	raw    string
	header func(key string) string
}

func (s *testServer) get(t *testing.T, path, token string, headers map[string]string) response {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, raw: string(raw), header: resp.Header.Get}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func TestRedirectRecordsClick(t *testing.T) {
	s := newTestServer(t, nil)
	link := testsupport.CreateTestLink(t, s.db, "go1", "https://example.com/landing", 1)

	resp := s.get(t, "/go1", "", map[string]string{
		"User-Agent":      chromeUA,
		"Referer":         "https://news.ycombinator.com/item?id=1",
		"X-Forwarded-For": "198.51.100.23, 10.0.0.1",
	})

	assert.Equal(t, fiber.StatusMovedPermanently, resp.status)
	assert.Equal(t, "https://example.com/landing", resp.header("Location"))

	events, err := clicks.ForLinkSince(s.db, link.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "198.51.100.xxx", events[0].IPAddress)
	assert.Equal(t, "Desktop", events[0].DeviceType)
	assert.True(t, events[0].IsUnique)

	stored, err := links.GetByID(s.db, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ClickCount)
	assert.Equal(t, int64(1), stored.UniqueClicks)
	assert.NotNil(t, stored.LastClicked)
}

func TestRedirectRepeatVisitorNotUnique(t *testing.T) {
	s := newTestServer(t, nil)
	link := testsupport.CreateTestLink(t, s.db, "go2", "https://example.com", 1)
	headers := map[string]string{"User-Agent": chromeUA, "X-Forwarded-For": "198.51.100.24"}

	for i := 0; i < 2; i++ {
		resp := s.get(t, "/go2", "", headers)
		require.Equal(t, fiber.StatusMovedPermanently, resp.status)
	}

	stored, err := links.GetByID(s.db, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.ClickCount)
	assert.Equal(t, int64(1), stored.UniqueClicks)
}

func TestRedirectUnknownCode(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/missing", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.Equal(t, "Short link not found", resp.body["error"])
}

func TestRedirectUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := links.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	s := newTestServer(t, cache)
	link := testsupport.CreateTestLink(t, s.db, "cached", "https://example.com/cached", 1)

	resp := s.get(t, "/cached", "", map[string]string{"User-Agent": chromeUA})
	require.Equal(t, fiber.StatusMovedPermanently, resp.status)
	assert.True(t, mr.Exists("link:cached"))

	// The row is gone but the cache still answers; tracking fails and the
	// redirect still goes out.
	require.NoError(t, links.DeleteLink(s.db, testsupport.GetLogger(), link.ID))

	resp = s.get(t, "/cached", "", map[string]string{"User-Agent": chromeUA})
	assert.Equal(t, fiber.StatusMovedPermanently, resp.status)
	assert.Equal(t, "https://example.com/cached", resp.header("Location"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/_health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "healthy", resp.body["status"])
	assert.Equal(t, "connected", resp.body["database"])
	assert.Equal(t, config.Test, resp.body["environment"])
}

func TestAnalyticsRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)
	link := testsupport.CreateTestLink(t, s.db, "auth1", "https://example.com", 1)

	resp := s.get(t, fmt.Sprintf("/api/analytics/%d/overview", link.ID), "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)

	resp = s.get(t, fmt.Sprintf("/api/analytics/%d/overview", link.ID), "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
}

func TestAnalyticsForeignLinkNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	link := testsupport.CreateTestLink(t, s.db, "mine1", "https://example.com", 1)
	token := testsupport.GenerateToken(t, 2)

	for _, section := range []string{"overview", "devices", "geography", "timeline", "clicks", "export"} {
		resp := s.get(t, fmt.Sprintf("/api/analytics/%d/%s", link.ID, section), token, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.status, section)
		assert.Contains(t, resp.body["error"], "Link not found", section)
	}
}

func TestAnalyticsValidation(t *testing.T) {
	s := newTestServer(t, nil)
	link := testsupport.CreateTestLink(t, s.db, "val1", "https://example.com", 1)
	token := testsupport.GenerateToken(t, 1)

	cases := []string{
		fmt.Sprintf("/api/analytics/%d/overview?days=0", link.ID),
		fmt.Sprintf("/api/analytics/%d/overview?days=366", link.ID),
		fmt.Sprintf("/api/analytics/%d/devices?days=abc", link.ID),
		fmt.Sprintf("/api/analytics/%d/clicks?limit=0", link.ID),
		fmt.Sprintf("/api/analytics/%d/clicks?limit=1001", link.ID),
		fmt.Sprintf("/api/analytics/%d/clicks?offset=-1", link.ID),
		"/api/analytics/abc/overview",
		"/api/analytics/dashboard?days=91",
	}
	for _, path := range cases {
		resp := s.get(t, path, token, nil)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.status, path)
		assert.NotEmpty(t, resp.body["error"], path)
	}
}

func TestAnalyticsOverview(t *testing.T) {
	s := newTestServer(t, nil)
	link := testsupport.CreateTestLink(t, s.db, "ov1", "https://example.com/ov", 1)
	token := testsupport.GenerateToken(t, 1)

	at := time.Now().UTC().Add(-2 * time.Hour)
	testsupport.CreateTestClick(t, s.db, link.ID, at, testsupport.WithCountry("Brazil", "BR"))
	testsupport.CreateTestClick(t, s.db, link.ID, at, testsupport.WithUnique(false))

	resp := s.get(t, fmt.Sprintf("/api/analytics/%d/overview?days=7", link.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)

	assert.Equal(t, float64(link.ID), resp.body["link_id"])
	assert.Equal(t, float64(7), resp.body["period_days"])
	assert.Equal(t, float64(2), resp.body["total_clicks"])
	assert.Equal(t, float64(1), resp.body["unique_clicks"])
	assert.Equal(t, 50.0, resp.body["click_through_rate"])

	info := resp.body["link_info"].(map[string]any)
	assert.Equal(t, "ov1", info["short_code"])

	countries := resp.body["geography"].(map[string]any)["countries"].(map[string]any)
	assert.Equal(t, map[string]any{"count": float64(1), "percentage": 50.0}, countries["Brazil"])
}

func TestAnalyticsTimelineClampsHourly(t *testing.T) {
	s := newTestServer(t, nil)
	link := testsupport.CreateTestLink(t, s.db, "tl1", "https://example.com", 1)
	token := testsupport.GenerateToken(t, 1)
	testsupport.CreateTestClick(t, s.db, link.ID, time.Now().UTC().Add(-time.Hour))

	resp := s.get(t, fmt.Sprintf("/api/analytics/%d/timeline?days=30&granularity=hourly", link.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, float64(7), resp.body["period_days"])
	assert.Equal(t, "hourly", resp.body["granularity"])
	assert.Len(t, resp.body["timeline"], 1)

	resp = s.get(t, fmt.Sprintf("/api/analytics/%d/timeline?granularity=yearly", link.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "daily", resp.body["granularity"])
	assert.Equal(t, float64(30), resp.body["period_days"])
}

func TestAnalyticsClicksPagination(t *testing.T) {
	s := newTestServer(t, nil)
	link := testsupport.CreateTestLink(t, s.db, "cl1", "https://example.com", 1)
	token := testsupport.GenerateToken(t, 1)
	for i := 0; i < 3; i++ {
		testsupport.CreateTestClick(t, s.db, link.ID, time.Now().UTC().Add(-time.Duration(i+1)*time.Hour))
	}

	resp := s.get(t, fmt.Sprintf("/api/analytics/%d/clicks?limit=2&offset=0", link.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, float64(3), resp.body["total_clicks"])
	assert.Equal(t, float64(2), resp.body["returned_clicks"])
	assert.Len(t, resp.body["clicks"], 2)
}

func TestAnalyticsExport(t *testing.T) {
	s := newTestServer(t, nil)
	link := testsupport.CreateTestLink(t, s.db, "ex1", "https://example.com", 1)
	token := testsupport.GenerateToken(t, 1)
	testsupport.CreateTestClick(t, s.db, link.ID, time.Now().UTC().Add(-time.Hour), testsupport.WithBrowser("Firefox"))

	resp := s.get(t, fmt.Sprintf("/api/analytics/%d/export?format=csv", link.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "text/csv", resp.header("Content-Type"))
	assert.Equal(t, fmt.Sprintf("attachment; filename=link_%d_analytics.csv", link.ID), resp.header("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(resp.raw), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Date,Total Clicks,Unique Clicks"))
	assert.Contains(t, lines[1], ",1,1,Unknown,Desktop,Firefox,Unknown")

	resp = s.get(t, fmt.Sprintf("/api/analytics/%d/export", link.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "json", resp.body["export_format"])
	assert.Equal(t, float64(1), resp.body["analytics"].(map[string]any)["total_clicks"])
}

func TestAnalyticsDashboard(t *testing.T) {
	s := newTestServer(t, nil)
	token := testsupport.GenerateToken(t, 5)
	link := testsupport.CreateTestLink(t, s.db, "db1", "https://example.com", 5)
	testsupport.CreateTestLink(t, s.db, "db2", "https://example.org", 6)
	testsupport.CreateTestClick(t, s.db, link.ID, time.Now().UTC().Add(-time.Hour))

	resp := s.get(t, "/api/analytics/dashboard", token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, float64(5), resp.body["user_id"])
	assert.Equal(t, float64(7), resp.body["period_days"])
	assert.Equal(t, float64(1), resp.body["total_links"])
	assert.Len(t, resp.body["recent_activity"], 1)
}
