package analytics_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"linkpulse/internal/analytics"
	"linkpulse/internal/links"
	"linkpulse/internal/testsupport"
	"linkpulse/internal/timeframe"
	"linkpulse/internal/visitors"
)

var now = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func setupReporter(t *testing.T) (*gorm.DB, *analytics.Reporter) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	reporter := analytics.NewReporter(db, logger).WithClock(&timeframe.FixedTimeProvider{At: now})
	return db, reporter
}

func TestLinkAnalyticsEmpty(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "empty1", "https://example.com", 1)

	// Outside the window
	testsupport.CreateTestClick(t, db, link.ID, now.AddDate(0, 0, -31))

	result, err := reporter.LinkAnalytics(context.Background(), link.ID, 30)
	require.NoError(t, err)

	assert.Equal(t, link.ID, result.LinkID)
	assert.Equal(t, 30, result.PeriodDays)
	assert.Equal(t, 0, result.TotalClicks)
	assert.Equal(t, 0, result.UniqueClicks)
	assert.Equal(t, 0.0, result.ClickThroughRate)
	assert.Empty(t, result.Devices.Types)
	assert.Empty(t, result.TopReferrers)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{"types": map[string]any{}, "brands": map[string]any{}}, decoded["devices"])
	assert.Equal(t, map[string]any{}, decoded["top_referrers"])
	assert.Equal(t, map[string]any{"daily": map[string]any{}, "hourly": map[string]any{}}, decoded["timeline"])
	assert.NotContains(t, decoded, "link_info")
}

func TestLinkAnalytics(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "full01", "https://example.com", 1)
	other := testsupport.CreateTestLink(t, db, "other1", "https://example.org", 1)

	day := now.AddDate(0, 0, -2)
	testsupport.CreateTestClick(t, db, link.ID, day,
		testsupport.WithDevice("Mobile", "Apple"), testsupport.WithBrowser("Safari"), testsupport.WithOS("iOS"),
		testsupport.WithCountry("United States", "US"), testsupport.WithCity("Austin"),
		testsupport.WithReferer("https://www.google.com/search?q=x"))
	testsupport.CreateTestClick(t, db, link.ID, day.Add(time.Hour),
		testsupport.WithDevice("Mobile", "Samsung"), testsupport.WithBrowser("Chrome"), testsupport.WithOS("Android"),
		testsupport.WithCountry("Germany", "DE"), testsupport.WithUnique(false))
	testsupport.CreateTestClick(t, db, link.ID, day.AddDate(0, 0, 1),
		testsupport.WithBrowser("Chrome"), testsupport.WithOS("Windows"),
		testsupport.WithCountry("United States", "US"), testsupport.WithCity("Austin"))
	// Other link and outside the window
	testsupport.CreateTestClick(t, db, other.ID, day)
	testsupport.CreateTestClick(t, db, link.ID, now.AddDate(0, 0, -10))

	result, err := reporter.LinkAnalytics(context.Background(), link.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalClicks)
	assert.Equal(t, 2, result.UniqueClicks)
	assert.Equal(t, 66.67, result.ClickThroughRate)

	assert.Equal(t, analytics.Entry{Label: "Mobile", Count: 2, Percentage: 66.7}, result.Devices.Types[0])
	assert.Equal(t, analytics.Entry{Label: "Desktop", Count: 1, Percentage: 33.3}, result.Devices.Types[1])
	assert.Equal(t, "Chrome", result.Browsers.Browsers[0].Label)
	assert.Equal(t, "United States", result.Geography.Countries[0].Label)
	assert.Equal(t, analytics.Entry{Label: "Austin, United States", Count: 2, Percentage: 66.7}, result.Geography.Cities[0])

	assert.Equal(t, "Direct", result.TopReferrers[0].Label)
	assert.Equal(t, 2, result.TopReferrers[0].Count)
	google, ok := result.ReferrerSources.Get("Google")
	require.True(t, ok)
	assert.Equal(t, 1, google.Count)

	require.Len(t, result.Timeline.Daily, 2)
	assert.Equal(t, analytics.Bucket{Key: "2024-03-18", Total: 2, Unique: 1}, result.Timeline.Daily[0])
	assert.Equal(t, analytics.Bucket{Key: "2024-03-19", Total: 1, Unique: 1}, result.Timeline.Daily[1])
	assert.Equal(t, analytics.HourOfDay{{Hour: 12, Count: 2}, {Hour: 13, Count: 1}}, result.Timeline.Hourly)
}

func TestGetLinkAnalyticsUsesSystemClock(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	link := testsupport.CreateTestLink(t, db, "clock1", "https://example.com", 1)
	testsupport.CreateTestClick(t, db, link.ID, time.Now().UTC().Add(-time.Hour))

	result, err := analytics.GetLinkAnalytics(db, logger, link.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalClicks)
	assert.Equal(t, 100.0, result.ClickThroughRate)
}

func TestOverviewAddsLinkInfo(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "info01", "https://example.com/info", 1)
	link.ClickCount = 9
	link.UniqueClicks = 4

	result, err := reporter.Overview(context.Background(), link, 30)
	require.NoError(t, err)
	require.NotNil(t, result.LinkInfo)
	assert.Equal(t, "info01", result.LinkInfo.ShortCode)
	assert.Equal(t, int64(9), result.LinkInfo.TotalClicksLifetime)
	assert.Equal(t, int64(4), result.LinkInfo.UniqueClicksLifetime)
}

func TestDevicesReport(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "dev001", "https://example.com", 1)

	start := now.AddDate(0, 0, -5)
	for i := 0; i < 55; i++ {
		testsupport.CreateTestClick(t, db, link.ID, start.Add(time.Duration(i)*time.Minute),
			testsupport.WithDevice("Mobile", "Apple"))
	}

	report, err := reporter.Devices(link.ID, 30)
	require.NoError(t, err)

	assert.Equal(t, 55, report.TotalClicks)
	assert.Equal(t, 100.0, report.DeviceBreakdown.Types[0].Percentage)
	require.Len(t, report.DetailedDevices, analytics.DetailedClickLimit)
	assert.True(t, report.DetailedDevices[0].ClickedAt.Equal(start.Add(5*time.Minute)))
	assert.True(t, report.DetailedDevices[49].ClickedAt.Equal(start.Add(54*time.Minute)))
	assert.Equal(t, "Apple (Mobile)", report.DetailedDevices[0].DeviceInfo)
	assert.Equal(t, "Unknown Browser", report.DetailedDevices[0].BrowserInfo)
}

func TestDevicesReportEmpty(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "dev002", "https://example.com", 1)

	report, err := reporter.Devices(link.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalClicks)
	assert.NotNil(t, report.DetailedDevices)
	assert.Empty(t, report.DetailedDevices)
}

func TestGeographyReport(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "geo001", "https://example.com", 1)

	at := now.AddDate(0, 0, -1)
	testsupport.CreateTestClick(t, db, link.ID, at, testsupport.WithCountry("Japan", "JP"),
		testsupport.WithCity("Tokyo"), testsupport.WithTimezone("Asia/Tokyo"), testsupport.WithISP("NTT"))
	testsupport.CreateTestClick(t, db, link.ID, at, testsupport.WithCountry("Japan", "JP"),
		testsupport.WithTimezone("Asia/Tokyo"))
	testsupport.CreateTestClick(t, db, link.ID, at)

	report, err := reporter.Geography(link.ID, 30)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalClicks)
	assert.Equal(t, analytics.Entry{Label: "Japan", Count: 2, Percentage: 66.7}, report.GeographicBreakdown.Countries[0])
	assert.Equal(t, analytics.Breakdown{{Label: "Tokyo, Japan", Count: 1, Percentage: 33.3}}, report.GeographicBreakdown.Cities)
	assert.Equal(t, analytics.Breakdown{{Label: "Asia/Tokyo", Count: 2, Percentage: 66.7}}, report.TimezoneBreakdown)
	assert.Equal(t, analytics.Breakdown{{Label: "NTT", Count: 1, Percentage: 33.3}}, report.ISPBreakdown)
}

func TestTimelineReportClampsHourly(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "time01", "https://example.com", 1)

	testsupport.CreateTestClick(t, db, link.ID, now.Add(-90*time.Minute))
	testsupport.CreateTestClick(t, db, link.ID, now.Add(-80*time.Minute), testsupport.WithUnique(false))
	testsupport.CreateTestClick(t, db, link.ID, now.AddDate(0, 0, -10))

	report, err := reporter.Timeline(link.ID, 30, timeframe.GranularityHourly)
	require.NoError(t, err)

	assert.Equal(t, 7, report.PeriodDays)
	assert.Equal(t, timeframe.GranularityHourly, report.Granularity)
	assert.Equal(t, 2, report.TotalClicks)
	assert.Equal(t, analytics.Timeline{{Key: "2024-03-20 10:00", Total: 2, Unique: 1}}, report.Timeline)

	daily, err := reporter.Timeline(link.ID, 30, timeframe.ParseGranularity("bogus"))
	require.NoError(t, err)
	assert.Equal(t, 30, daily.PeriodDays)
	assert.Equal(t, timeframe.GranularityDaily, daily.Granularity)
	assert.Equal(t, 3, daily.TotalClicks)
	assert.Equal(t, "2024-03-10", daily.Timeline[0].Key)
}

func TestListClicks(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "list01", "https://example.com", 1)

	for i := 0; i < 5; i++ {
		testsupport.CreateTestClick(t, db, link.ID, now.Add(-time.Duration(i+1)*time.Hour),
			testsupport.WithReferer(fmt.Sprintf("https://ref%d.example", i)))
	}
	// Outside any window but still listed
	testsupport.CreateTestClick(t, db, link.ID, now.AddDate(-1, 0, 0), testsupport.WithSession("0123456789abcdef"))

	page, err := reporter.ListClicks(link.ID, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(6), page.TotalClicks)
	assert.Equal(t, 2, page.ReturnedClicks)
	assert.Equal(t, 1, page.Offset)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, "https://ref1.example", page.Clicks[0].Referer)
	assert.Equal(t, "https://ref2.example", page.Clicks[1].Referer)

	last, err := reporter.ListClicks(link.ID, 10, 5)
	require.NoError(t, err)
	require.Len(t, last.Clicks, 1)
	assert.Equal(t, "Direct", last.Clicks[0].Referer)
	assert.Equal(t, "Unknown Location", last.Clicks[0].Location)
	assert.Equal(t, visitors.Alias("0123456789abcdef"), last.Clicks[0].Visitor)
	assert.Equal(t, "Anonymous", page.Clicks[0].Visitor)
}

func TestExportCSV(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "csv001", "https://example.com", 1)

	testsupport.CreateTestClick(t, db, link.ID, now.Add(-time.Hour),
		testsupport.WithCountry("Spain", "ES"), testsupport.WithBrowser("Firefox"), testsupport.WithOS("Linux"))
	testsupport.CreateTestClick(t, db, link.ID, now.Add(-30*time.Minute), testsupport.WithUnique(false))

	data, err := reporter.ExportCSV(context.Background(), link, 30)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Date", "Total Clicks", "Unique Clicks", "Top Country", "Top Device Type", "Top Browser", "Top OS"}, rows[0])
	assert.Equal(t, []string{"2024-03-20", "2", "1", "Spain", "Desktop", "Firefox", "Linux"}, rows[1])
}

func TestExportCSVWithoutClicks(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "csv002", "https://example.com", 1)

	data, err := reporter.ExportCSV(context.Background(), link, 30)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-20", "0", "0", "N/A", "N/A", "N/A", "N/A"}, rows[1])
}

func TestExportJSON(t *testing.T) {
	db, reporter := setupReporter(t)
	link := testsupport.CreateTestLink(t, db, "json01", "https://example.com/j", 1)
	testsupport.CreateTestClick(t, db, link.ID, now.Add(-time.Hour))

	export, err := reporter.ExportJSON(context.Background(), link, 30)
	require.NoError(t, err)

	assert.Equal(t, analytics.ExportJSON, export.ExportFormat)
	assert.True(t, export.ExportedAt.Equal(now))
	assert.Equal(t, "json01", export.LinkInfo.ShortCode)
	assert.Equal(t, 1, export.Analytics.TotalClicks)
}

func setCounters(t *testing.T, db *gorm.DB, linkID uint, total, unique int64) {
	t.Helper()
	require.NoError(t, db.Model(&links.Link{}).Where("id = ?", linkID).
		Updates(map[string]any{"click_count": total, "unique_clicks": unique}).Error)
}

func TestDashboard(t *testing.T) {
	db, reporter := setupReporter(t)

	long := "https://example.com/" + strings.Repeat("x", 60)
	var owned []*links.Link
	for i := 0; i < 6; i++ {
		url := fmt.Sprintf("https://example.com/%d", i)
		if i == 5 {
			url = long
		}
		link := testsupport.CreateTestLink(t, db, fmt.Sprintf("dash%d", i), url, 7)
		setCounters(t, db, link.ID, int64(i*10), int64(i*5))
		owned = append(owned, link)
	}
	foreign := testsupport.CreateTestLink(t, db, "foreign", "https://example.net", 8)
	setCounters(t, db, foreign.ID, 1000, 1000)

	for i := 0; i < 25; i++ {
		testsupport.CreateTestClick(t, db, owned[i%6].ID, now.Add(-time.Duration(i+1)*time.Minute),
			testsupport.WithBrowser("Chrome"))
	}
	testsupport.CreateTestClick(t, db, foreign.ID, now.Add(-time.Second))
	testsupport.CreateTestClick(t, db, owned[0].ID, now.AddDate(0, 0, -8))

	dashboard, err := reporter.Dashboard(7, 7)
	require.NoError(t, err)

	assert.Equal(t, uint(7), dashboard.UserID)
	assert.Equal(t, 7, dashboard.PeriodDays)
	assert.Equal(t, 6, dashboard.TotalLinks)
	assert.Equal(t, int64(150), dashboard.TotalClicks)
	assert.Equal(t, int64(75), dashboard.TotalUniqueClicks)
	assert.Equal(t, 25.0, dashboard.AverageClicksPerLink)

	require.Len(t, dashboard.TopPerformingLinks, analytics.TopLinksLimit)
	assert.Equal(t, "dash5", dashboard.TopPerformingLinks[0].ShortCode)
	assert.Equal(t, long[:50]+"...", dashboard.TopPerformingLinks[0].URL)
	assert.Equal(t, "dash1", dashboard.TopPerformingLinks[4].ShortCode)

	require.Len(t, dashboard.RecentActivity, analytics.RecentActivityLimit)
	assert.Equal(t, "dash0", dashboard.RecentActivity[0].LinkShortCode)
	assert.Equal(t, "Desktop", dashboard.RecentActivity[0].Device)
	require.NotNil(t, dashboard.RecentActivity[0].Browser)
	assert.Equal(t, "Chrome", *dashboard.RecentActivity[0].Browser)
}

func TestDashboardWithoutLinks(t *testing.T) {
	_, reporter := setupReporter(t)

	dashboard, err := reporter.Dashboard(42, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, dashboard.TotalLinks)
	assert.Equal(t, 0.0, dashboard.AverageClicksPerLink)
	assert.Empty(t, dashboard.TopPerformingLinks)
	assert.Empty(t, dashboard.RecentActivity)
}
