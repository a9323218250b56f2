package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"linkpulse/internal/clicks"
	"linkpulse/internal/links"
	"linkpulse/internal/pkg/async"
	"linkpulse/internal/timeframe"
	"linkpulse/internal/visitors"
)

// DetailedClickLimit is how many of the newest clicks the device report lists.
const DetailedClickLimit = 50

// Reporter builds analytics reports from stored click events.
type Reporter struct {
	db     *gorm.DB
	logger *slog.Logger
	clock  timeframe.TimeProvider
	pool   *async.Pool
}

// NewReporter returns a reporter reading from db on the system clock.
func NewReporter(db *gorm.DB, logger *slog.Logger) *Reporter {
	return &Reporter{
		db:     db,
		logger: logger,
		clock:  &timeframe.DefaultTimeProvider{},
		pool:   async.NewPool(4),
	}
}

// WithClock replaces the time source used for report windows.
func (r *Reporter) WithClock(clock timeframe.TimeProvider) *Reporter {
	r.clock = clock
	return r
}

func (r *Reporter) now() time.Time {
	return r.clock.Now(time.UTC)
}

func (r *Reporter) eventsInWindow(linkID uint, days int) ([]clicks.ClickEvent, error) {
	window := timeframe.LastDays(r.clock, days)
	events, err := clicks.ForLinkSince(r.db, linkID, window.From)
	if err != nil {
		r.logger.Error("Failed to load clicks for analytics",
			slog.Uint64("link_id", uint64(linkID)),
			slog.Int("days", days),
			slog.Any("error", err))
		return nil, err
	}
	return events, nil
}

// LinkInfo is the link metadata attached to an overview.
type LinkInfo struct {
	ID                   uint      `json:"id"`
	URL                  string    `json:"url"`
	ShortCode            string    `json:"short_code"`
	CreatedAt            time.Time `json:"created_at"`
	TotalClicksLifetime  int64     `json:"total_clicks_lifetime"`
	UniqueClicksLifetime int64     `json:"unique_clicks_lifetime"`
}

// LinkAnalytics is the full breakdown of a link's clicks over a window.
type LinkAnalytics struct {
	LinkID           uint           `json:"link_id"`
	PeriodDays       int            `json:"period_days"`
	TotalClicks      int            `json:"total_clicks"`
	UniqueClicks     int            `json:"unique_clicks"`
	ClickThroughRate float64        `json:"click_through_rate"`
	Devices          DeviceStats    `json:"devices"`
	Geography        GeographyStats `json:"geography"`
	Browsers         BrowserStats   `json:"browsers"`
	Timeline         TimeStats      `json:"timeline"`
	TopReferrers     Breakdown      `json:"top_referrers"`
	ReferrerSources  Breakdown      `json:"referrer_sources"`
	LinkInfo         *LinkInfo      `json:"link_info,omitempty"`
}

// EmptyAnalytics is the shape returned for a window without clicks.
func EmptyAnalytics(linkID uint, days int) *LinkAnalytics {
	return &LinkAnalytics{
		LinkID:          linkID,
		PeriodDays:      days,
		Devices:         DeviceStats{Types: Breakdown{}, Brands: Breakdown{}},
		Geography:       GeographyStats{Countries: Breakdown{}, Cities: Breakdown{}},
		Browsers:        BrowserStats{Browsers: Breakdown{}, OperatingSystems: Breakdown{}},
		Timeline:        TimeStats{Daily: Timeline{}, Hourly: HourOfDay{}},
		TopReferrers:    Breakdown{},
		ReferrerSources: Breakdown{},
	}
}

// GetLinkAnalytics computes the full breakdown for a link over the last days.
func GetLinkAnalytics(db *gorm.DB, logger *slog.Logger, linkID uint, days int) (*LinkAnalytics, error) {
	return NewReporter(db, logger).LinkAnalytics(context.Background(), linkID, days)
}

// LinkAnalytics computes the full breakdown for a link over the last days.
// Sections are computed in parallel over the fetched events.
func (r *Reporter) LinkAnalytics(ctx context.Context, linkID uint, days int) (*LinkAnalytics, error) {
	events, err := r.eventsInWindow(linkID, days)
	if err != nil {
		return nil, err
	}

	result := EmptyAnalytics(linkID, days)
	if len(events) == 0 {
		return result, nil
	}

	result.TotalClicks = len(events)
	for i := range events {
		if events[i].IsUnique {
			result.UniqueClicks++
		}
	}
	result.ClickThroughRate = Rate(result.UniqueClicks, result.TotalClicks)

	tasks := []async.Task{
		{Name: "devices", Execute: func() (any, error) { return DeviceBreakdown(events), nil }},
		{Name: "geography", Execute: func() (any, error) { return GeographyBreakdown(events), nil }},
		{Name: "browsers", Execute: func() (any, error) { return BrowserBreakdown(events), nil }},
		{Name: "timeline", Execute: func() (any, error) {
			return TimeStats{
				Daily:  BuildTimeline(events, timeframe.GranularityDaily),
				Hourly: BuildHourOfDay(events),
			}, nil
		}},
		{Name: "referrers", Execute: func() (any, error) { return ReferrerBreakdown(events), nil }},
		{Name: "sources", Execute: func() (any, error) { return ReferrerSources(events), nil }},
	}

	results := r.pool.Execute(ctx, tasks)
	if len(results) != len(tasks) {
		return nil, fmt.Errorf("analytics for link %d interrupted: %w", linkID, ctx.Err())
	}
	for name, res := range results {
		if res.Err != nil {
			return nil, fmt.Errorf("failed to compute %s for link %d: %w", name, linkID, res.Err)
		}
	}

	result.Devices = results["devices"].Data.(DeviceStats)
	result.Geography = results["geography"].Data.(GeographyStats)
	result.Browsers = results["browsers"].Data.(BrowserStats)
	result.Timeline = results["timeline"].Data.(TimeStats)
	result.TopReferrers = results["referrers"].Data.(Breakdown)
	result.ReferrerSources = results["sources"].Data.(Breakdown)

	return result, nil
}

// Overview is LinkAnalytics with the link's lifetime counters attached.
func (r *Reporter) Overview(ctx context.Context, link *links.Link, days int) (*LinkAnalytics, error) {
	result, err := r.LinkAnalytics(ctx, link.ID, days)
	if err != nil {
		return nil, err
	}
	result.LinkInfo = &LinkInfo{
		ID:                   link.ID,
		URL:                  link.URL,
		ShortCode:            link.ShortCode,
		CreatedAt:            link.CreatedAt,
		TotalClicksLifetime:  link.ClickCount,
		UniqueClicksLifetime: link.UniqueClicks,
	}
	return result, nil
}

// DetailedClick is one row of the device report's recent click list.
type DetailedClick struct {
	DeviceInfo  string    `json:"device_info"`
	BrowserInfo string    `json:"browser_info"`
	OSInfo      string    `json:"os_info"`
	ClickedAt   time.Time `json:"clicked_at"`
	IsUnique    bool      `json:"is_unique"`
}

// DeviceReport is the devices-only view of a link.
type DeviceReport struct {
	LinkID           uint            `json:"link_id"`
	PeriodDays       int             `json:"period_days"`
	TotalClicks      int             `json:"total_clicks"`
	DeviceBreakdown  DeviceStats     `json:"device_breakdown"`
	BrowserBreakdown BrowserStats    `json:"browser_breakdown"`
	DetailedDevices  []DetailedClick `json:"detailed_devices"`
}

// Devices builds the device report. The detailed list holds the newest
// clicks of the window in chronological order.
func (r *Reporter) Devices(linkID uint, days int) (*DeviceReport, error) {
	events, err := r.eventsInWindow(linkID, days)
	if err != nil {
		return nil, err
	}

	report := &DeviceReport{
		LinkID:           linkID,
		PeriodDays:       days,
		TotalClicks:      len(events),
		DeviceBreakdown:  DeviceBreakdown(events),
		BrowserBreakdown: BrowserBreakdown(events),
		DetailedDevices:  []DetailedClick{},
	}

	recent := events
	if len(recent) > DetailedClickLimit {
		recent = recent[len(recent)-DetailedClickLimit:]
	}
	for i := range recent {
		e := &recent[i]
		report.DetailedDevices = append(report.DetailedDevices, DetailedClick{
			DeviceInfo:  e.DeviceInfo(),
			BrowserInfo: e.BrowserInfo(),
			OSInfo:      e.OSInfo(),
			ClickedAt:   e.ClickedAt,
			IsUnique:    e.IsUnique,
		})
	}
	return report, nil
}

// GeographyReport is the geography-only view of a link.
type GeographyReport struct {
	LinkID              uint           `json:"link_id"`
	PeriodDays          int            `json:"period_days"`
	TotalClicks         int            `json:"total_clicks"`
	GeographicBreakdown GeographyStats `json:"geographic_breakdown"`
	TimezoneBreakdown   Breakdown      `json:"timezone_breakdown"`
	ISPBreakdown        Breakdown      `json:"isp_breakdown"`
}

// Geography builds the geography report.
func (r *Reporter) Geography(linkID uint, days int) (*GeographyReport, error) {
	events, err := r.eventsInWindow(linkID, days)
	if err != nil {
		return nil, err
	}

	return &GeographyReport{
		LinkID:              linkID,
		PeriodDays:          days,
		TotalClicks:         len(events),
		GeographicBreakdown: GeographyBreakdown(events),
		TimezoneBreakdown:   TimezoneBreakdown(events),
		ISPBreakdown:        ISPBreakdown(events),
	}, nil
}

// TimelineReport is a link's clicks bucketed at one granularity.
type TimelineReport struct {
	LinkID      uint                  `json:"link_id"`
	PeriodDays  int                   `json:"period_days"`
	Granularity timeframe.Granularity `json:"granularity"`
	TotalClicks int                   `json:"total_clicks"`
	Timeline    Timeline              `json:"timeline"`
}

// Timeline builds the timeline report. Hourly windows are capped at
// timeframe.MaxHourlyDays and the reported period reflects the cap.
func (r *Reporter) Timeline(linkID uint, days int, granularity timeframe.Granularity) (*TimelineReport, error) {
	days = granularity.ClampDays(days)

	events, err := r.eventsInWindow(linkID, days)
	if err != nil {
		return nil, err
	}

	return &TimelineReport{
		LinkID:      linkID,
		PeriodDays:  days,
		Granularity: granularity,
		TotalClicks: len(events),
		Timeline:    BuildTimeline(events, granularity),
	}, nil
}

// ClickRow is one raw click in a paginated listing.
type ClickRow struct {
	ID          uint      `json:"id"`
	ClickedAt   time.Time `json:"clicked_at"`
	Location    string    `json:"location"`
	Device      string    `json:"device"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	Referer     string    `json:"referer"`
	Visitor     string    `json:"visitor"`
	IsUnique    bool      `json:"is_unique"`
	IsBot       bool      `json:"is_bot"`
	CountryCode *string   `json:"country_code"`
	Timezone    *string   `json:"timezone"`
}

// ClickPage is a page of a link's raw clicks, newest first.
type ClickPage struct {
	LinkID         uint       `json:"link_id"`
	TotalClicks    int64      `json:"total_clicks"`
	ReturnedClicks int        `json:"returned_clicks"`
	Offset         int        `json:"offset"`
	Limit          int        `json:"limit"`
	Clicks         []ClickRow `json:"clicks"`
}

// ListClicks pages through every stored click of the link.
func (r *Reporter) ListClicks(linkID uint, limit, offset int) (*ClickPage, error) {
	events, total, err := clicks.ListForLink(r.db, linkID, limit, offset)
	if err != nil {
		return nil, err
	}

	page := &ClickPage{
		LinkID:         linkID,
		TotalClicks:    total,
		ReturnedClicks: len(events),
		Offset:         offset,
		Limit:          limit,
		Clicks:         make([]ClickRow, 0, len(events)),
	}
	for i := range events {
		e := &events[i]
		referer := "Direct"
		if e.Referer != nil && *e.Referer != "" {
			referer = *e.Referer
		}
		session := ""
		if e.SessionID != nil {
			session = *e.SessionID
		}
		page.Clicks = append(page.Clicks, ClickRow{
			ID:          e.ID,
			ClickedAt:   e.ClickedAt,
			Location:    e.LocationInfo(),
			Device:      e.DeviceInfo(),
			Browser:     e.BrowserInfo(),
			OS:          e.OSInfo(),
			Referer:     referer,
			Visitor:     visitors.Alias(session),
			IsUnique:    e.IsUnique,
			IsBot:       e.IsBot,
			CountryCode: e.CountryCode,
			Timezone:    e.Timezone,
		})
	}
	return page, nil
}
