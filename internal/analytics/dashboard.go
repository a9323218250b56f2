package analytics

import (
	"sort"
	"time"

	"linkpulse/internal/clicks"
	"linkpulse/internal/links"
	"linkpulse/internal/timeframe"
)

const (
	// TopLinksLimit is how many links the dashboard ranks.
	TopLinksLimit = 5
	// RecentActivityLimit is how many recent clicks the dashboard lists.
	RecentActivityLimit = 20
	// MaxDisplayURL is the URL length shown before truncation.
	MaxDisplayURL = 50
)

// TopLink is one entry of the dashboard's top performing links.
type TopLink struct {
	ID           uint      `json:"id"`
	ShortCode    string    `json:"short_code"`
	URL          string    `json:"url"`
	TotalClicks  int64     `json:"total_clicks"`
	UniqueClicks int64     `json:"unique_clicks"`
	CreatedAt    time.Time `json:"created_at"`
}

// Activity is one recent click on the dashboard.
type Activity struct {
	LinkShortCode string    `json:"link_short_code"`
	ClickedAt     time.Time `json:"clicked_at"`
	Location      string    `json:"location"`
	Device        string    `json:"device"`
	Browser       *string   `json:"browser"`
}

// Dashboard summarizes every link a user owns.
type Dashboard struct {
	UserID               uint       `json:"user_id"`
	PeriodDays           int        `json:"period_days"`
	TotalLinks           int        `json:"total_links"`
	TotalClicks          int64      `json:"total_clicks"`
	TotalUniqueClicks    int64      `json:"total_unique_clicks"`
	AverageClicksPerLink float64    `json:"average_clicks_per_link"`
	TopPerformingLinks   []TopLink  `json:"top_performing_links"`
	RecentActivity       []Activity `json:"recent_activity"`
}

// TruncateURL shortens long URLs for display.
func TruncateURL(url string) string {
	runes := []rune(url)
	if len(runes) <= MaxDisplayURL {
		return url
	}
	return string(runes[:MaxDisplayURL]) + "..."
}

// Dashboard builds the user's summary. Totals come from the link
// counters; recent activity covers the last days.
func (r *Reporter) Dashboard(userID uint, days int) (*Dashboard, error) {
	owned, err := links.ListForOwner(r.db, userID)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		UserID:             userID,
		PeriodDays:         days,
		TotalLinks:         len(owned),
		TopPerformingLinks: []TopLink{},
		RecentActivity:     []Activity{},
	}
	if len(owned) == 0 {
		return dashboard, nil
	}

	for _, link := range owned {
		dashboard.TotalClicks += link.ClickCount
		dashboard.TotalUniqueClicks += link.UniqueClicks
	}
	dashboard.AverageClicksPerLink = round(float64(dashboard.TotalClicks)/float64(len(owned)), 1)

	ranked := make([]links.Link, len(owned))
	copy(ranked, owned)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ClickCount != ranked[j].ClickCount {
			return ranked[i].ClickCount > ranked[j].ClickCount
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > TopLinksLimit {
		ranked = ranked[:TopLinksLimit]
	}
	for _, link := range ranked {
		dashboard.TopPerformingLinks = append(dashboard.TopPerformingLinks, TopLink{
			ID:           link.ID,
			ShortCode:    link.ShortCode,
			URL:          TruncateURL(link.URL),
			TotalClicks:  link.ClickCount,
			UniqueClicks: link.UniqueClicks,
			CreatedAt:    link.CreatedAt,
		})
	}

	window := timeframe.LastDays(r.clock, days)
	recent, err := clicks.RecentForOwner(r.db, userID, window.From, RecentActivityLimit)
	if err != nil {
		return nil, err
	}
	for i := range recent {
		e := &recent[i]
		code := ""
		if e.Link != nil {
			code = e.Link.ShortCode
		}
		dashboard.RecentActivity = append(dashboard.RecentActivity, Activity{
			LinkShortCode: code,
			ClickedAt:     e.ClickedAt,
			Location:      e.LocationInfo(),
			Device:        e.DeviceType,
			Browser:       e.BrowserName,
		})
	}
	return dashboard, nil
}
