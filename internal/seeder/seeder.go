package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/karloscodes/cartridge"

	"linkpulse/internal/clicks"
	"linkpulse/internal/geo"
	"linkpulse/internal/links"
)

// Seeder fills a link with synthetic clicks pushed through the click
// recorder, so seeded data goes through the same classification and
// uniqueness rules as live traffic.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	ClickCount int
	Days       int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, clickCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		ClickCount: clickCount,
		Days:       30,
	}
}

// SeedLink records ClickCount clicks on the link with code, creating the
// link first when it does not exist. It returns the number of clicks stored.
func (s *Seeder) SeedLink(ctx context.Context, code, url string, userID uint) (int, error) {
	start := time.Now()
	db := s.DBManager.GetConnection()

	link, err := links.GetByShortCode(db, code)
	if errors.Is(err, links.ErrLinkNotFound) {
		link = &links.Link{ShortCode: code, URL: url}
		if userID != 0 {
			link.UserID = &userID
		}
		if err := links.CreateLink(db, s.Logger, link); err != nil {
			return 0, fmt.Errorf("failed to create link %s: %w", code, err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to find link %s: %w", code, err)
	}

	s.Logger.Info("Seeding link...",
		slog.String("short_code", code),
		slog.Int("clickCount", s.ClickCount))

	recorder := clicks.NewRecorder(s.DBManager, sampleLocator{}, s.Logger)
	ipPool := generateIPPool(100)
	userAgents := getUserAgents()
	referrers := getReferrers()

	// Spread clicks oldest first so the 24h uniqueness window behaves as it
	// would for live traffic.
	window := time.Duration(s.Days) * 24 * time.Hour
	now := time.Now().UTC()
	step := window / time.Duration(max(s.ClickCount, 1))

	stored := 0
	for i := 0; i < s.ClickCount; i++ {
		if ctx.Err() != nil {
			return stored, ctx.Err()
		}

		headers := http.Header{}
		headers.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
		if ref := referrers[rand.IntN(len(referrers))]; ref != "" {
			headers.Set("Referer", ref)
		}
		headers.Set("X-Forwarded-For", ipPool[rand.IntN(len(ipPool))])

		at := now.Add(-window + time.Duration(i)*step)
		req := clicks.RequestContext{Headers: headers, RemoteAddr: "127.0.0.1:0", Timestamp: at}
		if _, ok := recorder.RecordClick(ctx, link, req); ok {
			stored++
		}
	}

	s.Logger.Info("Link seeding completed",
		slog.String("short_code", code),
		slog.Int("stored", stored),
		slog.Duration("elapsed", time.Since(start)))
	return stored, nil
}

type sampleCity struct {
	country, code, city, timezone, isp string
}

var sampleCities = []sampleCity{
	{"United States", "US", "New York", "America/New_York", "Comcast"},
	{"United States", "US", "San Francisco", "America/Los_Angeles", "AT&T"},
	{"Germany", "DE", "Berlin", "Europe/Berlin", "Deutsche Telekom"},
	{"Spain", "ES", "Madrid", "Europe/Madrid", "Telefonica"},
	{"Brazil", "BR", "Sao Paulo", "America/Sao_Paulo", "Vivo"},
	{"Japan", "JP", "Tokyo", "Asia/Tokyo", "NTT"},
	{"India", "IN", "Bengaluru", "Asia/Kolkata", "Airtel"},
}

// sampleLocator assigns a random city instead of calling out to a provider.
type sampleLocator struct{}

func (sampleLocator) Lookup(_ context.Context, ip string) geo.Location {
	if geo.IsLocal(ip) {
		return geo.LocalLocation()
	}
	c := sampleCities[rand.IntN(len(sampleCities))]
	return geo.Location{
		Country:     &c.country,
		CountryCode: &c.code,
		City:        &c.city,
		Timezone:    &c.timezone,
		ISP:         &c.isp,
	}
}

func generateIPPool(count int) []string {
	ipPool := make(map[string]bool)
	var ips []string
	for len(ips) < count {
		// Public-looking first octets only; 10, 127 and 192 are skipped.
		first := []int{23, 45, 81, 101, 151, 176, 203}[rand.IntN(7)]
		ip := fmt.Sprintf("%d.%d.%d.%d", first, rand.IntN(256), rand.IntN(256), rand.IntN(254)+1)
		if !ipPool[ip] {
			ipPool[ip] = true
			ips = append(ips, ip)
		}
	}
	return ips
}

// getUserAgents returns a list of common user agent strings
func getUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
		"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
		"curl/7.81.0",
	}
}

// getReferrers returns a list of common referrers
func getReferrers() []string {
	return []string{
		"", // Direct visit
		"https://www.google.com/search?q=linkpulse",
		"https://bing.com",
		"https://duckduckgo.com",
		"https://facebook.com",
		"https://t.co/abc123",
		"https://www.linkedin.com/feed",
		"https://github.com",
		"https://news.ycombinator.com/item?id=1",
	}
}
