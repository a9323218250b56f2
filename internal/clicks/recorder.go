package clicks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linkpulse/internal/devices"
	"linkpulse/internal/geo"
	"linkpulse/internal/links"
	"linkpulse/internal/visitors"
)

// Locator resolves a client IP to a location. *geo.Resolver satisfies it.
type Locator interface {
	Lookup(ctx context.Context, ip string) geo.Location
}

// Recorder turns redirect requests into stored click events.
type Recorder struct {
	dbManager cartridge.DBManager
	locator   Locator
	logger    *slog.Logger
}

// NewRecorder creates a recorder writing through dbManager.
func NewRecorder(dbManager cartridge.DBManager, locator Locator, logger *slog.Logger) *Recorder {
	return &Recorder{dbManager: dbManager, locator: locator, logger: logger}
}

// RecordClick classifies, geolocates and stores one click, then bumps the
// link counters in the same transaction. On any failure nothing is written
// and ok is false; the caller is expected to fall back to
// links.RecordFallbackClick.
func (r *Recorder) RecordClick(ctx context.Context, link *links.Link, req RequestContext) (event *ClickEvent, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			var linkID uint
			if link != nil {
				linkID = link.ID
			}
			r.logger.Error("Panic while recording click",
				slog.Uint64("link_id", uint64(linkID)),
				slog.Any("panic", rec))
			event, ok = nil, false
		}
	}()

	event, err := r.record(ctx, link, req)
	if err != nil {
		r.logger.Error("Failed to record click",
			slog.Uint64("link_id", uint64(link.ID)),
			slog.Any("error", err))
		return nil, false
	}

	r.logger.Info("Click tracked",
		slog.Uint64("link_id", uint64(link.ID)),
		slog.String("device_type", event.DeviceType),
		slog.String("browser", deref(event.BrowserName, "Unknown")),
		slog.String("country", deref(event.Country, "Unknown")),
		slog.Bool("unique", event.IsUnique))
	return event, true
}

func (r *Recorder) record(ctx context.Context, link *links.Link, req RequestContext) (*ClickEvent, error) {
	at := req.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	ip := ExtractClientIP(req)
	userAgent := req.UserAgent()

	info := devices.Classify(r.logger, userAgent)
	location := r.locator.Lookup(ctx, ip)
	fingerprint := visitors.Fingerprint(ip, userAgent)

	event := &ClickEvent{
		LinkID:    link.ID,
		IPAddress: geo.MaskIP(ip),
		UserAgent: userAgent,
		Referer:   optional(req.Referer()),

		Country:     location.Country,
		CountryCode: location.CountryCode,
		City:        location.City,
		Region:      location.Region,
		Latitude:    location.Latitude,
		Longitude:   location.Longitude,
		Timezone:    location.Timezone,
		ISP:         location.ISP,

		BrowserName:    info.BrowserName,
		BrowserVersion: info.BrowserVersion,
		BrowserFamily:  info.BrowserFamily,
		OSName:         info.OSName,
		OSVersion:      info.OSVersion,
		OSFamily:       info.OSFamily,

		DeviceType:       info.DeviceType,
		DeviceBrand:      info.DeviceBrand,
		DeviceModel:      info.DeviceModel,
		DeviceFamily:     info.DeviceFamily,
		ScreenResolution: info.ScreenResolution,

		IsBot:       info.IsBot,
		SessionID:   &fingerprint,
		ClickedAt:   at,
		ProcessedAt: time.Now().UTC(),
	}

	db := r.dbManager.GetConnection()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}

	err := sqlite.PerformWrite(r.logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		event.IsUnique = visitors.IsUnique(tx, r.logger, link.ID, fingerprint, at)

		if err := tx.Omit("Link").Create(event).Error; err != nil {
			return fmt.Errorf("failed to insert click event: %w", err)
		}
		return links.IncrementCounters(tx, link.ID, event.IsUnique, at)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}
