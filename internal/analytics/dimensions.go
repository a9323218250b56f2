package analytics

import (
	"linkpulse/internal/clicks"
	"linkpulse/internal/pkg/referrers"
)

// Unknown labels a missing dimension value.
const Unknown = "Unknown"

func orUnknown(value *string) string {
	if value == nil || *value == "" {
		return Unknown
	}
	return *value
}

func present(value *string) (string, bool) {
	if value == nil || *value == "" {
		return "", false
	}
	return *value, true
}

// DeviceStats breaks clicks down by device type and brand.
type DeviceStats struct {
	Types  Breakdown `json:"types"`
	Brands Breakdown `json:"brands"`
}

// GeographyStats breaks clicks down by country and city.
type GeographyStats struct {
	Countries Breakdown `json:"countries"`
	Cities    Breakdown `json:"cities"`
}

// BrowserStats breaks clicks down by browser and operating system.
type BrowserStats struct {
	Browsers         Breakdown `json:"browsers"`
	OperatingSystems Breakdown `json:"operating_systems"`
}

// DeviceBreakdown ranks device types (all of them) and brands (top 10).
func DeviceBreakdown(events []clicks.ClickEvent) DeviceStats {
	return DeviceStats{
		Types: BreakdownBy(events, func(e *clicks.ClickEvent) (string, bool) {
			if e.DeviceType == "" {
				return Unknown, true
			}
			return e.DeviceType, true
		}, NoLimit),
		Brands: BreakdownBy(events, func(e *clicks.ClickEvent) (string, bool) {
			return orUnknown(e.DeviceBrand), true
		}, DefaultLimit),
	}
}

// GeographyBreakdown ranks countries and "City, Country" pairs. Cities are
// only counted when both city and country are known.
func GeographyBreakdown(events []clicks.ClickEvent) GeographyStats {
	return GeographyStats{
		Countries: BreakdownBy(events, func(e *clicks.ClickEvent) (string, bool) {
			return orUnknown(e.Country), true
		}, DefaultLimit),
		Cities: BreakdownBy(events, func(e *clicks.ClickEvent) (string, bool) {
			city, ok := present(e.City)
			if !ok {
				return "", false
			}
			country, ok := present(e.Country)
			if !ok {
				return "", false
			}
			return city + ", " + country, true
		}, DefaultLimit),
	}
}

// BrowserBreakdown ranks browsers and operating systems.
func BrowserBreakdown(events []clicks.ClickEvent) BrowserStats {
	return BrowserStats{
		Browsers: BreakdownBy(events, func(e *clicks.ClickEvent) (string, bool) {
			return orUnknown(e.BrowserName), true
		}, DefaultLimit),
		OperatingSystems: BreakdownBy(events, func(e *clicks.ClickEvent) (string, bool) {
			return orUnknown(e.OSName), true
		}, DefaultLimit),
	}
}

func refererDomain(e *clicks.ClickEvent) (string, bool) {
	if e.Referer == nil {
		return referrers.Direct, true
	}
	return referrers.Domain(*e.Referer), true
}

// ReferrerBreakdown ranks referer hosts. Clicks without a referer are Direct.
func ReferrerBreakdown(events []clicks.ClickEvent) Breakdown {
	return BreakdownBy(events, refererDomain, DefaultLimit)
}

// ReferrerSources groups referer hosts by their friendly name, so
// www.google.com and google.de both count as Google.
func ReferrerSources(events []clicks.ClickEvent) Breakdown {
	return BreakdownBy(events, func(e *clicks.ClickEvent) (string, bool) {
		domain, _ := refererDomain(e)
		return referrers.SourceName(domain), true
	}, DefaultLimit)
}

// TimezoneBreakdown ranks known timezones.
func TimezoneBreakdown(events []clicks.ClickEvent) Breakdown {
	return BreakdownBy(events, func(e *clicks.ClickEvent) (string, bool) {
		return present(e.Timezone)
	}, DefaultLimit)
}

// ISPBreakdown ranks known ISPs.
func ISPBreakdown(events []clicks.ClickEvent) Breakdown {
	return BreakdownBy(events, func(e *clicks.ClickEvent) (string, bool) {
		return present(e.ISP)
	}, DefaultLimit)
}
