// Package timeframe holds the reporting windows and time buckets used by
// click analytics. All bucketing happens in UTC.
package timeframe

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the bucket size of a click timeline.
type Granularity string

const (
	GranularityHourly Granularity = "hourly"
	GranularityDaily  Granularity = "daily"
	GranularityWeekly Granularity = "weekly"
)

// MaxHourlyDays caps the window of an hourly timeline.
const MaxHourlyDays = 7

// ParseGranularity maps a query value to a granularity. Anything it does not
// recognise is daily.
func ParseGranularity(value string) Granularity {
	switch Granularity(strings.ToLower(strings.TrimSpace(value))) {
	case GranularityHourly:
		return GranularityHourly
	case GranularityWeekly:
		return GranularityWeekly
	default:
		return GranularityDaily
	}
}

// ClampDays applies the hourly window cap.
func (g Granularity) ClampDays(days int) int {
	if g == GranularityHourly && days > MaxHourlyDays {
		return MaxHourlyDays
	}
	return days
}

// TimeProvider supplies the current time so reports can be tested.
type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

// Now returns the current time in loc.
func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant.
type FixedTimeProvider struct {
	At time.Time
}

// Now returns the fixed instant in loc.
func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.At.In(loc)
}

// Window is the half-open reporting range (From, To].
type Window struct {
	From time.Time
	To   time.Time
	Days int
}

// LastDays builds the window covering the days before now.
func LastDays(provider TimeProvider, days int) Window {
	if provider == nil {
		provider = &DefaultTimeProvider{}
	}
	now := provider.Now(time.UTC)
	return Window{From: now.AddDate(0, 0, -days), To: now, Days: days}
}

// ValidateDays checks days against an inclusive range.
func ValidateDays(days, min, max int) error {
	if days < min || days > max {
		return fmt.Errorf("days must be between %d and %d", min, max)
	}
	return nil
}

// TruncateToBucket truncates t to the start of its bucket in UTC.
// Weeks start on Monday.
func TruncateToBucket(t time.Time, granularity Granularity) time.Time {
	utc := t.UTC()
	year, month, day := utc.Year(), utc.Month(), utc.Day()

	switch granularity {
	case GranularityHourly:
		return time.Date(year, month, day, utc.Hour(), 0, 0, 0, time.UTC)
	case GranularityWeekly:
		weekday := int(utc.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		daysToSubtract := weekday - 1
		return time.Date(year, month, day-daysToSubtract, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
}

// BucketKey formats the bucket of t: "2006-01-02 15:00" for hourly,
// "2006-01-02" for daily and the Monday of the week for weekly.
func BucketKey(t time.Time, granularity Granularity) string {
	start := TruncateToBucket(t, granularity)
	if granularity == GranularityHourly {
		return start.Format("2006-01-02 15:00")
	}
	return start.Format("2006-01-02")
}
