// Package analytics aggregates stored click events into ranked,
// percentage-weighted breakdowns and time series.
//
// The package is organized into focused modules:
//   - analytics.go: Breakdown and the generic ranking routine
//   - dimensions.go: Per-dimension breakdowns over a fetched event slice
//   - timeline.go: Time bucketed series
//   - reports.go: Link overview and the narrower per-link reports
//   - export.go: JSON and CSV exports
//   - dashboard.go: Per-user summary across all links
package analytics

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
)

// DefaultLimit is how many categories a breakdown keeps.
const DefaultLimit = 10

// NoLimit keeps every category.
const NoLimit = 0

// Entry is one ranked category of a breakdown.
type Entry struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Breakdown is an ordered list of categories, highest count first. It
// serializes as a JSON object whose keys keep that order.
type Breakdown []Entry

// MarshalJSON writes {"label": {"count": n, "percentage": p}, ...}.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Label)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(struct {
			Count      int     `json:"count"`
			Percentage float64 `json:"percentage"`
		}{entry.Count, entry.Percentage})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Top returns the label of the first entry, or fallback when empty.
func (b Breakdown) Top(fallback string) string {
	if len(b) == 0 {
		return fallback
	}
	return b[0].Label
}

// Get returns the entry for label.
func (b Breakdown) Get(label string) (Entry, bool) {
	for _, entry := range b {
		if entry.Label == label {
			return entry, true
		}
	}
	return Entry{}, false
}

// BreakdownBy counts items per label, sorts by count descending with ties
// kept in first-seen order, and truncates to limit (NoLimit keeps all).
// Items for which label reports false are skipped but still count toward
// the total the percentages are taken against.
func BreakdownBy[T any](items []T, label func(*T) (string, bool), limit int) Breakdown {
	total := len(items)
	if total == 0 {
		return Breakdown{}
	}

	counts := make(map[string]int)
	var order []string
	for i := range items {
		name, ok := label(&items[i])
		if !ok {
			continue
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	result := make(Breakdown, 0, len(order))
	for _, name := range order {
		result = append(result, Entry{
			Label:      name,
			Count:      counts[name],
			Percentage: round(float64(counts[name])/float64(total)*100, 1),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// round rounds half away from zero to the given number of decimals.
func round(value float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(value*scale) / scale
}

// Rate returns part/total*100 rounded to two decimals, 0 when total is 0.
func Rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)/float64(total)*100, 2)
}
