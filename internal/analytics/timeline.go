package analytics

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"linkpulse/internal/clicks"
	"linkpulse/internal/timeframe"
)

// Bucket is one time slot of a timeline.
type Bucket struct {
	Key    string `json:"key"`
	Total  int    `json:"total"`
	Unique int    `json:"unique"`
}

// Timeline is a list of buckets in ascending key order. It serializes as
// an ordered JSON object keyed by bucket.
type Timeline []Bucket

// MarshalJSON writes {"2024-03-11": {"total": n, "unique": m}, ...}.
func (t Timeline) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, bucket := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(bucket.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(struct {
			Total  int `json:"total"`
			Unique int `json:"unique"`
		}{bucket.Total, bucket.Unique})
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

// BuildTimeline buckets events at the given granularity.
func BuildTimeline(events []clicks.ClickEvent, granularity timeframe.Granularity) Timeline {
	index := make(map[string]int)
	timeline := Timeline{}

	for i := range events {
		key := timeframe.BucketKey(events[i].ClickedAt, granularity)
		pos, ok := index[key]
		if !ok {
			pos = len(timeline)
			index[key] = pos
			timeline = append(timeline, Bucket{Key: key})
		}
		timeline[pos].Total++
		if events[i].IsUnique {
			timeline[pos].Unique++
		}
	}

	// Keys share one layout per granularity, so string order is time order.
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Key < timeline[j].Key
	})
	return timeline
}

// HourCount is the number of clicks seen in one hour of the day (UTC).
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// HourOfDay lists the hours that saw clicks, in ascending order. It
// serializes as an ordered JSON object keyed by hour.
type HourOfDay []HourCount

// MarshalJSON writes {"9": 3, "14": 1}.
func (h HourOfDay) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, hc := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(hc.Hour)))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(hc.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// BuildHourOfDay counts events per UTC hour of the day.
func BuildHourOfDay(events []clicks.ClickEvent) HourOfDay {
	var counts [24]int
	for i := range events {
		counts[events[i].ClickedAt.UTC().Hour()]++
	}

	result := HourOfDay{}
	for hour, count := range counts {
		if count > 0 {
			result = append(result, HourCount{Hour: hour, Count: count})
		}
	}
	return result
}

// TimeStats is the overview's time section.
type TimeStats struct {
	Daily  Timeline  `json:"daily"`
	Hourly HourOfDay `json:"hourly"`
}
