package chat

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Values below this are epoch seconds, at or above it epoch milliseconds.
const epochMillisThreshold = 1e12

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
}

// Zone-less strings are read as UTC.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeTimestamp converts a wire timestamp (epoch seconds, epoch
// milliseconds, numeric string, date string with or without zone) into a UTC
// time with millisecond precision. Missing or unparseable input yields now.
func NormalizeTimestamp(raw any, now time.Time) time.Time {
	switch v := raw.(type) {
	case nil:
	case float64:
		if t, ok := fromEpoch(v); ok {
			return t
		}
	case int64:
		return fromEpochMillis(epochToMillis(float64(v)))
	case int:
		return fromEpochMillis(epochToMillis(float64(v)))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			if t, ok := fromEpoch(f); ok {
				return t
			}
		}
	case string:
		if t, ok := parseTimestampString(v); ok {
			return t
		}
	case time.Time:
		return v.UTC().Truncate(time.Millisecond)
	}
	return now.UTC().Truncate(time.Millisecond)
}

func parseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	guess := s
	if !strings.Contains(guess, "T") {
		guess = strings.Replace(guess, " ", "T", 1)
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, guess); err == nil {
			return t.UTC().Truncate(time.Millisecond), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, guess, time.UTC); err == nil {
			return t.Truncate(time.Millisecond), true
		}
	}
	return time.Time{}, false
}

func fromEpoch(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	return fromEpochMillis(epochToMillis(f)), true
}

func epochToMillis(f float64) int64 {
	if f < epochMillisThreshold {
		f *= 1000
	}
	return int64(f)
}

func fromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
