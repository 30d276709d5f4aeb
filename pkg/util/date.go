package util

import (
	"strconv"
	"time"
)

// timeLayouts are tried in order. RFC3339 also accepts fractional seconds.
var timeLayouts = [...]string{time.RFC3339, "2006-01-02T15:04:05", time.DateOnly}

// ParseTime reads an RFC3339 timestamp, a bare UTC date-time or date, or unix
// seconds. The result is in UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault returns def when s does not parse.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// StartOfDay returns 00:00:00 UTC of t's UTC day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfYesterday returns 00:00:00 UTC of the day before t.
func StartOfYesterday(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, -1)
}

// StartOfMonth returns the first instant of t's UTC calendar month.
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
