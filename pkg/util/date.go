package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTime accepts RFC3339 (with or without fractional seconds), a plain
// date, or unix seconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseRange resolves an optional from/to pair. Missing to means now, missing
// from means lookback before to.
func ParseRange(from, to string, lookback time.Duration, now time.Time) (time.Time, time.Time, error) {
	end := now
	if to != "" {
		t, ok := ParseTime(to)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("unparseable to %q", to)
		}
		end = t
	}
	start := end.Add(-lookback)
	if from != "" {
		t, ok := ParseTime(from)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("unparseable from %q", from)
		}
		start = t
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("from %s not before to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}
