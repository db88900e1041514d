package util

import (
	"fmt"
	"strconv"
	"time"
)

// unix values above this are treated as milliseconds
const unixMilliThreshold = 1e11

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds or milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return FromUnix(ts), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// FromUnix converts exchange epoch values, which come in seconds or milliseconds.
func FromUnix(ts int64) time.Time {
	if ts > unixMilliThreshold {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}

// FormatHeld renders a holding duration as "1d 2h 3m", "2h 3m", "3m 4s" or "4s".
func FormatHeld(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	mins := int(d/time.Minute) % 60
	secs := int(d/time.Second) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
