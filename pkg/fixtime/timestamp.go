// Package fixtime formats and parses FIX UTC timestamps
// (YYYYMMDD-HH:MM:SS[.mmm]), tags 52 (SendingTime) and similar.
package fixtime

import (
	"fmt"
	"time"
)

const (
	layoutSeconds = "20060102-15:04:05"
	layoutMillis  = "20060102-15:04:05.000"
)

// Format renders t in UTC as YYYYMMDD-HH:MM:SS, or, when millis is
// true, YYYYMMDD-HH:MM:SS.mmm with the millisecond field truncated (not
// rounded) from any higher-resolution input.
func Format(t time.Time, millis bool) string {
	u := t.UTC()
	if millis {
		return u.Format(layoutMillis)
	}
	return u.Format(layoutSeconds)
}

// Parse accepts either the second-precision or millisecond-precision
// form and returns an instant pinned to UTC. It rejects any string
// that does not match the exact grammar or whose calendar components
// are out of range.
func Parse(s string) (time.Time, error) {
	layout := layoutSeconds
	if len(s) == len(layoutMillis) {
		layout = layoutMillis
	} else if len(s) != len(layoutSeconds) {
		return time.Time{}, fmt.Errorf("fixtime: %q does not match YYYYMMDD-HH:MM:SS[.mmm]", s)
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("fixtime: parsing %q: %w", s, err)
	}
	return t.UTC(), nil
}
