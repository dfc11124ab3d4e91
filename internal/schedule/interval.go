package schedule

import (
	"errors"
	"fmt"
)

// ErrBadClock indicates a wall-clock value that is not 24-hour "HH:MM".
var ErrBadClock = errors.New("schedule: clock value must be HH:MM")

// ParseClock converts a 24-hour "HH:MM" wall-clock string to minutes since
// midnight. The zero-padded form is required so stored values stay ordered.
func ParseClock(s string) (int16, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrBadClock
	}
	h, ok1 := digits2(s[0], s[1])
	m, ok2 := digits2(s[3], s[4])
	if !ok1 || !ok2 || h > 23 || m > 59 {
		return 0, ErrBadClock
	}
	return int16(h*60 + m), nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(min int16) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// Overlaps reports whether two half-open [start, end) intervals intersect.
// Back-to-back intervals, where one ends exactly when the other starts, do
// not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int16) bool {
	return aStart < bEnd && aEnd > bStart
}

// Interval is a booked [Start, End) window rendered back to wall-clock form.
type Interval struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

func digits2(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}
