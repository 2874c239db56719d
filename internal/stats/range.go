package stats

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Range is a lookback window anchored at the local start of today.
type Range string

const (
	RangeToday  Range = "today"
	RangeLast3  Range = "last3"
	RangeLast7  Range = "last7"
	RangeLast30 Range = "last30"
	RangeAll    Range = "all"

	// DefaultRange is the window shown when none is chosen.
	DefaultRange = RangeLast7
)

// ErrUnknownRange indicates a range name outside the supported set.
var ErrUnknownRange = errors.New("stats: unknown range")

var rangeDays = map[Range]int{
	RangeToday:  1,
	RangeLast3:  3,
	RangeLast7:  7,
	RangeLast30: 30,
}

// Ranges lists every supported range from narrowest to widest.
func Ranges() []Range {
	return []Range{RangeToday, RangeLast3, RangeLast7, RangeLast30, RangeAll}
}

// ParseRange resolves a range name. Empty input yields DefaultRange.
func ParseRange(input string) (Range, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return DefaultRange, nil
	}
	for _, candidate := range Ranges() {
		if string(candidate) == trimmed {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRange, input)
}

// WindowStart returns the inclusive lower bound of the range in now's
// location. "lastN" covers today plus the previous N-1 calendar days. The
// second result is false for RangeAll, which has no bound.
func (r Range) WindowStart(now time.Time) (time.Time, bool, error) {
	if r == RangeAll {
		return time.Time{}, false, nil
	}
	days, ok := rangeDays[r]
	if !ok {
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrUnknownRange, string(r))
	}
	year, month, day := now.Date()
	return time.Date(year, month, day-(days-1), 0, 0, 0, 0, now.Location()), true, nil
}

// Label is a short human description of the range.
func (r Range) Label() string {
	switch r {
	case RangeToday:
		return "Today"
	case RangeAll:
		return "All time"
	default:
		if days, ok := rangeDays[r]; ok {
			return fmt.Sprintf("Last %d days", days)
		}
		return string(r)
	}
}
