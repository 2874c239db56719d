package activities

import "time"

// SuggestedDuration is the span the recorder pre-fills for a category.
func SuggestedDuration(category Category) time.Duration {
	switch category {
	case CategoryPee, CategoryPoo:
		return time.Minute
	case CategoryEat:
		return 15 * time.Minute
	case CategoryPlay:
		return 30 * time.Minute
	default:
		return 10 * time.Minute
	}
}

// SpanEndingAt returns the span of length d that ends at end.
func SpanEndingAt(end time.Time, d time.Duration) (time.Time, time.Time) {
	return end.Add(-d), end
}

// ClampEnd pulls an end time in the future back to now.
func ClampEnd(end, now time.Time) time.Time {
	if end.After(now) {
		return now
	}
	return end
}
