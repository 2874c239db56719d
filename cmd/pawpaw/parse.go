package main

import (
	"fmt"
	"strings"
	"time"
)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
}

// parseMoment accepts RFC3339, a local date and time, or a local time of day
// which is taken to mean today.
func parseMoment(input string, now time.Time, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(input)
	if strings.EqualFold(trimmed, "now") {
		return now, nil
	}
	for _, layout := range absoluteLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return parsed, nil
		}
	}
	for _, layout := range clockLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			local := now.In(loc)
			return time.Date(local.Year(), local.Month(), local.Day(),
				parsed.Hour(), parsed.Minute(), parsed.Second(), 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q (use RFC3339, \"2006-01-02 15:04\" or \"15:04\")", input)
}
