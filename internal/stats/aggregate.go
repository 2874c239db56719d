package stats

import (
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
)

// HoursPerDay is the histogram width.
const HoursPerDay = 24

// HourlyHistogram counts the records of category by the hour of their start
// time in loc, across every date in records. A nil loc means time.Local.
// Legacy and unknown labels count under their decoded category.
func HourlyHistogram(records []activities.Record, category activities.Category, loc *time.Location) [HoursPerDay]int {
	if loc == nil {
		loc = time.Local
	}
	category = activities.DecodeCategory(category.String())
	var counts [HoursPerDay]int
	for _, record := range records {
		if activities.DecodeCategory(record.Category.String()) != category {
			continue
		}
		counts[record.StartTime.In(loc).Hour()]++
	}
	return counts
}

// CategoryTotals counts records per category whose start time falls inside
// r. Every category is present in the result.
func CategoryTotals(records []activities.Record, r Range, now time.Time) (map[activities.Category]int, error) {
	start, bounded, err := r.WindowStart(now)
	if err != nil {
		return nil, err
	}
	totals := make(map[activities.Category]int, len(activities.Categories()))
	for _, category := range activities.Categories() {
		totals[category] = 0
	}
	for _, record := range records {
		if bounded && record.StartTime.Before(start) {
			continue
		}
		totals[activities.DecodeCategory(record.Category.String())]++
	}
	return totals, nil
}

// Total is one category's count.
type Total struct {
	Category activities.Category
	Count    int
}

// OrderedTotals returns totals in declaration order of the categories.
func OrderedTotals(totals map[activities.Category]int) []Total {
	ordered := make([]Total, 0, len(activities.Categories()))
	for _, category := range activities.Categories() {
		ordered = append(ordered, Total{Category: category, Count: totals[category]})
	}
	return ordered
}

// Latest returns the record with the latest start time.
func Latest(records []activities.Record) (activities.Record, bool) {
	if len(records) == 0 {
		return activities.Record{}, false
	}
	latest := records[0]
	for _, record := range records[1:] {
		if record.StartTime.After(latest.StartTime) {
			latest = record
		}
	}
	return latest.Clone(), true
}

// Day groups the records that started on one local calendar day.
type Day struct {
	Date    time.Time
	Records []activities.Record
}

// Timeline groups records by the local day of their start time. Days and the
// records inside each day are ordered newest first. A nil loc means
// time.Local.
func Timeline(records []activities.Record, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}
	sorted := make([]activities.Record, 0, len(records))
	for _, record := range records {
		sorted = append(sorted, record.Clone())
	}
	sortNewestFirst(sorted)

	var days []Day
	for _, record := range sorted {
		local := record.StartTime.In(loc)
		year, month, day := local.Date()
		date := time.Date(year, month, day, 0, 0, 0, 0, loc)
		if len(days) == 0 || !days[len(days)-1].Date.Equal(date) {
			days = append(days, Day{Date: date})
		}
		days[len(days)-1].Records = append(days[len(days)-1].Records, record)
	}
	return days
}
