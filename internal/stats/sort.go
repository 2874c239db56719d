package stats

import (
	"slices"
	"strings"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
)

func sortNewestFirst(records []activities.Record) {
	slices.SortStableFunc(records, func(a, b activities.Record) int {
		if order := b.StartTime.Compare(a.StartTime); order != 0 {
			return order
		}
		return strings.Compare(b.ID, a.ID)
	})
}
