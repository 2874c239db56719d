package mirror

import (
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
)

// recordPayload is the wire form of an activity record. Category travels as
// the raw label so that both ends apply the same decoding rule.
type recordPayload struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Note      *string   `json:"note,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listResponsePayload struct {
	Records []recordPayload `json:"records"`
}

type purgeResponsePayload struct {
	Removed int64 `json:"removed"`
}

func newRecordPayload(record activities.Record) recordPayload {
	clone := record.Clone()
	return recordPayload{
		ID:        clone.ID,
		Category:  clone.Category.String(),
		StartTime: clone.StartTime.UTC(),
		EndTime:   clone.EndTime.UTC(),
		Note:      clone.Note,
		UpdatedAt: clone.UpdatedAt.UTC(),
	}
}

func (p recordPayload) record() activities.Record {
	record := activities.Record{
		ID:        strings.TrimSpace(p.ID),
		Category:  activities.DecodeCategory(p.Category),
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Note != nil && strings.TrimSpace(*p.Note) != "" {
		note := strings.TrimSpace(*p.Note)
		record.Note = &note
	}
	return record
}
