package activities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultDuration is applied when a record is created without an end time.
const DefaultDuration = 600 * time.Second

var (
	// ErrInvalidTimeRange indicates an end time earlier than the start time.
	ErrInvalidTimeRange = errors.New("activities: end time precedes start time")
	// ErrMissingCategory indicates a record without a category.
	ErrMissingCategory = errors.New("activities: category is required")
)

// Record is one logged pet activity occurrence.
type Record struct {
	ID        string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Category  Category  `gorm:"column:category;size:32;not null;index" json:"category"`
	StartTime time.Time `gorm:"column:start_time;not null;index" json:"start_time"`
	EndTime   time.Time `gorm:"column:end_time;not null" json:"end_time"`
	Note      *string   `gorm:"column:note;type:text" json:"note,omitempty"`
	// UpdatedAt is the last modification on any device. Copies of the same
	// record are reconciled by keeping the later one.
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "activity_records"
}

// Duration is EndTime minus StartTime. It is negative for spans recorded
// backwards by older releases.
func (r Record) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// NoteText returns the note or an empty string.
func (r Record) NoteText() string {
	if r.Note == nil {
		return ""
	}
	return *r.Note
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	copied := r
	if r.Note != nil {
		note := *r.Note
		copied.Note = &note
	}
	return copied
}

// RecordConfig describes a record to create. A zero StartTime means now and a
// zero EndTime means StartTime plus DefaultDuration. An empty Note is absent.
type RecordConfig struct {
	Category  Category
	StartTime time.Time
	EndTime   time.Time
	Note      string
}

// NewRecord builds a record with a fresh identifier.
func NewRecord(cfg RecordConfig, ids IDProvider, clock func() time.Time) (Record, error) {
	if cfg.Category == "" {
		return Record{}, ErrMissingCategory
	}
	if ids == nil {
		ids = NewUUIDProvider()
	}
	if clock == nil {
		clock = time.Now
	}

	id, err := ids.NewID()
	if err != nil {
		return Record{}, err
	}

	now := clock()
	start := cfg.StartTime
	if start.IsZero() {
		start = now
	}
	end := cfg.EndTime
	if end.IsZero() {
		end = start.Add(DefaultDuration)
	}

	return Record{
		ID:        id,
		Category:  cfg.Category,
		StartTime: start,
		EndTime:   end,
		Note:      normalizeNote(cfg.Note),
		UpdatedAt: now,
	}, nil
}

func normalizeNote(note string) *string {
	trimmed := strings.TrimSpace(note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validateSpan(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("%w: start %s, end %s", ErrInvalidTimeRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}
