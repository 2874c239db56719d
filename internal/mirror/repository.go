package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("mirror: database handle is required")
	errMissingAccount  = errors.New("mirror: account id is required")
	errMissingRecordID = errors.New("mirror: record id is required")
)

// MirroredRecord is one account's copy of an activity record. ModifiedAtMillis
// carries the device-side modification time; UpdatedAtSeconds is when the
// service last wrote the row.
type MirroredRecord struct {
	AccountID        string    `gorm:"column:account_id;primaryKey;size:190;not null"`
	RecordID         string    `gorm:"column:record_id;primaryKey;size:64;not null"`
	Category         string    `gorm:"column:category;size:32;not null"`
	StartTime        time.Time `gorm:"column:start_time;not null;index"`
	EndTime          time.Time `gorm:"column:end_time;not null"`
	Note             *string   `gorm:"column:note;type:text"`
	ModifiedAtMillis int64     `gorm:"column:modified_at_ms;not null;default:0"`
	UpdatedAtSeconds int64     `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (MirroredRecord) TableName() string {
	return "mirrored_records"
}

// RepositoryError reports a failed mirror storage operation.
type RepositoryError struct {
	code string
	err  error
}

func (e *RepositoryError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *RepositoryError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason code.
func (e *RepositoryError) Code() string {
	return e.code
}

const (
	opRepositoryList      = "mirror.repository.list"
	opRepositoryUpsert    = "mirror.repository.upsert"
	opRepositoryDelete    = "mirror.repository.delete"
	opRepositoryDeleteAll = "mirror.repository.delete_all"
)

func newRepositoryError(operation, reason string, cause error) error {
	return &RepositoryError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// RepositoryConfig wires a Repository.
type RepositoryConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Repository stores mirrored records partitioned by account.
type Repository struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewRepository constructs a Repository over an already migrated database.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: cfg.Database, clock: clock, logger: logger}, nil
}

// List returns the account's records ordered newest first.
func (r *Repository) List(ctx context.Context, accountID string) ([]activities.Record, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, newRepositoryError(opRepositoryList, "invalid_account", errMissingAccount)
	}
	var rows []MirroredRecord
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("start_time DESC").
		Order("record_id DESC").
		Find(&rows).Error
	if err != nil {
		r.logError(opRepositoryList, "query_failed", err, accountID)
		return nil, newRepositoryError(opRepositoryList, "query_failed", err)
	}
	records := make([]activities.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// Upsert creates or replaces one record for the account.
func (r *Repository) Upsert(ctx context.Context, accountID string, record activities.Record) error {
	if strings.TrimSpace(accountID) == "" {
		return newRepositoryError(opRepositoryUpsert, "invalid_account", errMissingAccount)
	}
	if strings.TrimSpace(record.ID) == "" {
		return newRepositoryError(opRepositoryUpsert, "invalid_record", errMissingRecordID)
	}
	row := MirroredRecord{
		AccountID:        accountID,
		RecordID:         record.ID,
		Category:         record.Category.String(),
		StartTime:        record.StartTime.UTC(),
		EndTime:          record.EndTime.UTC(),
		Note:             record.Clone().Note,
		ModifiedAtMillis: modifiedAtMillis(record.UpdatedAt),
		UpdatedAtSeconds: r.clock().UTC().Unix(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "record_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		r.logError(opRepositoryUpsert, "write_failed", err, accountID)
		return newRepositoryError(opRepositoryUpsert, "write_failed", err)
	}
	return nil
}

// Delete removes one record and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, accountID, recordID string) (bool, error) {
	if strings.TrimSpace(accountID) == "" {
		return false, newRepositoryError(opRepositoryDelete, "invalid_account", errMissingAccount)
	}
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND record_id = ?", accountID, recordID).
		Delete(&MirroredRecord{})
	if result.Error != nil {
		r.logError(opRepositoryDelete, "write_failed", result.Error, accountID)
		return false, newRepositoryError(opRepositoryDelete, "write_failed", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteAll removes every record of the account and returns how many went.
func (r *Repository) DeleteAll(ctx context.Context, accountID string) (int64, error) {
	if strings.TrimSpace(accountID) == "" {
		return 0, newRepositoryError(opRepositoryDeleteAll, "invalid_account", errMissingAccount)
	}
	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&MirroredRecord{})
	if result.Error != nil {
		r.logError(opRepositoryDeleteAll, "write_failed", result.Error, accountID)
		return 0, newRepositoryError(opRepositoryDeleteAll, "write_failed", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *Repository) logError(operation, reason string, err error, accountID string) {
	r.logger.Error("mirror repository error",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("account_id", accountID),
		zap.Error(err))
}

func (row MirroredRecord) record() activities.Record {
	record := activities.Record{
		ID:        row.RecordID,
		Category:  activities.DecodeCategory(row.Category),
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
	}
	if row.ModifiedAtMillis > 0 {
		record.UpdatedAt = time.UnixMilli(row.ModifiedAtMillis).UTC()
	}
	if row.Note != nil {
		note := *row.Note
		record.Note = &note
	}
	return record
}

// modifiedAtMillis stores zero for records from clients that never sent a
// modification time.
func modifiedAtMillis(updatedAt time.Time) int64 {
	if updatedAt.IsZero() {
		return 0
	}
	return updatedAt.UnixMilli()
}
