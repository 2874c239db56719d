package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/mirror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Backend names reported by Store.BackendName.
const (
	LocalBackendName    = "local"
	MirroredBackendName = "cloud-mirrored"
)

var errMissingDatabase = errors.New("persistence: database handle is required")

// LocalBackend keeps records in the on-device SQLite database. It does not
// own the database handle.
type LocalBackend struct {
	db *gorm.DB
}

// NewLocalBackend wraps an already migrated database.
func NewLocalBackend(db *gorm.DB) (*LocalBackend, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &LocalBackend{db: db}, nil
}

func (b *LocalBackend) Name() string {
	return LocalBackendName
}

func (b *LocalBackend) Load(ctx context.Context) ([]activities.Record, error) {
	var records []activities.Record
	if err := b.db.WithContext(ctx).Order("start_time DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (b *LocalBackend) Save(ctx context.Context, record activities.Record) error {
	row := record.Clone()
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (b *LocalBackend) Delete(ctx context.Context, id string) error {
	return b.db.WithContext(ctx).Where("id = ?", id).Delete(&activities.Record{}).Error
}

func (b *LocalBackend) DeleteAll(ctx context.Context) error {
	return b.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&activities.Record{}).Error
}

// Close is a no-op; the Factory owns the database handle.
func (b *LocalBackend) Close() error {
	return nil
}

func (b *LocalBackend) has(ctx context.Context, id string) (bool, error) {
	_, found, err := b.get(ctx, id)
	return found, err
}

func (b *LocalBackend) get(ctx context.Context, id string) (activities.Record, bool, error) {
	var record activities.Record
	err := b.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return activities.Record{}, false, nil
	}
	if err != nil {
		return activities.Record{}, false, err
	}
	return record, true, nil
}

// queueRemoteDelete remembers a deletion the mirror has not acknowledged.
func (b *LocalBackend) queueRemoteDelete(ctx context.Context, id string) error {
	row := mirror.PendingDelete{RecordID: id, QueuedAtSeconds: time.Now().UTC().Unix()}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (b *LocalBackend) pendingRemoteDeletes(ctx context.Context) ([]string, error) {
	var ids []string
	err := b.db.WithContext(ctx).
		Model(&mirror.PendingDelete{}).
		Order("queued_at_s").
		Pluck("record_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (b *LocalBackend) clearRemoteDelete(ctx context.Context, id string) error {
	return b.db.WithContext(ctx).Where("record_id = ?", id).Delete(&mirror.PendingDelete{}).Error
}

func (b *LocalBackend) clearRemoteDeletes(ctx context.Context) error {
	return b.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&mirror.PendingDelete{}).Error
}
