package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationNormalizeLegacyCategories = "2025-06-14_normalize_legacy_categories"
	migrationBackfillRecordUpdatedAt   = "2026-10-19_backfill_record_updated_at"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

var recordStoreMigrations = []migrationDefinition{
	{name: migrationNormalizeLegacyCategories, apply: normalizeLegacyCategories},
	{name: migrationBackfillRecordUpdatedAt, apply: backfillRecordUpdatedAt},
}

func applyMigrations(db *gorm.DB, migrations []migrationDefinition, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeLegacyCategories rewrites stored category labels to their decoded
// form. Reads keep decoding regardless, so rows written later by an older
// client are still handled.
func normalizeLegacyCategories(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&activities.Record{}).
			Where("category = ?", activities.LegacyPottyValue).
			Update("category", activities.CategoryPee).Error; err != nil {
			return err
		}
		return tx.Model(&activities.Record{}).
			Where("category NOT IN ?", activities.CategoryNames()).
			Update("category", activities.CategoryOther).Error
	})
}

// backfillRecordUpdatedAt dates rows written before modification times were
// tracked at their end time.
func backfillRecordUpdatedAt(db *gorm.DB) error {
	return db.Model(&activities.Record{}).
		Where("updated_at IS NULL").
		Update("updated_at", gorm.Expr("end_time")).Error
}
