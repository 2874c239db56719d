package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/mirror"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSQLite establishes a SQLite connection without migrating any schema.
// The parent directory is created when missing.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if logger != nil {
		logger.Debug("database opened", zap.String("path", path))
	}
	return db, nil
}

// OpenRecordStore opens the on-device activity database and brings its schema
// up to date.
func OpenRecordStore(path string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := OpenSQLite(path, logger)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&activities.Record{}, &mirror.PendingDelete{}, &migrationRecord{}); err != nil {
		closeQuietly(db)
		return nil, err
	}
	if err := applyMigrations(db, recordStoreMigrations, logger); err != nil {
		closeQuietly(db)
		return nil, err
	}
	if logger != nil {
		logger.Info("record database initialized", zap.String("path", path))
	}
	return db, nil
}

// OpenMirrorStore opens the mirror service database.
func OpenMirrorStore(path string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := OpenSQLite(path, logger)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&mirror.MirroredRecord{}, &migrationRecord{}); err != nil {
		closeQuietly(db)
		return nil, err
	}
	if err := applyMigrations(db, nil, logger); err != nil {
		closeQuietly(db)
		return nil, err
	}
	if logger != nil {
		logger.Info("mirror database initialized", zap.String("path", path))
	}
	return db, nil
}

// Close releases the pooled connection behind db.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeQuietly(db *gorm.DB) {
	_ = Close(db)
}
