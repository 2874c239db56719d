package mirror

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "mirror.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&MirroredRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return database
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repository, err := NewRepository(RepositoryConfig{
		Database: openTestDatabase(t),
		Clock:    func() time.Time { return time.Unix(1750000000, 0) },
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("unexpected repository error: %v", err)
	}
	return repository
}

func sampleRecord(id string, category activities.Category, start time.Time) activities.Record {
	return activities.Record{
		ID:        id,
		Category:  category,
		StartTime: start,
		EndTime:   start.Add(activities.DefaultDuration),
	}
}

// stubTokens maps bearer tokens straight to account ids.
type stubTokens struct {
	accounts    map[string]string
	validateErr error
}

func (s stubTokens) ValidateToken(token string) (string, error) {
	if s.validateErr != nil {
		return "", s.validateErr
	}
	account, ok := s.accounts[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return account, nil
}
