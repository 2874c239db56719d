package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errRemoteDown = errors.New("remote down")

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenRecordStore(filepath.Join(t.TempDir(), "pawpaw.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open record store: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newTestLocalBackend(t *testing.T) *LocalBackend {
	t.Helper()
	backend, err := NewLocalBackend(openTestDatabase(t))
	if err != nil {
		t.Fatalf("unexpected backend error: %v", err)
	}
	return backend
}

func sampleRecord(id string, category activities.Category, start time.Time) activities.Record {
	return activities.Record{
		ID:        id,
		Category:  category,
		StartTime: start,
		EndTime:   start.Add(activities.DefaultDuration),
	}
}

type fakeRemote struct {
	mu           sync.Mutex
	records      map[string]activities.Record
	listErr      error
	putErr       error
	deleteErr    error
	deleteAllErr error
	block        chan struct{}
	closed       int
	purged       int
}

func newFakeRemote(records ...activities.Record) *fakeRemote {
	remote := &fakeRemote{records: make(map[string]activities.Record)}
	for _, record := range records {
		remote.records[record.ID] = record
	}
	return remote
}

func (r *fakeRemote) List(context.Context) ([]activities.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]activities.Record, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, record)
	}
	return out, nil
}

func (r *fakeRemote) Put(_ context.Context, record activities.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return r.putErr
	}
	r.records[record.ID] = record
	return nil
}

func (r *fakeRemote) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.records, id)
	return nil
}

func (r *fakeRemote) DeleteAll(ctx context.Context) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteAllErr != nil {
		return r.deleteAllErr
	}
	r.records = make(map[string]activities.Record)
	r.purged++
	return nil
}

func (r *fakeRemote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeRemote) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type memoryPreferences struct {
	mu      sync.Mutex
	enabled bool
	setErr  error
	writes  []bool
}

func (p *memoryPreferences) CloudSyncEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *memoryPreferences) SetCloudSyncEnabled(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setErr != nil {
		return p.setErr
	}
	p.enabled = enabled
	p.writes = append(p.writes, enabled)
	return nil
}
