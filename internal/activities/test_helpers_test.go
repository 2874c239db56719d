package activities

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBackendUnavailable = errors.New("backend unavailable")

type memoryBackend struct {
	mu           sync.Mutex
	name         string
	records      map[string]Record
	failSave     bool
	failDelete   bool
	failLoad     bool
	deleteAllErr error
	closed       int
	saves        int
}

func newMemoryBackend(name string, records ...Record) *memoryBackend {
	backend := &memoryBackend{name: name, records: make(map[string]Record)}
	for _, record := range records {
		backend.records[record.ID] = record.Clone()
	}
	return backend
}

func (b *memoryBackend) Name() string {
	return b.name
}

func (b *memoryBackend) Load(context.Context) ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLoad {
		return nil, errBackendUnavailable
	}
	out := make([]Record, 0, len(b.records))
	for _, record := range b.records {
		out = append(out, record.Clone())
	}
	return out, nil
}

func (b *memoryBackend) Save(_ context.Context, record Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSave {
		return errBackendUnavailable
	}
	b.saves++
	b.records[record.ID] = record.Clone()
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDelete {
		return errBackendUnavailable
	}
	delete(b.records, id)
	return nil
}

func (b *memoryBackend) DeleteAll(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteAllErr != nil {
		return b.deleteAllErr
	}
	b.records = make(map[string]Record)
	return nil
}

func (b *memoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

type steppingClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

func newTestStore(t *testing.T, backend Backend, clock func() time.Time) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), StoreConfig{
		Backend:    backend,
		Clock:      clock,
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return store
}

func mustRecord(t *testing.T, id string, category Category, start time.Time) Record {
	t.Helper()
	return Record{
		ID:        id,
		Category:  category,
		StartTime: start,
		EndTime:   start.Add(DefaultDuration),
	}
}

func receiveEvent(t *testing.T, stream <-chan Event) Event {
	t.Helper()
	select {
	case event := <-stream:
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for store event")
	}
	return Event{}
}
