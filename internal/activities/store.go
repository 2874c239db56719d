package activities

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var noOpLogger = zap.NewNop()

// Backend persists the record collection for a Store.
type Backend interface {
	Name() string
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, record Record) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Close() error
}

// StoreConfig wires the dependencies of a Store. Backend may be nil and bound
// later with Rebind.
type StoreConfig struct {
	Backend    Backend
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	Events     *EventDispatcher
}

// RecordChanges lists the fields Update should overwrite. Nil fields are kept;
// a Note pointing at an empty string clears the note.
type RecordChanges struct {
	Category  *Category
	StartTime *time.Time
	EndTime   *time.Time
	Note      *string
}

// Store is the single owner of the record collection. The in-memory slice is
// kept newest first and only changes after the backend accepted the write.
// The mutex also serialises backend writes.
type Store struct {
	mu         sync.Mutex
	backend    Backend
	records    []Record
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	events     *EventDispatcher
}

// NewStore constructs a Store and loads the initial backend when one is given.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	events := cfg.Events
	if events == nil {
		events = NewEventDispatcher()
	}

	store := &Store{
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
		events:     events,
	}

	if cfg.Backend != nil {
		records, err := cfg.Backend.Load(ctx)
		if err != nil {
			store.logError(opStoreNew, "load_failed", err, zap.String("backend", cfg.Backend.Name()))
			return nil, newStorageError(opStoreNew, "load_failed", err)
		}
		store.backend = cfg.Backend
		store.records = prepareLoaded(records)
	}
	return store, nil
}

// Events exposes the notification channel the presentation layer subscribes to.
func (s *Store) Events() *EventDispatcher {
	return s.events
}

// BackendName reports the active backend, or an empty string when unbound.
func (s *Store) BackendName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return ""
	}
	return s.backend.Name()
}

// Rebind loads the collection from backend and makes it the active target.
// The previous backend is closed. On load failure nothing changes.
func (s *Store) Rebind(ctx context.Context, backend Backend) error {
	if backend == nil {
		return newStorageError(opRebind, "missing_backend", ErrMissingBackend)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := backend.Load(ctx)
	if err != nil {
		s.logError(opRebind, "load_failed", err, zap.String("backend", backend.Name()))
		return newStorageError(opRebind, "load_failed", err)
	}

	previous := s.backend
	s.backend = backend
	s.records = prepareLoaded(records)

	if previous != nil && previous != backend {
		if err := previous.Close(); err != nil {
			s.logger.Warn("closing previous backend failed",
				zap.String("backend", previous.Name()),
				zap.Error(err))
		}
	}

	s.events.Publish(Event{
		Type:      EventBackendChanged,
		Operation: opRebind,
		Backend:   backend.Name(),
		Timestamp: s.clock(),
	})
	return nil
}

// Add records an activity that starts now and lasts DefaultDuration.
func (s *Store) Add(ctx context.Context, category Category, note string) (Record, error) {
	return s.create(ctx, opAdd, RecordConfig{Category: category, Note: note})
}

// AddAt records an activity with explicit times. Zero times fall back to the
// same defaults as NewRecord.
func (s *Store) AddAt(ctx context.Context, category Category, start, end time.Time, note string) (Record, error) {
	return s.create(ctx, opAddAt, RecordConfig{
		Category:  category,
		StartTime: start,
		EndTime:   end,
		Note:      note,
	})
}

func (s *Store) create(ctx context.Context, operation string, cfg RecordConfig) (Record, error) {
	record, err := NewRecord(cfg, s.idProvider, s.clock)
	if err != nil {
		if errors.Is(err, ErrMissingCategory) {
			return Record{}, err
		}
		s.logError(operation, "id_generation_failed", err)
		return Record{}, newStorageError(operation, "id_generation_failed", err)
	}
	if err := validateSpan(record.StartTime, record.EndTime); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistLocked(ctx, operation, record); err != nil {
		return Record{}, err
	}
	s.records = append(s.records, record)
	sortNewestFirst(s.records)
	s.publishChanged(operation, record.ID)
	return record.Clone(), nil
}

// Update overwrites the fields named in changes. The id never changes.
func (s *Store) Update(ctx context.Context, id string, changes RecordChanges) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(id)
	if index < 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	updated := s.records[index].Clone()
	if changes.Category != nil {
		updated.Category = *changes.Category
	}
	if changes.StartTime != nil {
		updated.StartTime = *changes.StartTime
	}
	if changes.EndTime != nil {
		updated.EndTime = *changes.EndTime
	}
	if changes.Note != nil {
		updated.Note = normalizeNote(*changes.Note)
	}
	if err := validateSpan(updated.StartTime, updated.EndTime); err != nil {
		return Record{}, err
	}
	updated.UpdatedAt = s.clock()

	if err := s.persistLocked(ctx, opUpdate, updated); err != nil {
		return Record{}, err
	}
	s.records[index] = updated
	sortNewestFirst(s.records)
	s.publishChanged(opUpdate, updated.ID)
	return updated.Clone(), nil
}

// Delete removes a single record.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(id)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if s.backend == nil {
		return newStorageError(opDelete, "missing_backend", ErrMissingBackend)
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		s.reportFailureLocked(opDelete, "delete_failed", id, err)
		return newStorageError(opDelete, "delete_failed", err)
	}
	s.records = slices.Delete(s.records, index, index+1)
	s.publishChanged(opDelete, id)
	return nil
}

// DeleteAll removes every record. When the backend fails the collection is
// reloaded so it reflects whatever the backend kept.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return newStorageError(opDeleteAll, "missing_backend", ErrMissingBackend)
	}

	removed := make([]string, 0, len(s.records))
	for _, record := range s.records {
		removed = append(removed, record.ID)
	}

	if err := s.backend.DeleteAll(ctx); err != nil {
		s.reportFailureLocked(opDeleteAll, "delete_all_failed", "", err)
		if records, loadErr := s.backend.Load(ctx); loadErr == nil {
			s.records = prepareLoaded(records)
		} else {
			s.logError(opDeleteAll, "reload_failed", loadErr, zap.String("backend", s.backend.Name()))
		}
		return newStorageError(opDeleteAll, "delete_all_failed", err)
	}

	s.records = nil
	s.publishChanged(opDeleteAll, removed...)
	return nil
}

// List returns the collection newest first by start time.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Clone())
	}
	return out
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.indexLocked(id)
	if index < 0 {
		return Record{}, false
	}
	return s.records[index].Clone(), true
}

// Count returns the number of records held.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close releases the active backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}

func (s *Store) persistLocked(ctx context.Context, operation string, record Record) error {
	if s.backend == nil {
		return newStorageError(operation, "missing_backend", ErrMissingBackend)
	}
	if err := s.backend.Save(ctx, record); err != nil {
		s.reportFailureLocked(operation, "save_failed", record.ID, err)
		return newStorageError(operation, "save_failed", err)
	}
	return nil
}

func (s *Store) reportFailureLocked(operation, reason, recordID string, err error) {
	fields := []zap.Field{zap.String("backend", s.backend.Name())}
	ids := []string(nil)
	if recordID != "" {
		fields = append(fields, zap.String("record_id", recordID))
		ids = []string{recordID}
	}
	s.logError(operation, reason, err, fields...)
	s.events.Publish(Event{
		Type:      EventSaveFailed,
		Operation: operation,
		RecordIDs: ids,
		Backend:   s.backend.Name(),
		Err:       err,
		Timestamp: s.clock(),
	})
}

func (s *Store) publishChanged(operation string, ids ...string) {
	backend := ""
	if s.backend != nil {
		backend = s.backend.Name()
	}
	s.events.Publish(Event{
		Type:      EventRecordsChanged,
		Operation: operation,
		RecordIDs: ids,
		Backend:   backend,
		Timestamp: s.clock(),
	})
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.records, func(record Record) bool {
		return record.ID == id
	})
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("record store error", attrs...)
}

func prepareLoaded(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, record := range records {
		out = append(out, record.Clone())
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		if order := b.StartTime.Compare(a.StartTime); order != 0 {
			return order
		}
		return strings.Compare(b.ID, a.ID)
	})
}
