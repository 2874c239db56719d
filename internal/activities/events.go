package activities

import (
	"context"
	"sync"
	"time"
)

// EventType names a store notification.
type EventType string

const (
	// EventRecordsChanged follows every successful mutation.
	EventRecordsChanged EventType = "records-changed"
	// EventSaveFailed follows a mutation whose durable write failed.
	EventSaveFailed EventType = "save-failed"
	// EventBackendChanged follows a successful Rebind.
	EventBackendChanged EventType = "backend-changed"
)

// Event is published by the Store to its subscribers.
type Event struct {
	Type      EventType
	Operation string
	RecordIDs []string
	Backend   string
	Err       error
	Timestamp time.Time
}

// EventDispatcher fans events out to subscribers without blocking the publisher.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      int64
	bufferSize  int
	watchers    sync.WaitGroup
}

// NewEventDispatcher constructs an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]chan Event),
		bufferSize:  16,
	}
}

// Subscribe registers a listener until ctx ends or the returned cleanup runs.
func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan Event, func()) {
	stream := make(chan Event, d.bufferSize)

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = stream
	d.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
			close(done)
		})
	}
	d.watchers.Add(1)
	go func() {
		defer d.watchers.Done()
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return stream, cleanup
}

// Publish delivers event to every subscriber with buffer space; slow
// subscribers miss it.
func (d *EventDispatcher) Publish(event Event) {
	if event.Type == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	d.mu.RLock()
	streams := make([]chan Event, 0, len(d.subscribers))
	for _, stream := range d.subscribers {
		streams = append(streams, stream)
	}
	d.mu.RUnlock()
	for _, stream := range streams {
		select {
		case stream <- event:
		default:
		}
	}
}
