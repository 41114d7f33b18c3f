// Package events carries record lifecycle notifications between the record
// store and the components that derive data from records.
package events

import (
	"sync"
	"time"
)

// EventType represents the type of record event.
type EventType string

const (
	// EventRecordChanged follows a committed push of a record.
	EventRecordChanged EventType = "record_changed"
	// EventRecordDeleted follows a committed delete of a record.
	EventRecordDeleted EventType = "record_deleted"
	EventRecordIndexed  EventType = "record_indexed"
	EventIndexFailed    EventType = "index_failed"
	EventGuardViolation EventType = "guard_violation"
	EventToolCall       EventType = "tool_call"
)

// Event represents a record event with associated data.
type Event struct {
	Type      EventType
	Timestamp time.Time
	RecordID  int64
	Key       string
	Data      map[string]any
}

// EventHandler is a function that handles events. Handlers run synchronously
// on the publishing goroutine.
type EventHandler func(Event)

// Bus manages event publication and subscription.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, handler)
}

// Publish sends an event to all registered handlers. A nil bus drops the
// event.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	// Snapshot so handlers may publish or subscribe without deadlocking.
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[event.Type]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, handler := range handlers {
		handler(event)
	}
}

// PublishRecord publishes an event about a single record.
func (b *Bus) PublishRecord(eventType EventType, recordID int64, key string, data map[string]any) {
	b.Publish(Event{
		Type:     eventType,
		RecordID: recordID,
		Key:      key,
		Data:     data,
	})
}
