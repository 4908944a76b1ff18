package resource

import (
	"sync"
	"time"
)

// Operation represents a resource lifecycle event type.
type Operation int

const (
	// OpCreated indicates a new resource was added to the tree.
	OpCreated Operation = iota
	// OpModified indicates an existing resource changed.
	OpModified
	// OpRemoved indicates a resource was removed from the tree.
	OpRemoved
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreated:
		return "CREATED"
	case OpModified:
		return "MODIFIED"
	case OpRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Event is one resource lifecycle notification.
type Event struct {
	// Operation is the lifecycle transition.
	Operation Operation

	// Resource is the affected resource.
	Resource Resource

	// Timestamp is when the event was emitted.
	Timestamp time.Time
}

// Bus delivers resource lifecycle events. The indexing dispatcher
// subscribes to created, modified, and removed notifications.
type Bus interface {
	// Events returns the event channel. The channel is closed when the
	// bus shuts down.
	Events() <-chan Event
}

// MemoryBus is an in-process Bus with a buffered channel.
type MemoryBus struct {
	ch chan Event

	mu     sync.Mutex
	closed bool
}

// NewMemoryBus creates a bus with the given channel buffer size.
func NewMemoryBus(buffer int) *MemoryBus {
	return &MemoryBus{ch: make(chan Event, buffer)}
}

// Events returns the event channel.
func (b *MemoryBus) Events() <-chan Event {
	return b.ch
}

// Publish emits an event. Publishing to a closed bus is a no-op.
func (b *MemoryBus) Publish(op Operation, res Resource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.ch <- Event{Operation: op, Resource: res, Timestamp: time.Now()}
}

// Close shuts down the bus and closes the event channel.
// Safe to call multiple times.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}
