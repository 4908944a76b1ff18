package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/treedex/treedex/internal/resource"
)

// Debouncer coalesces rapid tree events to prevent index thrashing.
// Events for the same ref within the debounce window are merged
// pairwise, each against the already-coalesced pending event:
//   - CREATED + MODIFIED = CREATED (resource is still new)
//   - CREATED + REMOVED = nothing (resource never really existed)
//   - MODIFIED + REMOVED = REMOVED (resource is gone)
//   - REMOVED + CREATED = MODIFIED (resource was replaced)
//
// Chains follow from the pairs: MODIFIED, REMOVED, CREATED within one
// window ends as MODIFIED.
type Debouncer struct {
	window  time.Duration
	pending map[uint64]resource.Event
	mu      sync.Mutex
	output  chan []resource.Event
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a new debouncer with the given window duration.
// Events are coalesced within this window before being emitted.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[uint64]resource.Event),
		output:  make(chan []resource.Event, 10),
	}
}

// Add adds an event to be debounced. Events for the same ref are
// coalesced according to the coalescing rules.
func (d *Debouncer) Add(event resource.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	ref := event.Resource.Ref()
	if existing, ok := d.pending[ref]; ok {
		merged, keep := coalesce(existing, event)
		if keep {
			d.pending[ref] = merged
		} else {
			delete(d.pending, ref)
		}
	} else {
		d.pending[ref] = event
	}

	d.scheduleFlush()
}

// coalesce merges the next event into the pending one according to the
// coalescing rules. The false return means the two cancel out.
func coalesce(pending, next resource.Event) (resource.Event, bool) {
	switch pending.Operation {
	case resource.OpCreated:
		switch next.Operation {
		case resource.OpModified:
			// CREATED + MODIFIED = CREATED (keep original)
			return pending, true
		case resource.OpRemoved:
			// CREATED + REMOVED = nothing
			return resource.Event{}, false
		default:
			return next, true
		}

	case resource.OpModified:
		// Latest wins; MODIFIED + REMOVED ends as REMOVED
		return next, true

	case resource.OpRemoved:
		if next.Operation == resource.OpCreated {
			// REMOVED + CREATED = MODIFIED (resource was replaced)
			next.Operation = resource.OpModified
			return next, true
		}
		return next, true

	default:
		return next, true
	}
}

// scheduleFlush schedules a flush after the debounce window.
func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.flush()
	})
}

// flush emits all pending events.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]resource.Event, 0, len(d.pending))
	for _, ev := range d.pending {
		events = append(events, ev)
	}
	d.pending = make(map[uint64]resource.Event)

	// Non-blocking send
	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(events)),
		)
	}
}

// Output returns the channel of debounced events.
// Events are emitted as batches after the debounce window.
func (d *Debouncer) Output() <-chan []resource.Event {
	return d.output
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}

// RunDebounced consumes bus events through a debouncer so bursts of
// changes to the same resource cost one reindex instead of many.
// Removal coverage is subject to the same contract as Run: the node
// must still be attached when its removal event is applied, so hosts
// using debounced dispatch should detach only after the window.
func (d *Dispatcher) RunDebounced(ctx context.Context, bus resource.Bus, window time.Duration) error {
	deb := NewDebouncer(window)
	defer deb.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch := <-deb.Output():
			for _, ev := range batch {
				d.Handle(ev)
			}
		case ev, ok := <-bus.Events():
			if !ok {
				// Drain what the window already holds
				select {
				case batch := <-deb.Output():
					for _, e := range batch {
						d.Handle(e)
					}
				case <-time.After(window + 50*time.Millisecond):
				}
				return nil
			}
			deb.Add(ev)
		}
	}
}
