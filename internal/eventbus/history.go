package eventbus

import (
	"context"
	"sync"
)

// History keeps the last max events seen on a bus, oldest first. It backs
// the status command's recent-activity section.
type History struct {
	mu     sync.Mutex
	max    int
	events []Event
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = 16
	}
	return &History{max: max}
}

// Run subscribes to bus and records events until ctx is cancelled.
func (h *History) Run(ctx context.Context, bus Bus) {
	ch, unsub := bus.Subscribe(h.max)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			h.Record(e)
		}
	}
}

func (h *History) Record(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	if n := len(h.events) - h.max; n > 0 {
		h.events = append(h.events[:0], h.events[n:]...)
	}
}

// Recent returns a copy of the recorded events, oldest first.
func (h *History) Recent() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}
