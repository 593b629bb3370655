package otel

import "sync"

// DefaultRingSize is the default ring capacity.
const DefaultRingSize = 512

// RingBuffer keeps the most recent events in memory. Goroutine-safe.
type RingBuffer struct {
	mu     sync.Mutex
	events []Event
	next   int  // slot the next Push writes
	full   bool // every slot holds an event
}

// NewRingBuffer creates a ring with the given capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{events: make([]Event, size)}
}

// Push stores e, overwriting the oldest event when full. Extra is copied
// so later mutation by the emitter cannot change the stored event.
func (r *RingBuffer) Push(e Event) {
	if e.Extra != nil {
		cp := make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			cp[k] = v
		}
		e.Extra = cp
	}

	r.mu.Lock()
	r.events[r.next] = e
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Len returns the number of stored events.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *RingBuffer) lenLocked() int {
	if r.full {
		return len(r.events)
	}
	return r.next
}

// Cap returns the capacity.
func (r *RingBuffer) Cap() int {
	return len(r.events)
}

// Snapshot returns every stored event, oldest first.
func (r *RingBuffer) Snapshot() []Event {
	return r.Last(r.Cap())
}

// Last returns up to n of the newest events, oldest first.
func (r *RingBuffer) Last(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if count := r.lenLocked(); n > count {
		n = count
	}
	if n <= 0 {
		return nil
	}

	out := make([]Event, n)
	size := len(r.events)
	start := (r.next - n + size) % size
	for i := 0; i < n; i++ {
		out[i] = r.events[(start+i)%size]
	}
	return out
}

// LastOf returns the newest event of the given kind.
func (r *RingBuffer) LastOf(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.events)
	for i := 1; i <= r.lenLocked(); i++ {
		e := r.events[(r.next-i+size)%size]
		if e.Kind == kind {
			return e, true
		}
	}
	return Event{}, false
}

// Counts tallies stored events by kind.
func (r *RingBuffer) Counts() map[EventKind]int {
	counts := make(map[EventKind]int)
	for _, e := range r.Snapshot() {
		counts[e.Kind]++
	}
	return counts
}
