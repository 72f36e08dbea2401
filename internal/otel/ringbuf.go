package otel

import (
	"maps"
	"sync"
	"time"
)

// DefaultRingSize is how many events the debug overlay keeps by default.
const DefaultRingSize = 512

// RingBuffer keeps the most recent events in memory, evicting the oldest.
// Safe for concurrent use.
type RingBuffer struct {
	mu     sync.Mutex
	slots  []Event
	pushed uint64 // total ever pushed; slot of push n is n % len(slots)
}

// NewRingBuffer returns a RingBuffer holding up to size events. A size of
// zero or less selects DefaultRingSize.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{slots: make([]Event, size)}
}

// Push records e. Extra is cloned so the caller keeps ownership of its map.
func (r *RingBuffer) Push(e Event) {
	if e.Extra != nil {
		e.Extra = maps.Clone(e.Extra)
	}
	r.mu.Lock()
	r.slots[r.pushed%uint64(len(r.slots))] = e
	r.pushed++
	r.mu.Unlock()
}

// held returns how many slots are filled. Caller holds r.mu.
func (r *RingBuffer) held() int {
	if r.pushed < uint64(len(r.slots)) {
		return int(r.pushed)
	}
	return len(r.slots)
}

// each calls fn newest first until it returns false. Caller holds r.mu.
func (r *RingBuffer) each(fn func(Event) bool) {
	size := uint64(len(r.slots))
	for i := 0; i < r.held(); i++ {
		if !fn(r.slots[(r.pushed-1-uint64(i))%size]) {
			return
		}
	}
}

// Snapshot copies every held event, oldest first.
func (r *RingBuffer) Snapshot() []Event {
	return r.Last(r.Cap())
}

// Last copies up to n of the newest events, oldest first. It returns nil
// when n <= 0 or nothing is held.
func (r *RingBuffer) Last(n int) []Event {
	if n <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n = min(n, r.held())
	if n == 0 {
		return nil
	}
	out := make([]Event, n)
	i := n - 1
	r.each(func(e Event) bool {
		out[i] = e
		i--
		return i >= 0
	})
	return out
}

func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held()
}

func (r *RingBuffer) Cap() int {
	return len(r.slots)
}

// Stats counts held events per kind.
func (r *RingBuffer) Stats() map[EventKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[EventKind]int)
	r.each(func(e Event) bool {
		counts[e.Kind]++
		return true
	})
	return counts
}

// LastOf returns the newest held event of kind.
func (r *RingBuffer) LastOf(kind EventKind) (Event, bool) {
	return r.newest(func(e Event) bool { return e.Kind == kind })
}

// LastFailure returns the newest held event whose kind is a failure.
func (r *RingBuffer) LastFailure() (Event, bool) {
	return r.newest(func(e Event) bool { return e.Kind.Failure() })
}

func (r *RingBuffer) newest(match func(Event) bool) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		found Event
		ok    bool
	)
	r.each(func(e Event) bool {
		if match(e) {
			found, ok = e, true
			return false
		}
		return true
	})
	return found, ok
}

// Latency averages Dur over held events of kind that carry one.
func (r *RingBuffer) Latency(kind EventKind) (avg time.Duration, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total time.Duration
	r.each(func(e Event) bool {
		if e.Kind == kind && e.Dur > 0 {
			total += e.Dur
			n++
		}
		return true
	})
	if n == 0 {
		return 0, 0
	}
	return total / time.Duration(n), n
}
