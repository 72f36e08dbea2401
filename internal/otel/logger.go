package otel

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// queueSize bounds events waiting for the writer goroutine. Emit drops
// rather than blocks once it is full.
const queueSize = 2048

// DefaultMaxLogBytes is the size at which OpenEventLog rotates the file.
const DefaultMaxLogBytes = 8 << 20

type pending struct {
	line []byte
	ev   Event // kept whole so Dur reaches the ring
}

// Logger writes events as JSON lines. Safe for concurrent use; the methods
// of a nil *Logger do nothing, so components can run without one.
//
// Only the writer goroutine touches w. mu guards the ring pointer and is
// released before pushing.
type Logger struct {
	runID   string
	w       io.Writer
	queue   chan pending
	stopped chan struct{}

	mu   sync.Mutex
	ring *RingBuffer

	dropped atomic.Uint64
	closing atomic.Bool
	once    sync.Once
}

// NewLogger starts a Logger writing to w. Close flushes it.
func NewLogger(w io.Writer) *Logger {
	var id [8]byte
	_, _ = rand.Read(id[:])

	l := &Logger{
		runID:   hex.EncodeToString(id[:]),
		w:       w,
		queue:   make(chan pending, queueSize),
		stopped: make(chan struct{}),
	}
	go l.writeLoop()
	return l
}

// NewNullLogger returns a Logger that keeps nothing on disk. An attached
// ring still receives events.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

// OpenEventLog opens path for appending, first moving it to path+".1" when
// it has grown past maxBytes (zero selects DefaultMaxLogBytes). The caller
// closes the returned file after closing the Logger.
func OpenEventLog(path string, maxBytes int64) (*Logger, *os.File, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxLogBytes
	}
	if info, err := os.Stat(path); err == nil && info.Size() > maxBytes {
		if err := os.Rename(path, path+".1"); err != nil {
			return nil, nil, fmt.Errorf("otel: rotate %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("otel: open %s: %w", path, err)
	}
	return NewLogger(f), f, nil
}

func (l *Logger) writeLoop() {
	defer close(l.stopped)
	for p := range l.queue {
		if _, err := l.w.Write(p.line); err != nil {
			l.dropped.Add(1)
		}

		l.mu.Lock()
		ring := l.ring
		l.mu.Unlock()
		if ring != nil {
			ring.Push(p.ev)
		}
	}
}

// RunID identifies this process in every event it writes.
func (l *Logger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Emit queues e, stamping Time when unset and RunID always. It never
// blocks: a full queue, an encoding failure or a closed Logger count as a
// drop.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	if l.closing.Load() {
		l.dropped.Add(1)
		return
	}
	// Close may still win the race between the check above and the send.
	defer func() {
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.RunID = l.runID

	line, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}

	select {
	case l.queue <- pending{line: append(line, '\n'), ev: e}:
	default:
		l.dropped.Add(1)
	}
}

func (l *Logger) Info(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

func (l *Logger) Warn(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits err at error level. A nil err leaves Err empty.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	e := Event{Level: LevelError, Kind: kind, Comp: comp}
	if err != nil {
		e.Err = err.Error()
	}
	l.Emit(e)
}

// SetRingBuffer mirrors every written event into r. Nil detaches.
func (l *Logger) SetRingBuffer(r *RingBuffer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.ring = r
	l.mu.Unlock()
}

// Dropped counts events that never reached the writer.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close writes out everything queued and stops the writer. Later Emits are
// counted as drops.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.closing.Store(true)
		close(l.queue)
		<-l.stopped

		if n := l.dropped.Load(); n > 0 {
			fmt.Fprintf(os.Stderr, "deepsearch: run %s dropped %d events\n", l.runID, n)
		}
	})
}
