package otel

import (
	"sync"
	"testing"
	"time"
)

func TestPushAndSnapshot(t *testing.T) {
	r := NewRingBuffer(8)
	for i := 0; i < 5; i++ {
		r.Push(Event{Kind: KindPollOK, Count: i})
	}

	snap := r.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("expected 5 events, got %d", len(snap))
	}
	for i, e := range snap {
		if e.Count != i {
			t.Errorf("snap[%d].Count=%d, want %d", i, e.Count, i)
		}
	}
}

func TestWrapAround(t *testing.T) {
	r := NewRingBuffer(4)
	for i := 0; i < 8; i++ {
		r.Push(Event{Kind: KindPollOK, Count: i})
	}

	snap := r.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 events, got %d", len(snap))
	}
	// Oldest four evicted
	for i, e := range snap {
		if want := i + 4; e.Count != want {
			t.Errorf("snap[%d].Count=%d, want %d", i, e.Count, want)
		}
	}
}

func TestLastWrapped(t *testing.T) {
	r := NewRingBuffer(4)
	for i := 0; i < 6; i++ {
		r.Push(Event{Kind: KindPollOK, Count: i})
	}

	last2 := r.Last(2)
	if len(last2) != 2 {
		t.Fatalf("expected 2, got %d", len(last2))
	}
	if last2[0].Count != 4 || last2[1].Count != 5 {
		t.Errorf("expected [4,5], got [%d,%d]", last2[0].Count, last2[1].Count)
	}

	if got := r.Last(100); len(got) != 4 {
		t.Errorf("Last(100) returned %d events, want 4", len(got))
	}
	if got := r.Last(0); got != nil {
		t.Errorf("Last(0) = %v, want nil", got)
	}
}

func TestStats(t *testing.T) {
	r := NewRingBuffer(16)
	r.Push(Event{Kind: KindPollOK})
	r.Push(Event{Kind: KindPollOK})
	r.Push(Event{Kind: KindSearchComplete})
	r.Push(Event{Kind: KindPollError})
	r.Push(Event{Kind: KindPollError})
	r.Push(Event{Kind: KindPollError})

	stats := r.Stats()
	if stats[KindPollOK] != 2 {
		t.Errorf("poll.ok=%d, want 2", stats[KindPollOK])
	}
	if stats[KindSearchComplete] != 1 {
		t.Errorf("search.complete=%d, want 1", stats[KindSearchComplete])
	}
	if stats[KindPollError] != 3 {
		t.Errorf("poll.error=%d, want 3", stats[KindPollError])
	}
}

func TestConcurrentPushSnapshot(t *testing.T) {
	r := NewRingBuffer(256)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Push(Event{Kind: KindPollOK})
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.Snapshot()
				_ = r.Last(10)
				_ = r.Stats()
			}
		}()
	}

	wg.Wait()
	if r.Len() != 256 {
		t.Errorf("Len() = %d, want 256", r.Len())
	}
}

func TestEmptySnapshot(t *testing.T) {
	r := NewRingBuffer(8)
	if snap := r.Snapshot(); snap != nil {
		t.Errorf("expected nil, got %v", snap)
	}
}

func TestExtraIsCopied(t *testing.T) {
	r := NewRingBuffer(4)
	extra := map[string]any{"key": "original"}
	r.Push(Event{Kind: KindStartup, Extra: extra})

	extra["key"] = "mutated"

	snap := r.Snapshot()
	if snap[0].Extra["key"] != "original" {
		t.Errorf("extra was aliased: got %v, want 'original'", snap[0].Extra["key"])
	}
}

func TestDefaultRingSize(t *testing.T) {
	if got := NewRingBuffer(0).Cap(); got != DefaultRingSize {
		t.Errorf("Cap() = %d, want %d", got, DefaultRingSize)
	}
}

func TestRingBufferWithLogger(t *testing.T) {
	r := NewRingBuffer(16)
	l := NewNullLogger()
	l.SetRingBuffer(r)

	l.Emit(Event{Kind: KindStartup, Msg: "hello"})
	l.Emit(Event{Kind: KindShutdown, Msg: "bye"})
	l.Close() // waits for drain

	last := r.Last(2)
	if len(last) != 2 {
		t.Fatalf("expected 2 events in ring buffer, got %d", len(last))
	}
	if last[0].Kind != KindStartup || last[1].Kind != KindShutdown {
		t.Errorf("unexpected order: %v, %v", last[0].Kind, last[1].Kind)
	}
}

func TestLastOf(t *testing.T) {
	r := NewRingBuffer(4)
	if _, ok := r.LastOf(KindPollOK); ok {
		t.Error("empty ring should report no poll.ok")
	}

	r.Push(Event{Kind: KindPollOK, Status: "processing"})
	r.Push(Event{Kind: KindSearchStart})
	r.Push(Event{Kind: KindPollOK, Status: "completed"})
	r.Push(Event{Kind: KindSearchComplete})

	e, ok := r.LastOf(KindPollOK)
	if !ok || e.Status != "completed" {
		t.Errorf("LastOf(poll.ok) = %+v, %v; want the completed poll", e, ok)
	}
}

func TestLastFailure(t *testing.T) {
	r := NewRingBuffer(8)
	r.Push(Event{Kind: KindPollError, Err: "timeout"})
	r.Push(Event{Kind: KindUploadError, Err: "refused"})
	r.Push(Event{Kind: KindPollOK})

	e, ok := r.LastFailure()
	if !ok || e.Err != "refused" {
		t.Errorf("LastFailure() = %+v, %v; want the upload error", e, ok)
	}

	clean := NewRingBuffer(8)
	clean.Push(Event{Kind: KindPollOK})
	if _, ok := clean.LastFailure(); ok {
		t.Error("ring without failures should report none")
	}
}

func TestLatency(t *testing.T) {
	r := NewRingBuffer(3)
	r.Push(Event{Kind: KindPollOK, Dur: 900 * time.Millisecond}) // evicted below
	r.Push(Event{Kind: KindPollOK, Dur: 10 * time.Millisecond})
	r.Push(Event{Kind: KindPollOK})
	r.Push(Event{Kind: KindPollOK, Dur: 30 * time.Millisecond})

	avg, n := r.Latency(KindPollOK)
	if n != 2 || avg != 20*time.Millisecond {
		t.Errorf("Latency = %v over %d, want 20ms over 2", avg, n)
	}
	if avg, n := r.Latency(KindSearchComplete); avg != 0 || n != 0 {
		t.Errorf("Latency of absent kind = %v over %d", avg, n)
	}
}
