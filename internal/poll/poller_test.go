package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/session"
)

// mockSource implements statusSource for testing.
type mockSource struct {
	mu    sync.Mutex
	rep   backend.StatusReport
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (m *mockSource) Status(ctx context.Context) (backend.StatusReport, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return backend.StatusReport{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rep, m.err
}

func (m *mockSource) set(rep backend.StatusReport, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rep, m.err = rep, err
}

func TestTickAdoptsStatus(t *testing.T) {
	ctrl := session.NewController(nil, nil, nil)
	src := &mockSource{rep: backend.StatusReport{Status: "processing", Progress: 30, Filename: "a.mp4"}}
	p := New(src, ctrl, nil, 0, 0)

	if !p.Tick(context.Background()) {
		t.Fatal("tick should run")
	}
	s := ctrl.Snapshot()
	if !s.BackendOnline || s.Status != session.StatusProcessing || s.Progress != 30 || s.Filename != "a.mp4" {
		t.Errorf("session after tick = %+v", s)
	}

	src.set(backend.StatusReport{Status: "completed", Progress: 100, Filename: "a.mp4"}, nil)
	p.Tick(context.Background())
	if s := ctrl.Snapshot(); s.Status != session.StatusCompleted || s.Mode() != session.ModeWorkspace {
		t.Errorf("expected completed/workspace, got %+v", s)
	}
}

func TestTickFailureKeepsSession(t *testing.T) {
	ctrl := session.NewController(nil, nil, nil)
	src := &mockSource{rep: backend.StatusReport{Status: "processing", Progress: 55, Filename: "a.mp4"}}
	p := New(src, ctrl, nil, 0, 0)
	p.Tick(context.Background())

	src.set(backend.StatusReport{}, errors.New("connection refused"))
	p.Tick(context.Background())
	p.Tick(context.Background())

	s := ctrl.Snapshot()
	if s.BackendOnline {
		t.Error("failed poll should mark backend offline")
	}
	if s.Status != session.StatusProcessing || s.Progress != 55 || s.Filename != "a.mp4" {
		t.Errorf("failed poll erased session data: %+v", s)
	}

	src.set(backend.StatusReport{Status: "processing", Progress: 60}, nil)
	p.Tick(context.Background())
	if s := ctrl.Snapshot(); !s.BackendOnline || s.Progress != 60 {
		t.Errorf("recovery tick not applied: %+v", s)
	}
}

func TestTickUnknownStatusIsOffline(t *testing.T) {
	ctrl := session.NewController(nil, nil, nil)
	src := &mockSource{rep: backend.StatusReport{Status: "offline"}}
	p := New(src, ctrl, nil, 0, 0)
	p.Tick(context.Background())

	s := ctrl.Snapshot()
	if s.BackendOnline || s.Status != session.StatusStartup {
		t.Errorf("unknown status should count as a failed poll, got %+v", s)
	}
}

func TestTickTimesOut(t *testing.T) {
	ctrl := session.NewController(nil, nil, nil)
	ctrl.ApplyPoll(ctrl.Generation(), session.PollReport{Status: session.StatusNoIndex})
	src := &mockSource{rep: backend.StatusReport{Status: "no_index"}, delay: time.Second}
	p := New(src, ctrl, nil, time.Hour, 20*time.Millisecond)

	start := time.Now()
	p.Tick(context.Background())
	if time.Since(start) > 500*time.Millisecond {
		t.Error("tick did not honor its timeout")
	}
	if ctrl.Snapshot().BackendOnline {
		t.Error("timed-out poll should mark backend offline")
	}
}

func TestTickSkipsWhileInFlight(t *testing.T) {
	ctrl := session.NewController(nil, nil, nil)
	src := &mockSource{rep: backend.StatusReport{Status: "no_index"}, delay: 100 * time.Millisecond}
	p := New(src, ctrl, nil, 0, time.Second)

	done := make(chan bool)
	go func() { done <- p.Tick(context.Background()) }()

	// Wait until the first request is in flight.
	deadline := time.Now().Add(time.Second)
	for src.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if p.Tick(context.Background()) {
		t.Error("overlapping tick should be skipped")
	}
	if !<-done {
		t.Error("first tick should have run")
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}

func TestStartPollsAndStopCancels(t *testing.T) {
	ctrl := session.NewController(nil, nil, nil)
	src := &mockSource{rep: backend.StatusReport{Status: "no_index"}}
	p := New(src, ctrl, nil, 10*time.Millisecond, time.Second)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start should fail, got %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	p.Stop()
	p.Stop()

	calls := src.calls.Load()
	if calls < 2 {
		t.Errorf("expected several ticks, got %d", calls)
	}
	if ctrl.Snapshot().Status != session.StatusNoIndex {
		t.Error("ticks were not applied")
	}

	time.Sleep(40 * time.Millisecond)
	if got := src.calls.Load(); got != calls {
		t.Errorf("poller kept running after Stop: %d -> %d calls", calls, got)
	}
}

func TestStartAfterStopFails(t *testing.T) {
	p := New(&mockSource{}, session.NewController(nil, nil, nil), nil, 0, 0)
	p.Stop()
	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start after Stop should fail, got %v", err)
	}
}

func TestStopWaitsForInFlightRequest(t *testing.T) {
	ctrl := session.NewController(nil, nil, nil)
	src := &mockSource{rep: backend.StatusReport{Status: "no_index"}, delay: 5 * time.Second}
	p := New(src, ctrl, nil, time.Hour, 10*time.Second)

	p.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for src.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	p.Stop()
	if time.Since(start) > time.Second {
		t.Error("Stop should cancel the in-flight request")
	}
	if ctrl.Snapshot().Status != session.StatusStartup {
		t.Error("cancelled request must not touch the session")
	}
}
