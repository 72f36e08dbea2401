package otel

import "testing"

func TestTraceEnabledToggle(t *testing.T) {
	orig := TraceEnabled()
	defer setTraceEnabled(orig)

	setTraceEnabled(true)
	if !TraceEnabled() {
		t.Error("TraceEnabled() should be true after setTraceEnabled(true)")
	}
	setTraceEnabled(false)
	if TraceEnabled() {
		t.Error("TraceEnabled() should be false after setTraceEnabled(false)")
	}
}

type pingMsg struct{}

func TestTraceEmitsReceivedAndHandled(t *testing.T) {
	orig := TraceEnabled()
	defer setTraceEnabled(orig)
	setTraceEnabled(true)

	ring := NewRingBuffer(8)
	l := NewNullLogger()
	l.SetRingBuffer(ring)

	done := Trace(l, "ui", pingMsg{})
	done()
	l.Close()

	got := ring.Snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Kind != KindMsgReceived || got[1].Kind != KindMsgHandled {
		t.Errorf("kinds = %s, %s", got[0].Kind, got[1].Kind)
	}
	if got[0].Msg != "otel.pingMsg" {
		t.Errorf("msg = %q, want otel.pingMsg", got[0].Msg)
	}
}

func TestTraceDisabledEmitsNothing(t *testing.T) {
	orig := TraceEnabled()
	defer setTraceEnabled(orig)
	setTraceEnabled(false)

	ring := NewRingBuffer(8)
	l := NewNullLogger()
	l.SetRingBuffer(ring)

	Trace(l, "ui", pingMsg{})()
	Trace(nil, "ui", pingMsg{})()
	l.Close()

	if ring.Len() != 0 {
		t.Errorf("expected no events, got %d", ring.Len())
	}
}
