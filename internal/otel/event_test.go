package otel

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEventKindParts(t *testing.T) {
	tests := []struct {
		kind    EventKind
		sub     string
		failure bool
	}{
		{KindPollOK, "poll", false},
		{KindPollError, "poll", true},
		{KindTransition, "session", false},
		{KindPlaybackError, "playback", true},
		{KindError, "sys", true},
		{EventKind("bare"), "bare", false},
	}
	for _, tt := range tests {
		if got := tt.kind.Subsystem(); got != tt.sub {
			t.Errorf("%s.Subsystem() = %q, want %q", tt.kind, got, tt.sub)
		}
		if got := tt.kind.Failure(); got != tt.failure {
			t.Errorf("%s.Failure() = %v, want %v", tt.kind, got, tt.failure)
		}
	}
}

func TestMarshalKeepsExplicitDurMs(t *testing.T) {
	b, err := json.Marshal(Event{Kind: KindSearchComplete, DurMs: 12.5})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"dur_ms":12.5`) {
		t.Errorf("explicit DurMs lost: %s", b)
	}
}
