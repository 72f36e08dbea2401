package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/otel"
	"github.com/abelbrown/deepsearch/internal/poll"
)

func eventLine(t *testing.T, ev otel.Event) string {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestReadTailLinesKeepsLastMatching(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 10; i++ {
		kind := otel.KindPollOK
		if i%2 == 1 {
			kind = otel.KindSearchStart
		}
		fmt.Fprintln(&buf, eventLine(t, otel.Event{Kind: kind, Count: i}))
	}
	buf.WriteString("not json\n\n")

	got := readTailLines(&buf, 3, eventFilter{kind: "search"}.match)
	if len(got) != 3 {
		t.Fatalf("got %d lines, want 3", len(got))
	}
	for i, want := range []int{5, 7, 9} {
		if got[i].ev.Count != want {
			t.Errorf("line %d count = %d, want %d", i, got[i].ev.Count, want)
		}
	}
}

func TestReadTailLinesFewerThanTail(t *testing.T) {
	r := strings.NewReader(eventLine(t, otel.Event{Kind: otel.KindStartup}) + "\n")
	got := readTailLines(r, 50, eventFilter{}.match)
	if len(got) != 1 || got[0].ev.Kind != string(otel.KindStartup) {
		t.Fatalf("got %+v", got)
	}
	if readTailLines(r, 0, eventFilter{}.match) != nil {
		t.Error("tail 0 should return nothing")
	}
}

func TestEventFilter(t *testing.T) {
	ev := eventRecord{Kind: "poll.error", Level: "warn", Comp: "poll", Status: "processing", QueryID: "q1abcdef", RunID: "0123456789abcdef"}
	tests := []struct {
		name   string
		filter eventFilter
		want   bool
	}{
		{"empty", eventFilter{}, true},
		{"kind prefix", eventFilter{kind: "poll"}, true},
		{"other kind", eventFilter{kind: "search"}, false},
		{"level below", eventFilter{minLevel: "info"}, true},
		{"level above", eventFilter{minLevel: "error"}, false},
		{"comp", eventFilter{comp: "upload"}, false},
		{"qid prefix", eventFilter{qid: "q1"}, true},
		{"other qid", eventFilter{qid: "q2"}, false},
		{"run prefix", eventFilter{run: "01234567"}, true},
		{"other run", eventFilter{run: "ffff"}, false},
		{"status", eventFilter{status: "completed"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.match(ev); got != tt.want {
				t.Errorf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatEvent(t *testing.T) {
	ev := eventRecord{
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   "error",
		Kind:    "search.error",
		Comp:    "search",
		QueryID: "0123456789abcdef",
		DurMs:   12.5,
		Query:   "cat",
		Err:     "boom",
	}
	got := formatEvent(ev)
	for _, want := range []string{"03:04:05.000", "ERROR", "search.error", "(12.5ms)", `q="cat"`, "qid=01234567", "err=boom"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatEvent missing %q in %q", want, got)
		}
	}
}

func TestFollowLinesStopsOnCancel(t *testing.T) {
	r := strings.NewReader(eventLine(t, otel.Event{Kind: otel.KindPollOK}) + "\n" + `{"kind":"poll.ok"`)
	ctx, cancel := context.WithCancel(context.Background())

	var got []parsedLine
	done := make(chan struct{})
	go func() {
		followLines(ctx, r, eventFilter{}.match, func(l parsedLine) { got = append(got, l) })
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("followLines did not return after cancel")
	}
	if len(got) != 1 {
		t.Errorf("got %d lines, want 1 (partial line must wait for newline)", len(got))
	}
}

func TestPreviewFilename(t *testing.T) {
	tests := map[string]string{
		"/previews/frame_0012.jpg": "frame_0012.jpg",
		"frame.png":                "frame.png",
		"/":                        "preview.jpg",
		"":                         "preview.jpg",
	}
	for in, want := range tests {
		if got := previewFilename(in); got != want {
			t.Errorf("previewFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := truncate("hello world", 8); got != "hello..." {
		t.Errorf("got %q", got)
	}
}

// statusSequence serves /status from a fixed script, repeating the last entry.
func statusSequence(t *testing.T, script ...backend.StatusReport) *httptest.Server {
	t.Helper()
	var (
		mu sync.Mutex
		n  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		rep := script[min(n, len(script)-1)]
		n++
		mu.Unlock()
		json.NewEncoder(w).Encode(rep)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runWatchAgainst(t *testing.T, ctx context.Context, srv *httptest.Server) int {
	t.Helper()
	client, err := backend.New(srv.URL)
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl := headlessSession(client, logger)
	poller := poll.New(client, ctrl, otel.NewNullLogger(), 10*time.Millisecond, time.Second)
	return watchSession(ctx, poller, ctrl, logger)
}

func TestWatchSessionCompletes(t *testing.T) {
	srv := statusSequence(t,
		backend.StatusReport{Status: "processing", Progress: 10, Filename: "a.mp4"},
		backend.StatusReport{Status: "processing", Progress: 60, Filename: "a.mp4"},
		backend.StatusReport{Status: "completed", Progress: 100, Filename: "a.mp4"},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if code := runWatchAgainst(t, ctx, srv); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestWatchSessionFailed(t *testing.T) {
	srv := statusSequence(t,
		backend.StatusReport{Status: "processing", Progress: 10},
		backend.StatusReport{Status: "failed"},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if code := runWatchAgainst(t, ctx, srv); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestWatchSessionNothingIndexed(t *testing.T) {
	srv := statusSequence(t, backend.StatusReport{Status: "no_index"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if code := runWatchAgainst(t, ctx, srv); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestWatchSessionTimeout(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		json.NewEncoder(w).Encode(backend.StatusReport{Status: "processing", Progress: 5})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if code := runWatchAgainst(t, ctx, srv); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if polls.Load() == 0 {
		t.Error("expected at least one poll")
	}
}
