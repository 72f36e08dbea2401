package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/deepsearch/internal/backend"
)

// fakeBackend is an in-memory stand-in for the indexing API. Indexing
// advances by step percent on every /status call while processing.
type fakeBackend struct {
	mu       sync.Mutex
	status   string
	progress int
	filename string
	step     int
	failAt   int // >0: indexing fails once progress reaches it
	down     bool

	uploads    int
	uploadSize int64
	interval   string
	resets     int
	queries    []url.Values
	results    []backend.SearchResult
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{
		status: "no_index",
		step:   25,
		results: []backend.SearchResult{
			{Timestamp: 12.5, PreviewPath: "/previews/frame_0012.jpg", TranscriptSnippet: "a red car turns left"},
			{Timestamp: 83, PreviewPath: "/previews/frame_0083.jpg", TranscriptSnippet: "the car stops at the light"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", fb.handleStatus)
	mux.HandleFunc("POST /upload", fb.handleUpload)
	mux.HandleFunc("POST /reset", fb.handleReset)
	mux.HandleFunc("GET /search", fb.handleSearch)
	mux.HandleFunc("GET /previews/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		io.WriteString(w, "jpeg:"+r.PathValue("name"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) setDown(down bool) {
	fb.mu.Lock()
	fb.down = down
	fb.mu.Unlock()
}

func (fb *fakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.down {
		http.Error(w, `{"status":"offline"}`, http.StatusServiceUnavailable)
		return
	}
	if fb.status == "processing" {
		fb.progress = min(fb.progress+fb.step, 100)
		switch {
		case fb.failAt > 0 && fb.progress >= fb.failAt:
			fb.status = "failed"
		case fb.progress == 100:
			fb.status = "completed"
		}
	}
	writeJSON(w, backend.StatusReport{Status: fb.status, Progress: fb.progress, Filename: fb.filename})
}

func (fb *fakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	n, _ := io.Copy(io.Discard, file)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.uploads++
	fb.uploadSize = n
	fb.interval = r.FormValue("frame_interval")
	fb.status = "processing"
	fb.progress = 0
	fb.filename = hdr.Filename
	writeJSON(w, map[string]string{"message": "indexing started"})
}

func (fb *fakeBackend) handleReset(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.resets++
	fb.status = "no_index"
	fb.progress = 0
	fb.filename = ""
	writeJSON(w, map[string]string{"status": "ok"})
}

func (fb *fakeBackend) handleSearch(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.queries = append(fb.queries, r.URL.Query())
	if fb.status != "completed" {
		http.Error(w, `{"detail":"no index"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, fb.results)
}

func (fb *fakeBackend) lastQuery() url.Values {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.queries) == 0 {
		return nil
	}
	return fb.queries[len(fb.queries)-1]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeVideo creates a small stand-in video file.
func writeVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, 64*1024), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
