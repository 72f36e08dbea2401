package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/creack/pty"
)

// buildClient builds the deepsearch binary for testing.
func buildClient(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping TUI build in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	binPath := filepath.Join(t.TempDir(), "deepsearch")

	rootDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// Assume we are in test/e2e, go up 2 levels
	rootDir = filepath.Join(rootDir, "..", "..")

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/deepsearch")
	cmd.Dir = rootDir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return binPath
}

// The app runs on the console's own terminal, so keys sent through the
// console reach it and its screen is what ExpectString matches.
func TestE2E_TUI_UploadSearchQuit(t *testing.T) {
	binPath := buildClient(t)
	_, srv := newFakeBackend(t)
	video := writeVideo(t, "clip.mp4")

	var outputBuf bytes.Buffer
	// Startup waits on terminal capability queries before the first frame.
	console, err := expect.NewConsole(
		expect.WithStdout(&outputBuf),
		expect.WithDefaultTimeout(20*time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create console: %v", err)
	}
	defer console.Close()
	if err := pty.Setsize(console.Tty(), &pty.Winsize{Cols: 120, Rows: 40}); err != nil {
		t.Fatalf("failed to set terminal size: %v", err)
	}

	// Clean home so config and the event log land in a temp ~/.deepsearch
	homeDir := t.TempDir()
	cmd := exec.Command(binPath)
	cmd.Env = append(os.Environ(),
		"HOME="+homeDir,
		"DEEPSEARCH_API_URL="+srv.URL,
		"DEEPSEARCH_MPV=",
		"DEEPSEARCH_TRACE=1",
	)
	cmd.Stdin = console.Tty()
	cmd.Stdout = console.Tty()
	cmd.Stderr = console.Tty()
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	defer func() {
		_ = cmd.Process.Kill()
		<-done
	}()

	fail := func(step string, err error) {
		t.Helper()
		if logs, rerr := os.ReadFile(filepath.Join(homeDir, ".deepsearch", "deepsearch.events.jsonl")); rerr == nil {
			t.Logf("event log:\n%s", logs)
		}
		t.Fatalf("%s: %v\nOutput buffer:\n%s", step, err, outputBuf.String())
	}
	send := func(what, s string) {
		t.Helper()
		if _, err := console.Send(s); err != nil {
			t.Fatalf("failed to send %s: %v", what, err)
		}
	}

	// 1. First poll brings the backend online
	if _, err := console.ExpectString("System Ready"); err != nil {
		fail("backend never reported ready", err)
	}

	// 2. Upload. Enter goes separately so the path is not read as a paste.
	send("path", video)
	time.Sleep(100 * time.Millisecond)
	send("enter", "\r")

	// 3. Workspace appears once indexing completes
	if _, err := console.ExpectString("■ clip.mp4"); err != nil {
		fail("workspace not shown", err)
	}

	// 4. Search and see ranked timestamps
	send("query", "red car")
	time.Sleep(100 * time.Millisecond)
	send("enter", "\r")
	if _, err := console.ExpectString("00:00:12"); err != nil {
		fail("first result not rendered", err)
	}
	if _, err := console.ExpectString("01:23"); err != nil {
		fail("second result not rendered", err)
	}

	// 5. Quit
	send("ctrl+c", "\x03")
	select {
	case <-done:
		done <- nil // for the deferred cleanup
	case <-time.After(5 * time.Second):
		t.Error("process did not exit after ctrl+c")
	}
}
