package playback

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	mpvReplyTimeout = 2 * time.Second
	mpvDialTimeout  = 5 * time.Second
)

// MPV drives an mpv process over its JSON IPC socket.
// Thread-safety: commands are serialized; safe for concurrent use.
type MPV struct {
	mu     sync.Mutex
	conn   net.Conn
	r      *bufio.Reader
	nextID int

	replyTimeout time.Duration

	cmd *exec.Cmd // nil when attached to an existing connection
}

type mpvRequest struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type mpvReply struct {
	RequestID *int            `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
}

// NewMPV attaches to an already connected IPC socket.
func NewMPV(conn net.Conn) *MPV {
	return &MPV{conn: conn, r: bufio.NewReader(conn), replyTimeout: mpvReplyTimeout}
}

// LaunchMPV starts binary in idle mode listening on socket and connects to
// it. The process is terminated by Close.
func LaunchMPV(ctx context.Context, binary, socket string) (*MPV, error) {
	if err := os.Remove(socket); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("mpv: stale socket %s: %w", socket, err)
	}

	cmd := exec.CommandContext(ctx, binary,
		"--idle=yes",
		"--force-window=yes",
		"--keep-open=yes",
		"--pause",
		"--input-ipc-server="+socket,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mpv: start %s: %w", binary, err)
	}

	deadline := time.Now().Add(mpvDialTimeout)
	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			m := NewMPV(conn)
			m.cmd = cmd
			return m, nil
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			cmd.Process.Kill()
			cmd.Wait()
			return nil, fmt.Errorf("mpv: connect %s: %w", socket, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// command sends one request and waits for its reply, skipping any
// asynchronous event lines in between.
func (m *MPV) command(args ...any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID

	if err := m.conn.SetDeadline(time.Now().Add(m.replyTimeout)); err != nil {
		return nil, fmt.Errorf("mpv: %v: %w", args[0], err)
	}
	defer m.conn.SetDeadline(time.Time{})

	line, err := json.Marshal(mpvRequest{Command: args, RequestID: id})
	if err != nil {
		return nil, err
	}
	if _, err := m.conn.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("mpv: write %v: %w", args[0], err)
	}

	for {
		raw, err := m.r.ReadBytes('\n')
		if err != nil {
			// ReadBytes consumed the partial line; its tail, if it ever
			// arrives, fails to decode and is skipped by the next command.
			return nil, fmt.Errorf("mpv: read %v: %w", args[0], err)
		}
		var rep mpvReply
		if err := json.Unmarshal(raw, &rep); err != nil {
			continue
		}
		if rep.Event != "" || rep.RequestID == nil || *rep.RequestID != id {
			continue
		}
		if rep.Error != "success" {
			return nil, fmt.Errorf("mpv: %v: %s", args[0], rep.Error)
		}
		return rep.Data, nil
	}
}

// Load replaces the current file.
func (m *MPV) Load(path string) error {
	_, err := m.command("loadfile", path, "replace")
	return err
}

// Stop unloads the current file. mpv stays idle.
func (m *MPV) Stop() error {
	_, err := m.command("stop")
	return err
}

// IsReady reports whether a file with a known duration is loaded.
func (m *MPV) IsReady() bool {
	data, err := m.command("get_property", "duration")
	if err != nil {
		return false
	}
	var d float64
	if err := json.Unmarshal(data, &d); err != nil {
		return false
	}
	return d > 0
}

func (m *MPV) Seek(ts float64) error {
	_, err := m.command("seek", ts, "absolute")
	return err
}

func (m *MPV) Play() error {
	_, err := m.command("set_property", "pause", false)
	return err
}

// Close quits a launched mpv and releases the connection.
func (m *MPV) Close() error {
	if m.cmd != nil {
		m.command("quit")
	}
	err := m.conn.Close()
	if m.cmd != nil {
		var exitErr *exec.ExitError
		if werr := m.cmd.Wait(); werr != nil && !errors.As(werr, &exitErr) {
			return werr
		}
	}
	return err
}
