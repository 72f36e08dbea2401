// Package session owns the client's view of the indexing session.
//
// A single Controller holds the Session value and is the only writer of it.
// The poller, uploader and search controller report outcomes to the
// Controller, which decides whether they still apply.
package session

import (
	"context"

	"github.com/abelbrown/deepsearch/internal/backend"
)

// MediaRef is a handle to the local copy of the uploaded video, used for
// in-place playback. It is never sent to or derived from the backend.
type MediaRef struct {
	Path string
	Name string
	Size int64
}

// Session is the client's state. Values returned by the Controller are
// copies and safe to keep.
type Session struct {
	Status        Status
	Progress      int // 0-100, meaningful while Status.Active()
	Filename      string
	BackendOnline bool
	Media         *MediaRef // nil after reset or before any upload in this process
	Query         string    // text of the query that produced Results
	Results       []backend.SearchResult

	// Version increases with every committed change. Observers receive
	// snapshots from several goroutines and use it to drop stale ones.
	Version uint64
}

// Mode is the UI mode implied by the session status.
func (s Session) Mode() Mode {
	return s.Status.Mode()
}

// NeedsReupload reports whether the workspace is shown without a local copy
// of the video, e.g. after the client restarted mid-session.
func (s Session) NeedsReupload() bool {
	return s.Mode() == ModeWorkspace && s.Media == nil
}

func (s Session) clone() Session {
	if s.Media != nil {
		m := *s.Media
		s.Media = &m
	}
	if s.Results != nil {
		s.Results = append([]backend.SearchResult(nil), s.Results...)
	}
	return s
}

// PollReport is a parsed /status response.
type PollReport struct {
	Status   Status
	Progress int
	Filename string
}

// Notifier surfaces user-visible notices.
type Notifier interface {
	Notify(msg string)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(msg string)

// Notify calls f(msg).
func (f NotifyFunc) Notify(msg string) { f(msg) }

// Resetter clears backend-side indexing state.
type Resetter interface {
	Reset(ctx context.Context) error
}
