// Package ui provides the Bubble Tea TUI for DeepSearch.
package ui

import "github.com/abelbrown/deepsearch/internal/session"

// SessionChanged carries a snapshot published by the session controller.
// Snapshots older than the one already shown are dropped.
type SessionChanged struct {
	Session session.Session
}

// Notice is a user-visible message, e.g. "Upload failed".
type Notice struct {
	Text string
}

// UploadDone is sent when an upload action returns.
type UploadDone struct {
	Path string
	Err  error
}

// SearchDone is sent when a search returns. Results themselves arrive via
// SessionChanged.
type SearchDone struct {
	Query   string
	Results int
	Err     error
}

// ResetDone is sent when the reset action returns.
type ResetDone struct {
	Err error
}

// JumpDone is sent when a seek request returns.
type JumpDone struct {
	Timestamp float64
	Err       error
}

// HistoryLoaded carries recent distinct queries, newest first.
type HistoryLoaded struct {
	Queries []string
	Err     error
}

// SettingsApplied is sent after a weight or frame interval change.
type SettingsApplied struct {
	Err error
}
