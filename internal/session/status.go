package session

import "fmt"

// Status is the backend indexing state as tracked by the client.
type Status string

const (
	StatusStartup    Status = "startup"
	StatusNoIndex    Status = "no_index"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus maps a backend status string onto one of the six known values.
// Anything else (the backend says "offline" when its database is down) is an
// error.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusStartup, StatusNoIndex, StatusUploading, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("session: unknown status %q", s)
}

// Active reports whether progress is meaningful in this status.
func (s Status) Active() bool {
	return s == StatusUploading || s == StatusProcessing
}

// Mode is the UI mode implied by a status.
type Mode int

const (
	ModeUpload Mode = iota
	ModeProgress
	ModeWorkspace
)

func (m Mode) String() string {
	switch m {
	case ModeUpload:
		return "upload"
	case ModeProgress:
		return "progress"
	case ModeWorkspace:
		return "workspace"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Mode returns the UI mode for s.
func (s Status) Mode() Mode {
	switch s {
	case StatusUploading, StatusProcessing:
		return ModeProgress
	case StatusCompleted, StatusFailed:
		return ModeWorkspace
	default:
		return ModeUpload
	}
}

// pollAdoptable reports whether a poll issued after the latest local
// transition may move the session from one status to another. Uploading is
// owned by the client until the submission returns, and a processing
// session cannot fall back to no_index by poll, since the backend may not
// have registered the file yet. Everything else follows the backend, which
// picks up resets and uploads made by other clients.
func pollAdoptable(from, to Status) bool {
	switch {
	case from == to:
		return true
	case from == StatusUploading:
		return false
	case from == StatusProcessing:
		return to != StatusNoIndex && to != StatusUploading
	}
	return true
}
