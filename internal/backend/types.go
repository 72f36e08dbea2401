// Package backend is the HTTP client for the DeepSearch indexing API.
//
// The backend extracts frames, embeddings and transcripts from an uploaded
// video and ranks scenes against weighted queries. This package only speaks
// its wire contract; it holds no session state.
package backend

import (
	"errors"
	"fmt"
	"io"
)

// StatusReport is the body of GET /status.
type StatusReport struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Filename string `json:"filename,omitempty"` // null and absent both decode to ""
}

// UploadRequest is one video submission. Built once per upload action.
type UploadRequest struct {
	Filename      string
	Body          io.Reader
	FrameInterval float64 // seconds between sampled frames
}

// SearchQuery is a weighted multimodal query.
type SearchQuery struct {
	Text         string
	VisualWeight float64
	TextWeight   float64
}

// SearchResult is one ranked scene, in backend order.
type SearchResult struct {
	Timestamp         float64 `json:"timestamp"`
	PreviewPath       string  `json:"preview_path"`
	TranscriptSnippet string  `json:"transcript_snippet"`
}

// ErrResetRejected is returned when /reset answers 200 but reports an error
// in its body.
var ErrResetRejected = errors.New("backend: reset rejected")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: %s returned status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("backend: %s returned status %d: %s", e.Op, e.Code, e.Body)
}
