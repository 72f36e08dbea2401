// Package upload submits a local video to the backend for indexing.
package upload

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/otel"
	"github.com/abelbrown/deepsearch/internal/session"
)

// Frame sampling interval bounds, in seconds.
const (
	MinFrameInterval     = 0.5
	MaxFrameInterval     = 5.0
	FrameIntervalStep    = 0.5
	DefaultFrameInterval = 1.0
)

var (
	// ErrNoFile is returned when no readable file was selected.
	ErrNoFile = errors.New("upload: no file selected")

	// ErrIntervalOutOfRange is returned for frame intervals outside
	// [MinFrameInterval, MaxFrameInterval].
	ErrIntervalOutOfRange = errors.New("upload: frame interval out of range")
)

const comp = "upload"

// submitter is the slice of the backend client the uploader needs.
type submitter interface {
	Upload(ctx context.Context, req backend.UploadRequest) error
}

// Uploader runs the upload lifecycle: local media reference, uploading,
// submission, then processing or back to no_index.
type Uploader struct {
	backend submitter
	ctrl    *session.Controller
	notify  session.Notifier
	log     *otel.Logger

	mu            sync.Mutex
	frameInterval float64
}

// New creates an Uploader with the default frame interval.
func New(b submitter, ctrl *session.Controller, notify session.Notifier, log *otel.Logger) *Uploader {
	return &Uploader{
		backend:       b,
		ctrl:          ctrl,
		notify:        notify,
		log:           log,
		frameInterval: DefaultFrameInterval,
	}
}

// ValidFrameInterval reports whether v is an acceptable sampling interval.
func ValidFrameInterval(v float64) bool {
	return !math.IsNaN(v) && v >= MinFrameInterval && v <= MaxFrameInterval
}

// SetFrameInterval changes the interval used by later uploads. Out-of-range
// values are rejected, not clamped.
func (u *Uploader) SetFrameInterval(v float64) error {
	if !ValidFrameInterval(v) {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrIntervalOutOfRange, v, MinFrameInterval, MaxFrameInterval)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.frameInterval = v
	return nil
}

// FrameInterval returns the interval the next upload will use.
func (u *Uploader) FrameInterval() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.frameInterval
}

// Upload submits the video at path. Without a file, or with the backend
// offline, it does nothing and returns ErrNoFile or session.ErrOffline.
// A rejected submission reverts the session to no_index, shows a notice and
// returns the backend error; the local media reference is kept. A reset
// while the file is being sent cancels the request without a notice.
func (u *Uploader) Upload(ctx context.Context, path string) error {
	if path == "" {
		return ErrNoFile
	}
	if !u.ctrl.Snapshot().BackendOnline {
		return session.ErrOffline
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoFile, err)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoFile, path)
	}

	ref := &session.MediaRef{Path: abs, Name: filepath.Base(abs), Size: info.Size()}
	gen, err := u.ctrl.BeginUpload(ref)
	if err != nil {
		return err
	}

	// a reset aborts the transfer
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	u.ctrl.AttachUploadCancel(gen, cancel)

	interval := u.FrameInterval()
	u.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindUploadStart, Comp: comp,
		Msg: ref.Name, Count: int(ref.Size), Extra: map[string]any{"frame_interval": interval}})

	start := time.Now()
	if err := u.submit(ctx, ref, interval); err != nil {
		u.log.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindUploadError, Comp: comp,
			Msg: ref.Name, Dur: time.Since(start), Err: err.Error()})
		if u.ctrl.UploadFailed(gen) == nil && u.notify != nil {
			u.notify.Notify("Upload failed")
		}
		return err
	}

	u.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindUploadComplete, Comp: comp,
		Msg: ref.Name, Dur: time.Since(start)})
	// A reset during the upload makes this outcome stale; that is fine.
	_ = u.ctrl.UploadSubmitted(gen)
	return nil
}

func (u *Uploader) submit(ctx context.Context, ref *session.MediaRef, interval float64) error {
	f, err := os.Open(ref.Path)
	if err != nil {
		return fmt.Errorf("upload: open %s: %w", ref.Name, err)
	}
	defer f.Close()

	return u.backend.Upload(ctx, backend.UploadRequest{
		Filename:      ref.Name,
		Body:          f,
		FrameInterval: interval,
	})
}
