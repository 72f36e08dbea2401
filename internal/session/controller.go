package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/otel"
)

var (
	// ErrOffline is returned for actions that need a reachable backend.
	ErrOffline = errors.New("session: backend offline")

	// ErrInvalidTransition is returned when an action is not allowed from
	// the current status.
	ErrInvalidTransition = errors.New("session: invalid transition")

	// ErrStale is returned when an outcome arrives after a newer local
	// action superseded the one that produced it.
	ErrStale = errors.New("session: stale outcome")
)

const comp = "session"

// Controller is the single owner of the Session. All methods are safe for
// concurrent use; observers are called outside the lock, in commit order per
// goroutine, so they must compare Session.Version.
type Controller struct {
	mu    sync.Mutex
	s     Session
	gen   uint64 // bumped by every local status write
	epoch uint64 // bumped by every reset

	backend   Resetter
	notify    Notifier
	log       *otel.Logger
	observers []func(Session)

	cancelUpload context.CancelFunc // aborts the in-flight upload on reset
}

// NewController creates a Controller in the startup state. backend and
// notify may be nil (reset then only clears local state, notices are
// dropped).
func NewController(backend Resetter, notify Notifier, log *otel.Logger) *Controller {
	return &Controller{
		s:       Session{Status: StatusStartup},
		backend: backend,
		notify:  notify,
		log:     log,
	}
}

// Subscribe registers fn to receive a snapshot after every committed change.
// Must be called before the controller is shared.
func (c *Controller) Subscribe(fn func(Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.clone()
}

// Generation identifies the latest local status write. Pollers capture it
// before a request and hand it back with the response.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// ResultsEpoch identifies the latest reset. Searches capture it before a
// request so results never outlive a reset.
func (c *Controller) ResultsEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// ApplyPoll reconciles a successful poll. The backend is marked online in
// every case; status, progress and filename are only written when no local
// transition happened since gen was captured and the status change is one a
// poll may make. Reports whether the status changed.
func (c *Controller) ApplyPoll(gen uint64, rep PollReport) bool {
	c.mu.Lock()
	before := c.s
	c.s.BackendOnline = true

	switch {
	case gen != c.gen:
		c.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindStale, Comp: comp,
			Status: string(c.s.Status), Msg: "poll predates local transition"})
	case !pollAdoptable(c.s.Status, rep.Status):
		c.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindStale, Comp: comp,
			Status: string(c.s.Status), Msg: fmt.Sprintf("ignored polled status %s", rep.Status)})
	default:
		if rep.Status == StatusNoIndex && c.s.Status != StatusNoIndex {
			// the index is gone (reset or restart elsewhere)
			c.clearIndex()
		}
		c.s.Status = rep.Status
		c.s.Progress = rep.Progress
		if rep.Filename != "" {
			c.s.Filename = rep.Filename
		}
	}

	changed := c.s.Status != before.Status
	if changed {
		c.logTransition(before.Status, c.s.Status, "poll")
	}
	snap, ok := c.commitIfChanged(before)
	c.mu.Unlock()

	if ok {
		c.publish(snap)
	}
	return changed
}

// MarkOffline records a failed poll. Session data is left untouched.
func (c *Controller) MarkOffline() {
	c.mu.Lock()
	before := c.s
	c.s.BackendOnline = false
	snap, ok := c.commitIfChanged(before)
	c.mu.Unlock()

	if ok {
		c.publish(snap)
	}
}

// BeginUpload stores the local media reference and moves to uploading.
// Returns the generation that UploadSubmitted/UploadFailed must present.
func (c *Controller) BeginUpload(ref *MediaRef) (uint64, error) {
	c.mu.Lock()
	if !c.s.BackendOnline {
		c.mu.Unlock()
		return 0, ErrOffline
	}
	if c.s.Status != StatusStartup && c.s.Status != StatusNoIndex {
		st := c.s.Status
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: upload from %s", ErrInvalidTransition, st)
	}

	from := c.s.Status
	if ref != nil {
		m := *ref
		c.s.Media = &m
		c.s.Filename = m.Name
	}
	c.s.Status = StatusUploading
	c.s.Progress = 0
	c.gen++
	gen := c.gen
	c.logTransition(from, StatusUploading, "upload")
	snap := c.commit()
	c.mu.Unlock()

	c.publish(snap)
	return gen, nil
}

// UploadSubmitted moves uploading to processing once the backend accepted the
// file. Completion is observed later through polling.
func (c *Controller) UploadSubmitted(gen uint64) error {
	return c.finishUpload(gen, StatusProcessing)
}

// UploadFailed reverts uploading to no_index. The media reference is kept.
func (c *Controller) UploadFailed(gen uint64) error {
	return c.finishUpload(gen, StatusNoIndex)
}

// AttachUploadCancel registers cancel to abort the upload started under gen
// if the session is reset before it finishes. When gen is already stale,
// cancel is called at once and false is returned.
func (c *Controller) AttachUploadCancel(gen uint64, cancel context.CancelFunc) bool {
	c.mu.Lock()
	if gen != c.gen || c.s.Status != StatusUploading {
		c.mu.Unlock()
		cancel()
		return false
	}
	c.cancelUpload = cancel
	c.mu.Unlock()
	return true
}

func (c *Controller) finishUpload(gen uint64, to Status) error {
	c.mu.Lock()
	if gen != c.gen || c.s.Status != StatusUploading {
		c.mu.Unlock()
		return ErrStale
	}
	c.cancelUpload = nil

	c.s.Status = to
	if to == StatusNoIndex {
		c.s.Progress = 0
		c.s.Filename = ""
	}
	c.gen++
	c.logTransition(StatusUploading, to, "upload")
	snap := c.commit()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// ReplaceResults installs a search outcome wholesale, in backend order.
// Results issued before the latest reset are dropped.
func (c *Controller) ReplaceResults(epoch uint64, query string, results []backend.SearchResult) error {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return ErrStale
	}
	c.s.Query = query
	c.s.Results = append([]backend.SearchResult{}, results...)
	snap := c.commit()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// Reset returns to no_index from any status, clearing progress, filename,
// query, results and the media reference, aborts an upload in flight, then
// asks the backend to reset. Local state is cleared first and stays cleared
// if the backend call fails; the failure is surfaced as a notice and
// returned.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	from := c.s.Status
	c.clearIndex()
	c.s.Status = StatusNoIndex
	c.gen++
	resetGen := c.gen
	c.logTransition(from, StatusNoIndex, "reset")
	snap := c.commit()
	abort := c.cancelUpload
	c.cancelUpload = nil
	c.mu.Unlock()

	if abort != nil {
		abort()
	}
	c.publish(snap)

	if c.backend == nil {
		return nil
	}
	err := c.backend.Reset(ctx)

	// Polls issued while the backend was still resetting may report the old
	// index.
	c.mu.Lock()
	if c.gen == resetGen {
		c.gen++
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Error(otel.KindResetError, comp, err)
		if c.notify != nil {
			c.notify.Notify("Reset failed")
		}
		return fmt.Errorf("session: reset: %w", err)
	}
	c.log.Info(otel.KindResetComplete, comp, "backend index cleared")
	return nil
}

// clearIndex drops everything derived from the backend index and the local
// media, and invalidates searches in flight. Caller holds c.mu.
func (c *Controller) clearIndex() {
	c.s = Session{
		Status:        c.s.Status,
		BackendOnline: c.s.BackendOnline,
		Version:       c.s.Version,
	}
	c.epoch++
}

// commit bumps the version and returns a snapshot. Caller holds c.mu.
func (c *Controller) commit() Session {
	c.s.Version++
	return c.s.clone()
}

// commitIfChanged commits only when a field observers care about differs
// from before. Caller holds c.mu.
func (c *Controller) commitIfChanged(before Session) (Session, bool) {
	if c.s.Status == before.Status &&
		c.s.Progress == before.Progress &&
		c.s.Filename == before.Filename &&
		c.s.BackendOnline == before.BackendOnline {
		return Session{}, false
	}
	return c.commit(), true
}

func (c *Controller) publish(snap Session) {
	c.mu.Lock()
	observers := c.observers
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// logTransition records a status change. Caller holds c.mu.
func (c *Controller) logTransition(from, to Status, cause string) {
	c.log.Emit(otel.Event{
		Level:  otel.LevelInfo,
		Kind:   otel.KindTransition,
		Comp:   comp,
		Status: string(to),
		Msg:    fmt.Sprintf("%s -> %s (%s)", from, to, cause),
	})
}
