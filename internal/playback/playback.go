// Package playback moves a video player to the moment a search result points
// at.
package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/abelbrown/deepsearch/internal/otel"
	"github.com/abelbrown/deepsearch/internal/session"
)

// ErrMediaNotLoaded is returned by Jump when there is no playable local copy
// of the video. No seek is attempted.
var ErrMediaNotLoaded = errors.New("playback: media not loaded")

// NotLoadedNotice is shown to the user when a jump finds no loaded media.
const NotLoadedNotice = "Video is not loaded. Please upload the file again."

const comp = "playback"

// Controller is the capability a player exposes to Sync.
type Controller interface {
	IsReady() bool
	Seek(ts float64) error
	Play() error
}

// Loader is implemented by players that can open and close media themselves.
type Loader interface {
	Load(path string) error
	Stop() error
}

// Sync maps result timestamps onto the player.
type Sync struct {
	player Controller
	ctrl   *session.Controller
	notify session.Notifier
	log    *otel.Logger

	mu     sync.Mutex
	loaded string // path handed to the Loader, "" when stopped
}

// NewSync creates a Sync. player may be nil, in which case every Jump fails
// with ErrMediaNotLoaded.
func NewSync(player Controller, ctrl *session.Controller, notify session.Notifier, log *otel.Logger) *Sync {
	return &Sync{player: player, ctrl: ctrl, notify: notify, log: log}
}

// Jump seeks to ts and starts playback. The seek is the guaranteed effect; a
// failure to start playing is logged and otherwise ignored.
func (s *Sync) Jump(ts float64) error {
	if math.IsNaN(ts) || ts < 0 {
		return fmt.Errorf("playback: invalid timestamp %v", ts)
	}

	snap := s.ctrl.Snapshot()
	if snap.Media == nil || s.player == nil || !s.player.IsReady() {
		s.log.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindPlaybackError, Comp: comp,
			Err: ErrMediaNotLoaded.Error(), Extra: map[string]any{"ts": ts}})
		if s.notify != nil {
			s.notify.Notify(NotLoadedNotice)
		}
		return ErrMediaNotLoaded
	}

	if err := s.player.Seek(ts); err != nil {
		s.log.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindPlaybackError, Comp: comp,
			Err: err.Error(), Msg: "seek"})
		return fmt.Errorf("playback: seek: %w", err)
	}
	s.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSeek, Comp: comp,
		Msg: snap.Media.Name, Extra: map[string]any{"ts": ts}})

	if err := s.player.Play(); err != nil {
		s.log.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindPlaybackError, Comp: comp,
			Err: err.Error(), Msg: "play"})
	}
	return nil
}

// Prepare brings the player in line with the session: the local media is
// loaded while one exists and the player is stopped once it is gone. Players
// that are not Loaders are left alone.
func (s *Sync) Prepare() error {
	ld, ok := s.player.(Loader)
	if !ok {
		return nil
	}

	snap := s.ctrl.Snapshot()
	want := ""
	if snap.Media != nil {
		want = snap.Media.Path
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if want == s.loaded {
		return nil
	}

	if want == "" {
		if err := ld.Stop(); err != nil {
			return fmt.Errorf("playback: stop: %w", err)
		}
		s.loaded = ""
		return nil
	}
	if err := ld.Load(want); err != nil {
		s.log.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindPlaybackError, Comp: comp,
			Err: err.Error(), Msg: "load"})
		return fmt.Errorf("playback: load: %w", err)
	}
	s.loaded = want
	return nil
}

// Cursor is an in-process playhead used when no external player is
// configured. It is ready once media has been loaded.
type Cursor struct {
	mu      sync.Mutex
	path    string
	pos     float64
	playing bool
}

func (c *Cursor) Load(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path, c.pos, c.playing = path, 0, false
	return nil
}

func (c *Cursor) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path, c.pos, c.playing = "", 0, false
	return nil
}

func (c *Cursor) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path != ""
}

func (c *Cursor) Seek(ts float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = ts
	return nil
}

func (c *Cursor) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
	return nil
}

// Position returns the playhead and whether it is playing.
func (c *Cursor) Position() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos, c.playing
}
