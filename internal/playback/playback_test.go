package playback

import (
	"context"
	"errors"
	"testing"

	"github.com/abelbrown/deepsearch/internal/session"
)

type fakePlayer struct {
	ready   bool
	seeks   []float64
	plays   int
	seekErr error
	playErr error
}

func (f *fakePlayer) IsReady() bool { return f.ready }

func (f *fakePlayer) Seek(ts float64) error {
	if f.seekErr != nil {
		return f.seekErr
	}
	f.seeks = append(f.seeks, ts)
	return nil
}

func (f *fakePlayer) Play() error {
	f.plays++
	return f.playErr
}

type notices []string

func (n *notices) Notify(msg string) { *n = append(*n, msg) }

// workspace returns a controller in completed state, with local media when
// withMedia is set.
func workspace(t *testing.T, withMedia bool) *session.Controller {
	t.Helper()
	c := session.NewController(nil, nil, nil)
	c.ApplyPoll(c.Generation(), session.PollReport{Status: session.StatusNoIndex})
	if withMedia {
		gen, err := c.BeginUpload(&session.MediaRef{Path: "/videos/cat.mp4", Name: "cat.mp4"})
		if err != nil {
			t.Fatal(err)
		}
		c.UploadSubmitted(gen)
		c.ApplyPoll(c.Generation(), session.PollReport{Status: session.StatusCompleted, Progress: 100})
		return c
	}
	// restored session: backend already completed, nothing local
	c = session.NewController(nil, nil, nil)
	c.ApplyPoll(c.Generation(), session.PollReport{Status: session.StatusCompleted, Progress: 100, Filename: "cat.mp4"})
	return c
}

func TestJumpSeeksThenPlays(t *testing.T) {
	p := &fakePlayer{ready: true}
	s := NewSync(p, workspace(t, true), nil, nil)

	if err := s.Jump(83.5); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	if len(p.seeks) != 1 || p.seeks[0] != 83.5 {
		t.Errorf("seeks = %v", p.seeks)
	}
	if p.plays != 1 {
		t.Errorf("plays = %d", p.plays)
	}
}

func TestJumpWithoutMediaNotifiesAndDoesNotSeek(t *testing.T) {
	ctrl := workspace(t, false)
	before := ctrl.Snapshot()
	p := &fakePlayer{ready: true}
	var n notices
	s := NewSync(p, ctrl, &n, nil)

	if err := s.Jump(10); !errors.Is(err, ErrMediaNotLoaded) {
		t.Fatalf("expected ErrMediaNotLoaded, got %v", err)
	}
	if len(p.seeks) != 0 || p.plays != 0 {
		t.Errorf("player touched: seeks=%v plays=%d", p.seeks, p.plays)
	}
	if len(n) != 1 || n[0] != NotLoadedNotice {
		t.Errorf("notices = %v", n)
	}
	if after := ctrl.Snapshot(); after.Version != before.Version {
		t.Error("jump changed session state")
	}
}

func TestJumpPlayerNotReady(t *testing.T) {
	var n notices
	p := &fakePlayer{ready: false}
	s := NewSync(p, workspace(t, true), &n, nil)

	if err := s.Jump(10); !errors.Is(err, ErrMediaNotLoaded) {
		t.Fatalf("expected ErrMediaNotLoaded, got %v", err)
	}
	if len(p.seeks) != 0 || len(n) != 1 {
		t.Errorf("seeks=%v notices=%v", p.seeks, n)
	}
}

func TestJumpNilPlayer(t *testing.T) {
	s := NewSync(nil, workspace(t, true), nil, nil)
	if err := s.Jump(1); !errors.Is(err, ErrMediaNotLoaded) {
		t.Fatalf("expected ErrMediaNotLoaded, got %v", err)
	}
	if err := s.Prepare(); err != nil {
		t.Errorf("Prepare with nil player: %v", err)
	}
}

func TestJumpPlayFailureIsNotAnError(t *testing.T) {
	p := &fakePlayer{ready: true, playErr: errors.New("autoplay blocked")}
	var n notices
	s := NewSync(p, workspace(t, true), &n, nil)

	if err := s.Jump(5); err != nil {
		t.Fatalf("play failure should be swallowed, got %v", err)
	}
	if len(p.seeks) != 1 {
		t.Error("seek should still happen")
	}
	if len(n) != 0 {
		t.Errorf("play failure should not notify, got %v", n)
	}
}

func TestJumpSeekFailure(t *testing.T) {
	p := &fakePlayer{ready: true, seekErr: errors.New("ipc closed")}
	s := NewSync(p, workspace(t, true), nil, nil)

	if err := s.Jump(5); err == nil {
		t.Fatal("expected seek error")
	}
	if p.plays != 0 {
		t.Error("should not play after a failed seek")
	}
}

func TestJumpRejectsNegative(t *testing.T) {
	p := &fakePlayer{ready: true}
	s := NewSync(p, workspace(t, true), nil, nil)
	if err := s.Jump(-1); err == nil {
		t.Fatal("expected error")
	}
	if len(p.seeks) != 0 {
		t.Error("negative timestamp reached the player")
	}
}

func TestPrepareFollowsSession(t *testing.T) {
	ctrl := workspace(t, true)
	cur := &Cursor{}
	s := NewSync(cur, ctrl, nil, nil)

	if cur.IsReady() {
		t.Fatal("cursor ready before Prepare")
	}
	if err := s.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !cur.IsReady() {
		t.Fatal("cursor not loaded")
	}

	if err := s.Jump(42); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	if pos, playing := cur.Position(); pos != 42 || !playing {
		t.Errorf("position = %v playing = %v", pos, playing)
	}

	ctrl.Reset(context.Background())
	if err := s.Prepare(); err != nil {
		t.Fatalf("Prepare after reset: %v", err)
	}
	if cur.IsReady() {
		t.Error("player should be stopped after reset")
	}
	if err := s.Jump(1); !errors.Is(err, ErrMediaNotLoaded) {
		t.Errorf("expected ErrMediaNotLoaded after reset, got %v", err)
	}
}

type countingLoader struct {
	Cursor
	loads int
}

func (c *countingLoader) Load(path string) error {
	c.loads++
	return c.Cursor.Load(path)
}

func TestPrepareIsIdempotent(t *testing.T) {
	ld := &countingLoader{}
	s := NewSync(ld, workspace(t, true), nil, nil)

	s.Prepare()
	s.Prepare()
	if ld.loads != 1 {
		t.Errorf("loads = %d, want 1", ld.loads)
	}
}
