// Package poll keeps the session in sync with the backend's /status.
package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/otel"
	"github.com/abelbrown/deepsearch/internal/session"
)

const (
	// DefaultInterval is the time between scheduled ticks.
	DefaultInterval = time.Second

	// DefaultTimeout bounds each status request.
	DefaultTimeout = 2 * time.Second
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("poll: already started")

const comp = "poll"

// statusSource is the slice of the backend client the poller needs.
type statusSource interface {
	Status(ctx context.Context) (backend.StatusReport, error)
}

// Poller fetches backend status on a fixed cadence and hands each outcome to
// the session controller. Ticks fire on wall-clock time; a tick that finds the
// previous request still in flight is skipped, so at most one request is ever
// outstanding. There are no retries beyond the next tick.
type Poller struct {
	src      statusSource
	ctrl     *session.Controller
	log      *otel.Logger
	interval time.Duration
	timeout  time.Duration

	inflight atomic.Bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc // nil until Start, nil again after Stop
	wg      sync.WaitGroup
}

// New creates a Poller. Zero interval or timeout select the defaults.
func New(src statusSource, ctrl *session.Controller, log *otel.Logger, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Poller{
		src:      src,
		ctrl:     ctrl,
		log:      log,
		interval: interval,
		timeout:  timeout,
	}
}

// Start polls immediately and then every interval until ctx is cancelled or
// Stop is called. A Poller runs at most once; later calls, including after
// Stop, return ErrAlreadyStarted.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.spawn(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.spawn(ctx)
			}
		}
	}()
	return nil
}

// Stop cancels the schedule exactly once and waits for any in-flight request
// to return. Safe to call more than once and before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.started = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// spawn runs one tick without blocking the schedule.
func (p *Poller) spawn(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Tick(ctx)
	}()
}

// Tick performs one poll. Returns false if it was skipped because another
// poll is still in flight.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.inflight.CompareAndSwap(false, true) {
		p.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPollSkip, Comp: comp})
		return false
	}
	defer p.inflight.Store(false)

	gen := p.ctrl.Generation()

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	rep, err := p.src.Status(reqCtx)
	if ctx.Err() != nil {
		// shutting down; a cancelled request says nothing about the backend
		return true
	}
	if err != nil {
		p.ctrl.MarkOffline()
		p.log.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindPollError, Comp: comp,
			Dur: time.Since(start), Err: err.Error()})
		return true
	}

	st, err := session.ParseStatus(rep.Status)
	if err != nil {
		p.ctrl.MarkOffline()
		p.log.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindPollError, Comp: comp,
			Dur: time.Since(start), Err: err.Error()})
		return true
	}

	p.ctrl.ApplyPoll(gen, session.PollReport{
		Status:   st,
		Progress: rep.Progress,
		Filename: rep.Filename,
	})
	p.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPollOK, Comp: comp,
		Dur: time.Since(start), Status: string(st), Count: rep.Progress})
	return true
}
