package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"
	"time"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/otel"
	"github.com/abelbrown/deepsearch/internal/poll"
	"github.com/abelbrown/deepsearch/internal/session"
	"github.com/abelbrown/deepsearch/internal/upload"
)

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	cf := addCommonFlags(fs)
	interval := fs.Float64("interval", 0, "Seconds between sampled frames (default: config value)")
	watch := fs.Bool("watch", false, "Follow indexing after the upload")
	fs.Parse(os.Args[1:])

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: dsctl upload [-interval S] [-watch] <video>")
		os.Exit(1)
	}

	cfg, logger, client := cf.setup()
	ctx, cancel := signalContext()
	defer cancel()

	ctrl := headlessSession(client, logger)
	poller := poll.New(client, ctrl, otel.NewNullLogger(), cfg.PollInterval(), cfg.PollTimeout())

	// One poll to learn whether the backend is reachable and idle
	poller.Tick(ctx)

	uploader := upload.New(client, ctrl, nil, otel.NewNullLogger())
	frame := cfg.Indexing.FrameInterval
	if *interval != 0 {
		frame = *interval
	}
	if err := uploader.SetFrameInterval(frame); err != nil {
		fatal(logger, "invalid frame interval", err)
	}

	start := time.Now()
	if err := uploader.Upload(ctx, fs.Arg(0)); err != nil {
		fatal(logger, "upload failed", err)
	}
	snap := ctrl.Snapshot()
	logger.Info("upload accepted", "file", snap.Filename, "status", snap.Status,
		"frame_interval", uploader.FrameInterval(), "took", time.Since(start).Round(time.Millisecond))

	if *watch {
		os.Exit(watchSession(ctx, poller, ctrl, logger))
	}
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	cf := addCommonFlags(fs)
	timeout := fs.Duration("timeout", 0, "Give up after this long (0 = no limit)")
	fs.Parse(os.Args[1:])

	cfg, logger, client := cf.setup()
	ctx, cancel := signalContext()
	defer cancel()
	if *timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, *timeout)
		defer tcancel()
	}

	ctrl := headlessSession(client, logger)
	poller := poll.New(client, ctrl, otel.NewNullLogger(), cfg.PollInterval(), cfg.PollTimeout())
	os.Exit(watchSession(ctx, poller, ctrl, logger))
}

// headlessSession builds a session controller whose notices go to logger.
func headlessSession(client *backend.Client, logger *slog.Logger) *session.Controller {
	notify := session.NotifyFunc(func(msg string) {
		logger.Warn(msg)
	})
	return session.NewController(client, notify, otel.NewNullLogger())
}

// watchSession polls until indexing completes (exit 0), fails (exit 1) or
// ctx ends (exit 2). A backend with nothing being indexed also exits 1.
func watchSession(ctx context.Context, poller *poll.Poller, ctrl *session.Controller, logger *slog.Logger) int {
	var (
		mu       sync.Mutex
		last     = ctrl.Snapshot()
		code     = -1
		finished = make(chan struct{})
		once     sync.Once
	)
	finish := func(c int) {
		once.Do(func() {
			code = c
			close(finished)
		})
	}

	ctrl.Subscribe(func(s session.Session) {
		mu.Lock()
		defer mu.Unlock()
		if s.Version <= last.Version {
			return
		}
		prev := last
		last = s

		if s.BackendOnline != prev.BackendOnline {
			if s.BackendOnline {
				logger.Info("backend online")
			} else {
				logger.Warn("backend offline, retrying")
			}
		}
		switch {
		case s.Status != prev.Status:
			logger.Info("status", "from", prev.Status, "to", s.Status, "file", s.Filename)
		case s.Status.Active() && s.Progress != prev.Progress:
			logger.Info("progress", "percent", s.Progress)
		}

		switch s.Status {
		case session.StatusCompleted:
			finish(0)
		case session.StatusFailed:
			finish(1)
		case session.StatusNoIndex:
			logger.Warn("no video is being indexed")
			finish(1)
		}
	})

	// The snapshot may already be terminal when no poll is needed
	switch ctrl.Snapshot().Status {
	case session.StatusCompleted:
		return 0
	case session.StatusFailed:
		return 1
	}

	if err := poller.Start(ctx); err != nil {
		logger.Error("start poller", "err", err)
		return 1
	}
	defer poller.Stop()

	select {
	case <-finished:
		return code
	case <-ctx.Done():
		logger.Warn("stopped watching", "err", ctx.Err())
		return 2
	}
}

// previewFilename derives a local file name from a backend preview path.
func previewFilename(ref string) string {
	name := path.Base(ref)
	if name == "." || name == "/" || name == "" {
		return "preview.jpg"
	}
	return name
}
