// Command deepsearch is the terminal client for the DeepSearch video index.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/config"
	"github.com/abelbrown/deepsearch/internal/otel"
	"github.com/abelbrown/deepsearch/internal/playback"
	"github.com/abelbrown/deepsearch/internal/poll"
	"github.com/abelbrown/deepsearch/internal/search"
	"github.com/abelbrown/deepsearch/internal/session"
	"github.com/abelbrown/deepsearch/internal/store"
	"github.com/abelbrown/deepsearch/internal/ui"
	"github.com/abelbrown/deepsearch/internal/upload"
)

const (
	searchTimeout = 15 * time.Second
	resetTimeout  = 10 * time.Second
	historyLimit  = 20
)

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config %s: %v", config.ConfigPath(), err)
	}

	// Data directory: ~/.deepsearch/
	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Event log + ring buffer for the debug overlay
	obsLog, logFile, err := otel.OpenEventLog(filepath.Join(dataDir, "deepsearch.events.jsonl"), otel.DefaultMaxLogBytes)
	if err != nil {
		log.Printf("Warning: event log disabled: %v", err)
		obsLog = otel.NewNullLogger()
	} else {
		defer logFile.Close()
	}
	defer obsLog.Close()
	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	obsLog.SetRingBuffer(ring)

	client, err := backend.New(cfg.Backend.URL)
	if err != nil {
		log.Fatalf("Failed to create backend client: %v", err)
	}

	// Search history lives only as long as this process
	hist, err := store.Open(":memory:")
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer hist.Close()

	// program is assigned before anything can publish; Send blocks until
	// Run starts and is a no-op after it returns.
	var program *tea.Program
	notify := session.NotifyFunc(func(msg string) {
		program.Send(ui.Notice{Text: msg})
	})

	ctrl := session.NewController(client, notify, obsLog)
	ctrl.Subscribe(func(s session.Session) {
		program.Send(ui.SessionChanged{Session: s})
	})

	uploader := upload.New(client, ctrl, notify, obsLog)
	if err := uploader.SetFrameInterval(cfg.Indexing.FrameInterval); err != nil {
		log.Fatalf("Invalid frame interval: %v", err)
	}

	searcher := search.New(client, ctrl, hist, obsLog)
	if err := searcher.SetWeights(cfg.Search.VisualWeight, cfg.Search.TextWeight); err != nil {
		log.Fatalf("Invalid search weights: %v", err)
	}

	// Player: mpv when enabled and launchable, otherwise an in-process playhead
	var player playback.Controller = &playback.Cursor{}
	if cfg.Player.Enabled {
		mpv, err := playback.LaunchMPV(ctx, cfg.Player.Binary, cfg.PlayerSocket())
		if err != nil {
			log.Printf("Warning: player unavailable, positions will only be tracked: %v", err)
		} else {
			defer mpv.Close()
			player = mpv
		}
	}
	jumper := playback.NewSync(player, ctrl, notify, obsLog)

	poller := poll.New(client, ctrl, obsLog, cfg.PollInterval(), cfg.PollTimeout())

	visual, text := searcher.Weights()
	appCfg := ui.AppConfig{
		Upload: func(path string) tea.Cmd {
			return func() tea.Msg {
				return ui.UploadDone{Path: path, Err: uploader.Upload(ctx, path)}
			}
		},
		Search: func(query string) tea.Cmd {
			return func() tea.Msg {
				sctx, cancel := context.WithTimeout(ctx, searchTimeout)
				defer cancel()
				results, err := searcher.Search(sctx, query)
				return ui.SearchDone{Query: query, Results: len(results), Err: err}
			}
		},
		Reset: func() tea.Cmd {
			return func() tea.Msg {
				rctx, cancel := context.WithTimeout(ctx, resetTimeout)
				defer cancel()
				return ui.ResetDone{Err: ctrl.Reset(rctx)}
			}
		},
		Jump: func(ts float64) tea.Cmd {
			return func() tea.Msg {
				return ui.JumpDone{Timestamp: ts, Err: jumper.Jump(ts)}
			}
		},
		Prepare: func() tea.Cmd {
			return func() tea.Msg {
				if err := jumper.Prepare(); err != nil {
					return ui.Notice{Text: "Player: " + err.Error()}
				}
				return nil
			}
		},
		SetWeights: func(v, t float64) tea.Cmd {
			return func() tea.Msg {
				return ui.SettingsApplied{Err: searcher.SetWeights(v, t)}
			}
		},
		SetFrameInterval: func(seconds float64) tea.Cmd {
			return func() tea.Msg {
				return ui.SettingsApplied{Err: uploader.SetFrameInterval(seconds)}
			}
		},
		RecentQueries: func() tea.Cmd {
			return func() tea.Msg {
				qs, err := hist.RecentQueries(historyLimit)
				return ui.HistoryLoaded{Queries: qs, Err: err}
			}
		},
		PreviewURL: client.PreviewURL,

		Session:       ctrl.Snapshot(),
		FrameInterval: uploader.FrameInterval(),
		VisualWeight:  visual,
		TextWeight:    text,
		ShowDebug:     cfg.UI.ShowDebug,
		Obs:           ui.ObsConfig{Ring: ring, Logger: obsLog},
	}

	program = tea.NewProgram(ui.NewAppWithConfig(appCfg), tea.WithAltScreen(), tea.WithContext(ctx))

	obsLog.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindStartup, Comp: "main",
		Msg: cfg.Backend.URL, Extra: map[string]any{"player": cfg.Player.Enabled}})

	g, gctx := errgroup.WithContext(ctx)
	if err := poller.Start(gctx); err != nil {
		log.Fatalf("Failed to start poller: %v", err)
	}

	// Run UI (blocks until quit)
	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		poller.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("Error running program: %v", err)
	}
	obsLog.Info(otel.KindShutdown, "main", "client stopped")
}
