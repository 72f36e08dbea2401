package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/config"
)

// newLogger returns a colored stderr logger.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
}

// fatal logs err and exits.
func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}

// commonFlags registers the flags every backend command shares.
type commonFlags struct {
	url     *string
	verbose *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		url:     fs.String("url", "", "Backend base URL (overrides config and DEEPSEARCH_API_URL)"),
		verbose: fs.Bool("v", false, "Debug logging"),
	}
}

// setup loads config and builds the logger and backend client.
func (c commonFlags) setup() (*config.Config, *slog.Logger, *backend.Client) {
	logger := newLogger(*c.verbose)

	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "load config", err)
	}
	if *c.url != "" {
		cfg.Backend.URL = *c.url
	}

	client, err := backend.New(cfg.Backend.URL)
	if err != nil {
		fatal(logger, "create client", err)
	}
	logger.Debug("backend", "url", client.BaseURL())
	return cfg, logger, client
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// eventLogPath returns the path to deepsearch.events.jsonl.
func eventLogPath() string {
	return filepath.Join(config.DataDir(), "deepsearch.events.jsonl")
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
