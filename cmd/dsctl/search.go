package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/search"
	"github.com/abelbrown/deepsearch/internal/ui"
)

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	cf := addCommonFlags(fs)
	visual := fs.Float64("visual", -1, "Visual weight 0-3 (default: config value)")
	text := fs.Float64("text", -1, "Transcript weight 0-3 (default: config value)")
	timeout := fs.Duration("timeout", 15*time.Second, "Request timeout")
	fs.Parse(os.Args[1:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: dsctl search [-visual W] [-text W] <query>")
		os.Exit(1)
	}

	cfg, logger, client := cf.setup()

	q := backend.SearchQuery{
		Text:         query,
		VisualWeight: cfg.Search.VisualWeight,
		TextWeight:   cfg.Search.TextWeight,
	}
	if *visual >= 0 {
		q.VisualWeight = *visual
	}
	if *text >= 0 {
		q.TextWeight = *text
	}
	if !search.ValidWeight(q.VisualWeight) || !search.ValidWeight(q.TextWeight) {
		fatal(logger, "invalid weights", fmt.Errorf("%w: visual=%v text=%v",
			search.ErrWeightOutOfRange, q.VisualWeight, q.TextWeight))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	results, err := client.Search(ctx, q)
	if err != nil {
		fatal(logger, "search failed", err)
	}
	logger.Debug("search", "query", query, "visual", q.VisualWeight, "text", q.TextWeight,
		"results", len(results), "took", time.Since(start).Round(time.Millisecond))

	fmt.Printf("%d results for %q (visual %.1f, text %.1f)\n\n", len(results), query, q.VisualWeight, q.TextWeight)
	for i, r := range results {
		fmt.Printf("%3d. %s  %s\n", i+1, ui.FormatTimestamp(r.Timestamp), client.PreviewURL(r.PreviewPath))
		if r.TranscriptSnippet != "" {
			fmt.Printf("     %s\n", truncate(r.TranscriptSnippet, 100))
		}
	}
}
