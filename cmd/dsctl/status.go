package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/abelbrown/deepsearch/internal/session"
)

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	cf := addCommonFlags(fs)
	timeout := fs.Duration("timeout", 2*time.Second, "Request timeout")
	fs.Parse(os.Args[1:])

	_, logger, client := cf.setup()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rep, err := client.Status(ctx)
	if err != nil {
		fatal(logger, "backend offline", err)
	}
	st, err := session.ParseStatus(rep.Status)
	if err != nil {
		fatal(logger, "backend offline", err)
	}

	fmt.Printf("Backend:   %s\n", client.BaseURL())
	fmt.Printf("Status:    %s\n", st)
	if st.Active() {
		fmt.Printf("Progress:  %d%%\n", rep.Progress)
	}
	if rep.Filename != "" {
		fmt.Printf("Filename:  %s\n", rep.Filename)
	}
}

func runReset() {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	cf := addCommonFlags(fs)
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	fs.Parse(os.Args[1:])

	_, logger, client := cf.setup()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := client.Reset(ctx); err != nil {
		fatal(logger, "reset failed", err)
	}
	logger.Info("session reset", "backend", client.BaseURL())
}

func runPreview() {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	cf := addCommonFlags(fs)
	out := fs.String("o", "", "Output file (default: base name of the preview path)")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	fs.Parse(os.Args[1:])

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: dsctl preview [-o file] <preview_path>")
		os.Exit(1)
	}
	ref := fs.Arg(0)

	_, logger, client := cf.setup()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	data, err := client.FetchPreview(ctx, ref)
	if err != nil {
		fatal(logger, "fetch preview", err)
	}

	dest := *out
	if dest == "" {
		dest = previewFilename(ref)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		fatal(logger, "write preview", err)
	}
	logger.Info("preview saved", "file", dest, "bytes", len(data), "url", client.PreviewURL(ref))
}
