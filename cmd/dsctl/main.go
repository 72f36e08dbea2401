// Command dsctl drives the DeepSearch backend without the TUI.
//
// Usage:
//
//	dsctl                      Show help
//	dsctl status               Backend status and progress
//	dsctl upload <file>        Upload a video for indexing
//	dsctl watch                Follow indexing until it finishes
//	dsctl search <query>       Run a weighted search
//	dsctl preview <path>       Download a result preview image
//	dsctl reset                Clear the backend session
//	dsctl events               JSONL event log viewer
package main

import (
	"fmt"
	"os"
)

const usage = `dsctl - DeepSearch backend CLI

Usage:
  dsctl <command> [flags]

Commands:
  status      Backend status, progress and indexed filename
  upload      Upload a video for indexing (add -watch to follow it)
  watch       Poll the backend until indexing completes or fails
  search      Run a weighted visual/transcript search
  preview     Download a result preview image
  reset       Clear the backend session
  events      JSONL event log viewer

Environment:
  DEEPSEARCH_API_URL   Backend base URL (default: http://127.0.0.1:8000)

Run 'dsctl <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "status":
		runStatus()
	case "upload":
		runUpload()
	case "watch":
		runWatch()
	case "search":
		runSearch()
	case "preview":
		runPreview()
	case "reset":
		runReset()
	case "events":
		runEvents()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "dsctl: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
