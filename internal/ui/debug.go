package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/deepsearch/internal/otel"
)

// Border plus vertical padding of DebugPanel.
const debugPanelChrome = 4

const (
	debugRecent     = 20
	debugPanelWidth = 76
)

// debugOverlay renders counters, latencies and the newest events from ring.
// It renders nothing without a ring.
func debugOverlay(ring *otel.RingBuffer, width, height int) string {
	if ring == nil {
		return ""
	}
	now := time.Now()

	lines := []string{DebugHeaderStyle.Render("Session Stats")}
	lines = append(lines, debugCounters(ring)...)
	lines = append(lines, debugHealth(ring, now)...)
	lines = append(lines, "", DebugHeaderStyle.Render("Recent Events"))
	for _, e := range ring.Last(debugRecent) {
		lines = append(lines, debugEventLine(e, now))
	}

	if limit := max(height-debugPanelChrome, 1); len(lines) > limit {
		lines = lines[:limit]
	}
	panelWidth := max(min(debugPanelWidth, width-4), 20)
	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

func debugCounters(ring *otel.RingBuffer) []string {
	s := ring.Stats()
	row := func(label, format string, args ...any) string {
		return fmt.Sprintf("  %-11s ", label+":") + fmt.Sprintf(format, args...)
	}
	return []string{
		row("Polls", "%d ok, %d errors, %d skipped", s[otel.KindPollOK], s[otel.KindPollError], s[otel.KindPollSkip]),
		row("States", "%d transitions, %d stale", s[otel.KindTransition], s[otel.KindStale]),
		row("Uploads", "%d started, %d complete, %d errors", s[otel.KindUploadStart], s[otel.KindUploadComplete], s[otel.KindUploadError]),
		row("Searches", "%d started, %d complete, %d errors", s[otel.KindSearchStart], s[otel.KindSearchComplete], s[otel.KindSearchError]),
		row("Playback", "%d seeks, %d errors", s[otel.KindSeek], s[otel.KindPlaybackError]),
		row("Buffer", "%d / %d events", ring.Len(), ring.Cap()),
	}
}

// debugHealth summarises latency, the last poll and the last failure.
func debugHealth(ring *otel.RingBuffer, now time.Time) []string {
	latency := func(kind otel.EventKind) string {
		avg, n := ring.Latency(kind)
		if n == 0 {
			return "-"
		}
		return fmt.Sprintf("%s avg (%d)", formatAge(avg), n)
	}
	out := []string{
		fmt.Sprintf("  Latency:    poll %s, search %s", latency(otel.KindPollOK), latency(otel.KindSearchComplete)),
	}

	if e, ok := ring.LastOf(otel.KindPollOK); ok {
		out = append(out, fmt.Sprintf("  Last poll:  %s, %s ago", e.Status, formatAge(now.Sub(e.Time))))
	} else {
		out = append(out, "  Last poll:  none")
	}
	if e, ok := ring.LastFailure(); ok {
		out = append(out, fmt.Sprintf("  Last error: %s %s, %s ago",
			e.Kind, truncateRunes(e.Err, 30), formatAge(now.Sub(e.Time))))
	}
	return out
}

func debugEventLine(e otel.Event, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %6s  %-20s", formatAge(now.Sub(e.Time)), e.Kind)
	if e.Status != "" {
		b.WriteString("  [" + e.Status + "]")
	}
	if e.Msg != "" {
		b.WriteString("  " + truncateRunes(e.Msg, 40))
	}
	if e.Err != "" {
		b.WriteString("  ERR:" + truncateRunes(e.Err, 30))
	}
	if qid := e.QueryID; qid != "" {
		b.WriteString("  qid:" + qid[:min(len(qid), 8)])
	}
	return b.String()
}

// formatAge renders d compactly. Negative durations, from clock steps,
// show as 0ms.
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

func debugStatusBar(width int) string {
	hint := StatusBarKey.Render("ctrl+d") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + hint)
}
