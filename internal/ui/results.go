package ui

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/abelbrown/deepsearch/internal/backend"
)

// FormatTimestamp renders seconds as HH:MM:SS, truncating fractions.
func FormatTimestamp(sec float64) string {
	if math.IsNaN(sec) || sec < 0 {
		sec = 0
	}
	total := int(sec)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// RenderResults renders the result list with the cursor kept in view. Each
// result takes two lines: timestamp and snippet, then the preview URL.
// previewURL may be nil.
func RenderResults(results []backend.SearchResult, cursor int, focused bool, width, height int, previewURL func(string) string) string {
	if len(results) == 0 {
		return HelpStyle.Render("No results. Type a query and press enter.")
	}

	const linesPerResult = 2
	visible := height / linesPerResult
	if visible < 1 {
		visible = 1
	}
	offset := calcScrollOffset(len(results), cursor, visible)

	var b strings.Builder
	for i := offset; i < len(results) && i < offset+visible; i++ {
		r := results[i]

		snippet := strings.TrimSpace(r.TranscriptSnippet)
		if snippet == "" {
			snippet = "(no transcript)"
		}
		snippet = truncateRunes(snippet, width-16)

		line := TimestampBadge.Render(FormatTimestamp(r.Timestamp)) + snippet
		if i == cursor && focused {
			line = SelectedItem.Render(FormatTimestamp(r.Timestamp) + "  " + snippet)
		} else {
			line = NormalItem.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")

		preview := r.PreviewPath
		if previewURL != nil && preview != "" {
			preview = previewURL(preview)
		}
		b.WriteString("    " + PreviewLink.Render(truncateRunes(preview, width-6)))
		b.WriteString("\n")
	}

	if len(results) > visible {
		b.WriteString(StatusBarText.Render(fmt.Sprintf("  %d/%d", cursor+1, len(results))))
		b.WriteString("\n")
	}
	return b.String()
}

// calcScrollOffset returns the first visible index such that cursor fits in
// a window of visible entries.
func calcScrollOffset(n, cursor, visible int) int {
	if n == 0 || cursor < 0 {
		return 0
	}
	if cursor >= n {
		cursor = n - 1
	}
	if cursor >= visible {
		return cursor - visible + 1
	}
	return 0
}

// truncateRunes shortens s to at most n runes, marking the cut with "…".
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
