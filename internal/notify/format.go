package notify

import (
	"fmt"
	"strings"
)

// Item is one processed transcription in a summary.
type Item struct {
	Title     string
	Brain     string
	Ambient   bool
	Suggested int
}

// FormatSummary renders the consolidated message for one request: one line
// per transcription plus the total suggestion count.
func FormatSummary(items []Item, failed int) string {
	var b strings.Builder
	if len(items) == 1 {
		b.WriteString("Transcription processed\n")
	} else {
		fmt.Fprintf(&b, "%d conversations processed\n", len(items))
	}

	suggestions := 0
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = "(untitled)"
		}
		label := it.Brain
		if it.Ambient {
			label = "ambient"
		}
		fmt.Fprintf(&b, "• %s [%s]\n", title, label)
		suggestions += it.Suggested
	}

	if suggestions > 0 {
		fmt.Fprintf(&b, "%d new suggestions to review", suggestions)
	} else {
		b.WriteString("No new suggestions")
	}
	if failed > 0 {
		fmt.Fprintf(&b, "\n%d segments failed", failed)
	}
	return b.String()
}
