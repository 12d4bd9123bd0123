package bot

import (
	"fmt"
	"html"
	"strings"

	"watchlist-compare/models"
	"watchlist-compare/progress"
)

func statusText(e progress.Event) string {
	switch e.Type {
	case progress.EventUserDone:
		return fmt.Sprintf("✅ %s: %d films collected", html.EscapeString(e.Username), e.FilmCount)
	case progress.EventUserCached:
		return fmt.Sprintf("♻️ %s: %d films (cached)", html.EscapeString(e.Username), e.FilmCount)
	case progress.EventUserError:
		return "⚠️ " + html.EscapeString(e.Message)
	default:
		return html.EscapeString(e.Message)
	}
}

func formatResult(usernames []string, films []models.Film) string {
	who := html.EscapeString(strings.Join(usernames, ", "))
	if len(films) == 0 {
		return fmt.Sprintf("🎬 No films are on every watchlist of %s.", who)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎬 %d films in common for %s:\n\n", len(films), who)
	for i, f := range films {
		fmt.Fprintf(&b, "%d. <a href=\"%s\">%s</a>\n", i+1, html.EscapeString(f.Link), html.EscapeString(f.Title))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatHistory(records []models.ComparisonRecord) string {
	if len(records) == 0 {
		return "No comparisons yet."
	}
	var b strings.Builder
	b.WriteString("🕓 Recent comparisons:\n")
	for _, r := range records {
		users := html.EscapeString(strings.Join(r.Usernames, ", "))
		when := r.FinishedAt.UTC().Format("2006-01-02 15:04")
		if r.Status == models.ComparisonDone {
			fmt.Fprintf(&b, "\n%s: %s (%d in common)", when, users, r.ResultCount)
		} else {
			fmt.Fprintf(&b, "\n%s: %s (failed: %s)", when, users, html.EscapeString(r.Message))
		}
	}
	return b.String()
}

// splitMessage splits a message into chunks of at most maxLen bytes,
// breaking on line boundaries where possible
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		if current.Len()+len(line)+1 > maxLen {
			if current.Len() > 0 {
				parts = append(parts, strings.TrimSuffix(current.String(), "\n"))
				current.Reset()
			}
			// A single line that is too long is cut on rune boundaries
			for len(line) > maxLen {
				cut := maxLen
				for cut > 0 && !isRuneStart(line[cut]) {
					cut--
				}
				parts = append(parts, line[:cut])
				line = line[cut:]
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	if s := strings.TrimSuffix(current.String(), "\n"); s != "" {
		parts = append(parts, s)
	}
	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
