// Package display provides terminal output formatting for creatorfeed.
package display

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

const (
	separator     = " • "
	headlineWidth = 100
)

// TerminalFormatter formats posts for terminal display.
type TerminalFormatter struct {
	now func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{now: time.Now}
}

// FormatItem formats a single post for display.
func (f *TerminalFormatter) FormatItem(post aggregator.Post) string {
	var lines []string

	// Header: [PLATFORM] headline
	headline := strings.Join(strings.Fields(post.Headline()), " ")
	if headline == "" {
		headline = "(untitled)"
	}
	lines = append(lines, fmt.Sprintf("[%s] %s", strings.ToUpper(string(post.Platform)), f.TruncateText(headline, headlineWidth)))

	if !post.Date.IsZero() {
		lines = append(lines, "  "+f.FormatTimestamp(post.Date))
	}

	if engagement := f.formatEngagement(post); engagement != "" {
		lines = append(lines, "  "+engagement)
	}

	if post.URL != "" {
		lines = append(lines, "  "+post.URL)
	}

	return strings.Join(lines, "\n") + "\n"
}

// formatEngagement formats engagement stats into a single line.
func (f *TerminalFormatter) formatEngagement(p aggregator.Post) string {
	var parts []string

	if p.Views > 0 {
		parts = append(parts, fmt.Sprintf("%d views", p.Views))
	}
	if p.Likes > 0 {
		parts = append(parts, fmt.Sprintf("%d likes", p.Likes))
	}
	if p.Comments > 0 {
		parts = append(parts, fmt.Sprintf("%d comments", p.Comments))
	}

	return strings.Join(parts, separator)
}

// FormatFeed formats multiple posts for display.
func (f *TerminalFormatter) FormatFeed(posts []aggregator.Post) string {
	if len(posts) == 0 {
		return "No posts to display.\n"
	}

	var formatted []string
	for _, post := range posts {
		formatted = append(formatted, f.FormatItem(post))
	}

	return strings.Join(formatted, "\n---\n\n")
}

// FormatStats formats follower counts, one platform per line.
func (f *TerminalFormatter) FormatStats(stats []aggregator.Stats) string {
	if len(stats) == 0 {
		return "No connected platforms.\n"
	}

	var b strings.Builder
	for _, s := range stats {
		fmt.Fprintf(&b, "%-10s %d followers\n", s.Platform, s.Followers)
	}
	return b.String()
}

// FormatConnections formats the link state of every platform.
func (f *TerminalFormatter) FormatConnections(creds map[oauth.Platform]*oauth.Credential) string {
	var b strings.Builder
	now := f.now()
	for _, p := range oauth.Platforms() {
		cred := creds[p]
		state := oauth.CredentialState(cred, now)
		line := fmt.Sprintf("%-10s %s", p, state)
		if state != oauth.StateUnlinked && !cred.ExpiresAt.IsZero() {
			line += separator + "expires " + cred.ExpiresAt.Local().Format("Jan 2, 2006 15:04")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// FormatTimestamp formats a timestamp as relative time.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	diff := f.now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// pluralize returns "N unit ago" or "N units ago" based on count.
func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}
