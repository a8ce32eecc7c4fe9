// Package util provides small helpers shared by the command-line surfaces.
package util

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks truncated display text.
const Ellipsis = "..."

// Printable renders device data for a terminal: control characters are
// escaped so a client cannot inject cursor movement into someone else's
// report, and the result is cut to maxWidth columns. A maxWidth <= 0
// disables truncation.
func Printable(data []byte, maxWidth int) string {
	var sb strings.Builder
	for _, r := range string(data) {
		switch {
		case r == '\n':
			sb.WriteString(`\n`)
		case r < 0x20 || r == 0x7f:
			q := strconv.QuoteRune(r)
			sb.WriteString(q[1 : len(q)-1])
		default:
			sb.WriteRune(r)
		}
	}
	return Truncate(sb.String(), maxWidth)
}

// Truncate cuts s to maxWidth visual columns, ending in Ellipsis when
// anything was dropped. Escape sequences and wide characters are measured
// the way a terminal draws them. A maxWidth <= 0 returns s unchanged.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 || lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(Ellipsis) {
		return Ellipsis[:maxWidth]
	}
	return ansi.Truncate(s, maxWidth, Ellipsis)
}
