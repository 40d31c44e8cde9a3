package capture

import (
	"regexp"
	"strings"
)

// Escape sequences stripped before content is sent to the remote
// channel. Telegram renders none of them, and cursor movement sequences
// would otherwise show up as garbage in the monospace block.
var (
	sgrRe  = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	csiRe  = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	oscRe  = regexp.MustCompile(`\x1b\][^\x07]*\x07`)
	dcsRe  = regexp.MustCompile(`\x1b[PX^_][^\x1b]*\x1b\\`)
	hbarRe = regexp.MustCompile(`[─━═]{20,}`)
	dashRe = regexp.MustCompile(`-{20,}`)
	eqRe   = regexp.MustCompile(`={20,}`)
)

// Clean strips ANSI/OSC escape sequences and carriage returns from
// captured content, and compresses long horizontal rules so box-drawing
// heavy TUIs do not waste the per-message character budget.
func Clean(content string) string {
	content = sgrRe.ReplaceAllString(content, "")
	content = csiRe.ReplaceAllString(content, "")
	content = oscRe.ReplaceAllString(content, "")
	content = dcsRe.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "\r", "")

	content = hbarRe.ReplaceAllString(content, strings.Repeat("─", 20))
	content = dashRe.ReplaceAllString(content, strings.Repeat("-", 20))
	content = eqRe.ReplaceAllString(content, strings.Repeat("=", 20))

	return content
}

// CleanLines applies Clean to each line and strips trailing whitespace.
func CleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimRight(Clean(line), " \t"))
	}
	return out
}

// Window returns the last max lines, after dropping trailing blanks.
// A max of 0 or less disables the window.
func Window(lines []string, max int) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if max > 0 && len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}
