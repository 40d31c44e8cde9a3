package cmd

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClipLineKeepsRunesWhole(t *testing.T) {
	// Box-drawing output from tmux panes is multi-byte; a byte-offset cut
	// must back up to the previous rune boundary instead of emitting a
	// broken sequence.
	line := "┌──────┐"
	for max := 0; max <= len(line); max++ {
		got := clipLine(line, max)
		if len(got) > max {
			t.Errorf("clipLine(%q, %d) = %q, longer than %d bytes", line, max, got, max)
		}
		if !utf8.ValidString(got) {
			t.Errorf("clipLine(%q, %d) = %q, invalid UTF-8", line, max, got)
		}
	}

	if got := clipLine("plain", 10); got != "plain" {
		t.Errorf("clipLine left short line as %q", got)
	}
}

func TestPreviewLinesDoNotMutateCache(t *testing.T) {
	cached := []string{
		"first line of the pane",
		"second line that is quite a bit longer than the clip width",
	}
	orig := append([]string(nil), cached...)

	shown := previewLines(cached, 10, 12)
	if len(shown) != 2 {
		t.Fatalf("previewLines returned %d lines, want 2", len(shown))
	}
	for i, line := range shown {
		if len(line) > 12 {
			t.Errorf("line %d not clipped: %q", i, line)
		}
	}
	for i := range cached {
		if cached[i] != orig[i] {
			t.Errorf("cached line %d changed to %q", i, cached[i])
		}
	}
}

func TestPreviewLinesWindowsToHeight(t *testing.T) {
	var cached []string
	for i := 0; i < 8; i++ {
		cached = append(cached, strings.Repeat("x", i+1))
	}
	shown := previewLines(cached, 3, 80)
	if len(shown) != 3 {
		t.Fatalf("previewLines returned %d lines, want 3", len(shown))
	}
	if shown[0] != cached[5] {
		t.Errorf("window starts at %q, want %q", shown[0], cached[5])
	}
}
