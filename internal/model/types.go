// Package model holds the shared data types for the bridge: pane
// identities and the diff classification produced by the capture engine.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Pane represents a terminal multiplexer pane.
type Pane struct {
	// Target is the fully qualified pane identifier (e.g., "session:0.0").
	Target string `json:"target"`
	// Session is the session name.
	Session string `json:"session"`
	// Window is the window index.
	Window int `json:"window"`
	// Pane is the pane index.
	Pane int `json:"pane"`
	// WindowName is the name of the window containing the pane.
	WindowName string `json:"window_name,omitempty"`
	// Command is the current command running in the pane (e.g., "node", "bash").
	Command string `json:"command"`
	// Width and Height are the pane dimensions in cells.
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String returns a human-readable identifier, e.g. "work:0.1 (vim)".
func (p Pane) String() string {
	if p.WindowName != "" {
		return fmt.Sprintf("%s (%s)", p.Target, p.WindowName)
	}
	return p.Target
}

// ParseTarget parses a tmux target string "session:window.pane" into a Pane.
func ParseTarget(target string) (Pane, error) {
	colonIdx := strings.LastIndex(target, ":")
	if colonIdx < 0 {
		return Pane{}, fmt.Errorf("invalid target %q: missing ':'", target)
	}

	session := target[:colonIdx]
	rest := target[colonIdx+1:]

	dotIdx := strings.LastIndex(rest, ".")
	if dotIdx < 0 {
		return Pane{}, fmt.Errorf("invalid target %q: missing '.'", target)
	}

	window, err := strconv.Atoi(rest[:dotIdx])
	if err != nil {
		return Pane{}, fmt.Errorf("invalid window index in %q: %w", target, err)
	}

	pane, err := strconv.Atoi(rest[dotIdx+1:])
	if err != nil {
		return Pane{}, fmt.Errorf("invalid pane index in %q: %w", target, err)
	}

	return Pane{
		Target:  target,
		Session: session,
		Window:  window,
		Pane:    pane,
	}, nil
}

// ValidTarget reports whether target looks like "session:window.pane".
func ValidTarget(target string) bool {
	_, err := ParseTarget(target)
	return err == nil
}

// DiffKind classifies how a pane's visible content changed between
// two consecutive captures.
type DiffKind int

const (
	// Unchanged: the snapshots are line-for-line identical.
	Unchanged DiffKind = iota
	// Appended: the old lines are a prefix of the new ones; only the
	// trailing lines are new.
	Appended
	// Replaced: anything else (scroll, clear, resize). The full new
	// content is reported to avoid emitting a misleading partial diff.
	Replaced
)

// String returns the lowercase kind name, used as a metric attribute.
func (k DiffKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Appended:
		return "appended"
	case Replaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Diff is the result of comparing two snapshots of the same pane.
type Diff struct {
	Kind DiffKind
	// Lines holds the new trailing lines for Appended, or the full new
	// content for Replaced. Empty for Unchanged.
	Lines []string
}
