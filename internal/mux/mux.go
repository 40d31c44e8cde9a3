// Package mux provides an abstraction over terminal multiplexers (tmux,
// zellij). It is pure transport: pane topology, visible content, and
// keystroke injection, with no interpretation of what a pane contains.
package mux

import (
	"context"
	"errors"

	"github.com/telebridge/telebridge/internal/model"
)

// ErrPaneNotFound is returned when a target refers to a pane that does
// not exist (never created, or destroyed since it was last seen).
var ErrPaneNotFound = errors.New("pane not found")

// ErrInvalidKey is returned by SendKey for an unknown key symbol.
var ErrInvalidKey = errors.New("invalid key symbol")

// Multiplexer abstracts terminal multiplexer operations.
// Implementations exist for tmux and (future) zellij.
type Multiplexer interface {
	// Name returns the multiplexer name (e.g., "tmux", "zellij").
	Name() string

	// ListPanes returns all panes. It returns an empty slice, not an
	// error, when no multiplexer server is running.
	ListPanes(ctx context.Context) ([]model.Pane, error)

	// PaneExists reports whether the target refers to a live pane.
	PaneExists(ctx context.Context, target string) bool

	// CapturePane captures the visible content of a pane (not scrollback).
	// Returns ErrPaneNotFound if the pane is gone.
	CapturePane(ctx context.Context, target string) (string, error)

	// SendText types literal text into a pane. When enter is true the
	// text is submitted; otherwise it is left on the input line.
	SendText(ctx context.Context, target, text string, enter bool) error

	// SendKey sends a named control key to a pane. The symbol must be
	// one of the Key* constants; anything else fails with ErrInvalidKey.
	SendKey(ctx context.Context, target string, key Key) error

	// ResizePane resizes a pane to the given width in columns. Widths
	// outside [MinPaneWidth, MaxPaneWidth] are clamped, not rejected.
	ResizePane(ctx context.Context, target string, width int) error

	// NewSession creates a detached session and returns its name and the
	// target of its first pane.
	NewSession(ctx context.Context, name, workDir string) (string, string, error)

	// KillSession destroys a session and every pane in it.
	KillSession(ctx context.Context, session string) error
}
