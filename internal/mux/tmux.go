package mux

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/telebridge/telebridge/internal/model"
)

// Pane width clamp bounds. tmux rejects absurd widths; instead of
// surfacing that as an error we clamp, per the resize contract.
const (
	MinPaneWidth = 10
	MaxPaneWidth = 500
)

// Tmux implements the Multiplexer interface for tmux.
type Tmux struct{}

// NewTmux creates a new tmux multiplexer.
func NewTmux() *Tmux {
	return &Tmux{}
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

// ListPanes returns all tmux panes. A missing or stopped tmux server
// yields an empty slice, not an error.
func (t *Tmux) ListPanes(ctx context.Context) ([]model.Pane, error) {
	// Format: session:window.pane\twindow_name\tcurrent_command\twidth\theight
	format := "#{session_name}:#{window_index}.#{pane_index}\t#{window_name}\t#{pane_current_command}\t#{pane_width}\t#{pane_height}"
	out, err := t.run(ctx, "list-panes", "-a", "-F", format)
	if err != nil {
		if isServerDown(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("tmux list-panes: %w", err)
	}

	var panes []model.Pane
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 5)
		if len(parts) != 5 {
			continue
		}

		pane, err := model.ParseTarget(parts[0])
		if err != nil {
			continue
		}
		pane.WindowName = parts[1]
		pane.Command = parts[2]
		pane.Width, _ = strconv.Atoi(parts[3])
		pane.Height, _ = strconv.Atoi(parts[4])

		panes = append(panes, pane)
	}

	return panes, nil
}

// PaneExists reports whether the target refers to a live pane.
func (t *Tmux) PaneExists(ctx context.Context, target string) bool {
	_, err := t.run(ctx, "display-message", "-t", target, "-p", "#{pane_id}")
	return err == nil
}

// CapturePane captures the visible content of a tmux pane.
// Uses -p (stdout); trailing blank rows of the viewport are kept so the
// caller sees the pane exactly as tmux renders it.
func (t *Tmux) CapturePane(ctx context.Context, target string) (string, error) {
	out, err := t.run(ctx, "capture-pane", "-t", target, "-p")
	if err != nil {
		if !t.PaneExists(ctx, target) {
			return "", fmt.Errorf("capture %s: %w", target, ErrPaneNotFound)
		}
		return "", fmt.Errorf("tmux capture-pane -t %s: %w", target, err)
	}
	return out, nil
}

// SendText types literal text into a pane using send-keys -l, so tmux
// does not interpret the text as key names. Enter is sent as a separate
// key event when requested.
func (t *Tmux) SendText(ctx context.Context, target, text string, enter bool) error {
	if !t.PaneExists(ctx, target) {
		return fmt.Errorf("send to %s: %w", target, ErrPaneNotFound)
	}
	if _, err := t.run(ctx, "send-keys", "-t", target, "-l", text); err != nil {
		return fmt.Errorf("tmux send-keys -l: %w", err)
	}
	if enter {
		if _, err := t.run(ctx, "send-keys", "-t", target, "Enter"); err != nil {
			return fmt.Errorf("tmux send-keys Enter: %w", err)
		}
	}
	return nil
}

// SendKey sends a named control key. KeyCtrlCC issues two Ctrl-C key
// events back to back.
func (t *Tmux) SendKey(ctx context.Context, target string, key Key) error {
	name, ok := tmuxKeyNames[key]
	if !ok {
		return fmt.Errorf("send key %q: %w", key, ErrInvalidKey)
	}
	if !t.PaneExists(ctx, target) {
		return fmt.Errorf("send key to %s: %w", target, ErrPaneNotFound)
	}

	repeats := 1
	if key == KeyCtrlCC {
		repeats = 2
	}
	for i := 0; i < repeats; i++ {
		if _, err := t.run(ctx, "send-keys", "-t", target, name); err != nil {
			return fmt.Errorf("tmux send-keys %s: %w", name, err)
		}
	}
	return nil
}

// ResizePane resizes a pane to the given width, clamped to
// [MinPaneWidth, MaxPaneWidth].
func (t *Tmux) ResizePane(ctx context.Context, target string, width int) error {
	width = ClampWidth(width)
	if !t.PaneExists(ctx, target) {
		return fmt.Errorf("resize %s: %w", target, ErrPaneNotFound)
	}
	if _, err := t.run(ctx, "resize-pane", "-t", target, "-x", strconv.Itoa(width)); err != nil {
		return fmt.Errorf("tmux resize-pane: %w", err)
	}
	return nil
}

// NewSession creates a detached session. An empty name lets tmux pick
// one. Returns the session name and the target of its first pane.
func (t *Tmux) NewSession(ctx context.Context, name, workDir string) (string, string, error) {
	args := []string{"new-session", "-d", "-P", "-F", "#{session_name}:#{window_index}.#{pane_index}"}
	if name != "" {
		args = append(args, "-s", name)
	}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	out, err := t.run(ctx, args...)
	if err != nil {
		return "", "", fmt.Errorf("tmux new-session: %w", err)
	}
	target := strings.TrimSpace(out)
	pane, err := model.ParseTarget(target)
	if err != nil {
		return "", "", fmt.Errorf("tmux new-session returned %q: %w", target, err)
	}
	return pane.Session, target, nil
}

// KillSession destroys a session.
func (t *Tmux) KillSession(ctx context.Context, session string) error {
	if _, err := t.run(ctx, "kill-session", "-t", session); err != nil {
		return fmt.Errorf("tmux kill-session %s: %w", session, err)
	}
	return nil
}

// ClampWidth clamps a requested pane width into the supported range.
func ClampWidth(width int) int {
	if width < MinPaneWidth {
		return MinPaneWidth
	}
	if width > MaxPaneWidth {
		return MaxPaneWidth
	}
	return width
}

// run executes a tmux command and returns its stdout.
func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%w: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}

// isServerDown reports whether a tmux error means "no server running"
// (as opposed to a real failure).
func isServerDown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no server running") ||
		strings.Contains(msg, "error connecting to") ||
		strings.Contains(msg, "executable file not found")
}
