// Package capture snapshots pane content and classifies how it changed
// between consecutive polls.
//
// The engine retains exactly one prior snapshot per pane. Snapshots are
// replaced wholesale on every observation, never mutated, so diffing is
// a pure comparison of two immutable line slices.
package capture

import (
	"context"
	"strings"
	"time"

	"github.com/telebridge/telebridge/internal/model"
	"github.com/telebridge/telebridge/internal/mux"
)

// Snapshot is one capture of a pane's visible content.
type Snapshot struct {
	Lines      []string
	CapturedAt time.Time
}

// Engine captures panes through a Multiplexer and diffs against the
// previous snapshot of each pane. It is not safe for concurrent use on
// the same pane; the poll scheduler serializes observations per pane.
type Engine struct {
	mux  mux.Multiplexer
	prev map[string]Snapshot
}

// NewEngine creates an engine with no retained snapshots.
func NewEngine(m mux.Multiplexer) *Engine {
	return &Engine{
		mux:  m,
		prev: make(map[string]Snapshot),
	}
}

// Capture takes a fresh snapshot of the pane without touching the
// retained state. Fails with mux.ErrPaneNotFound if the pane is gone.
func (e *Engine) Capture(ctx context.Context, target string) (Snapshot, error) {
	content, err := e.mux.CapturePane(ctx, target)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Lines:      splitLines(content),
		CapturedAt: time.Now(),
	}, nil
}

// Observe captures the pane, diffs against the retained snapshot, and
// retains the new one. The first observation of a pane always yields
// Replaced with the full content.
func (e *Engine) Observe(ctx context.Context, target string) (model.Diff, error) {
	cur, err := e.Capture(ctx, target)
	if err != nil {
		return model.Diff{}, err
	}
	return e.Apply(target, cur), nil
}

// Apply diffs a freshly captured snapshot against the retained one and
// retains the new snapshot. Splitting Capture from Apply lets the poll
// scheduler capture several panes concurrently while applying results
// serially on its control loop.
func (e *Engine) Apply(target string, cur Snapshot) model.Diff {
	old, seen := e.prev[target]
	e.prev[target] = cur

	if !seen {
		return model.Diff{Kind: model.Replaced, Lines: cur.Lines}
	}
	return DiffSnapshots(old, cur)
}

// Forget drops the retained snapshot for a pane, so the next Observe
// reports the full content again. Called when the last watcher of a
// pane disconnects.
func (e *Engine) Forget(target string) {
	delete(e.prev, target)
}

// DiffSnapshots classifies the change between two snapshots.
//
// If the new snapshot has at least as many lines and the old lines are
// a prefix of the new ones, only the trailing lines are new (Appended).
// Anything else — scrollback rotation, clear screen, resize — reports
// the full new content (Replaced) rather than a misleading partial diff.
func DiffSnapshots(old, cur Snapshot) model.Diff {
	if equalLines(old.Lines, cur.Lines) {
		return model.Diff{Kind: model.Unchanged}
	}
	if len(cur.Lines) >= len(old.Lines) && isPrefix(old.Lines, cur.Lines) {
		return model.Diff{
			Kind:  model.Appended,
			Lines: cur.Lines[len(old.Lines):],
		}
	}
	return model.Diff{Kind: model.Replaced, Lines: cur.Lines}
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isPrefix(prefix, lines []string) bool {
	for i := range prefix {
		if prefix[i] != lines[i] {
			return false
		}
	}
	return true
}

// splitLines splits captured content into lines, dropping trailing
// blank viewport rows so an idle shell prompt does not churn the diff
// when the pane height changes.
func splitLines(content string) []string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
