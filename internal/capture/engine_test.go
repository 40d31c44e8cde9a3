package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/telebridge/telebridge/internal/model"
	"github.com/telebridge/telebridge/internal/mux"
)

// fakeMux serves canned content per target.
type fakeMux struct {
	content map[string]string
	gone    map[string]bool
}

func newFakeMux() *fakeMux {
	return &fakeMux{content: make(map[string]string), gone: make(map[string]bool)}
}

func (f *fakeMux) Name() string { return "fake" }

func (f *fakeMux) ListPanes(ctx context.Context) ([]model.Pane, error) {
	var panes []model.Pane
	for target := range f.content {
		p, _ := model.ParseTarget(target)
		panes = append(panes, p)
	}
	return panes, nil
}

func (f *fakeMux) PaneExists(ctx context.Context, target string) bool {
	_, ok := f.content[target]
	return ok && !f.gone[target]
}

func (f *fakeMux) CapturePane(ctx context.Context, target string) (string, error) {
	if !f.PaneExists(ctx, target) {
		return "", mux.ErrPaneNotFound
	}
	return f.content[target], nil
}

func (f *fakeMux) SendText(ctx context.Context, target, text string, enter bool) error {
	if !f.PaneExists(ctx, target) {
		return mux.ErrPaneNotFound
	}
	return nil
}

func (f *fakeMux) SendKey(ctx context.Context, target string, key mux.Key) error {
	if !f.PaneExists(ctx, target) {
		return mux.ErrPaneNotFound
	}
	return nil
}

func (f *fakeMux) ResizePane(ctx context.Context, target string, width int) error { return nil }

func (f *fakeMux) NewSession(ctx context.Context, name, workDir string) (string, string, error) {
	return name, name + ":0.0", nil
}

func (f *fakeMux) KillSession(ctx context.Context, session string) error { return nil }

func TestObserve_FirstCaptureIsReplaced(t *testing.T) {
	fm := newFakeMux()
	fm.content["s:0.0"] = "a\nb\n"
	e := NewEngine(fm)

	d, err := e.Observe(context.Background(), "s:0.0")
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if d.Kind != model.Replaced {
		t.Errorf("first observe: got %v, want Replaced", d.Kind)
	}
	if len(d.Lines) != 2 || d.Lines[0] != "a" || d.Lines[1] != "b" {
		t.Errorf("lines: got %v", d.Lines)
	}
}

func TestObserve_UnchangedTwice(t *testing.T) {
	fm := newFakeMux()
	fm.content["s:0.0"] = "a\nb\n"
	e := NewEngine(fm)
	ctx := context.Background()

	if _, err := e.Observe(ctx, "s:0.0"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		d, err := e.Observe(ctx, "s:0.0")
		if err != nil {
			t.Fatal(err)
		}
		if d.Kind != model.Unchanged {
			t.Errorf("observe %d: got %v, want Unchanged", i, d.Kind)
		}
	}
}

func TestObserve_Appended(t *testing.T) {
	fm := newFakeMux()
	fm.content["s:0.0"] = "a\nb\n"
	e := NewEngine(fm)
	ctx := context.Background()

	if _, err := e.Observe(ctx, "s:0.0"); err != nil {
		t.Fatal(err)
	}

	fm.content["s:0.0"] = "a\nb\nc\n"
	d, err := e.Observe(ctx, "s:0.0")
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != model.Appended {
		t.Fatalf("got %v, want Appended", d.Kind)
	}
	if len(d.Lines) != 1 || d.Lines[0] != "c" {
		t.Errorf("appended lines: got %v, want [c]", d.Lines)
	}
}

func TestObserve_ReplacedOnRewrite(t *testing.T) {
	fm := newFakeMux()
	fm.content["s:0.0"] = "a\nb\n"
	e := NewEngine(fm)
	ctx := context.Background()

	if _, err := e.Observe(ctx, "s:0.0"); err != nil {
		t.Fatal(err)
	}

	fm.content["s:0.0"] = "x\ny\n"
	d, err := e.Observe(ctx, "s:0.0")
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != model.Replaced {
		t.Fatalf("got %v, want Replaced", d.Kind)
	}
	if len(d.Lines) != 2 || d.Lines[0] != "x" || d.Lines[1] != "y" {
		t.Errorf("replaced lines: got %v, want [x y]", d.Lines)
	}
}

func TestObserve_ShrinkIsReplaced(t *testing.T) {
	// Fewer lines than before (clear screen) must never be Appended.
	fm := newFakeMux()
	fm.content["s:0.0"] = "a\nb\nc\n"
	e := NewEngine(fm)
	ctx := context.Background()

	if _, err := e.Observe(ctx, "s:0.0"); err != nil {
		t.Fatal(err)
	}
	fm.content["s:0.0"] = "a\n"
	d, err := e.Observe(ctx, "s:0.0")
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != model.Replaced {
		t.Errorf("got %v, want Replaced", d.Kind)
	}
}

func TestObserve_PaneNotFound(t *testing.T) {
	fm := newFakeMux()
	e := NewEngine(fm)

	_, err := e.Observe(context.Background(), "ghost:0.0")
	if !errors.Is(err, mux.ErrPaneNotFound) {
		t.Errorf("expected ErrPaneNotFound, got %v", err)
	}
}

func TestForget_NextObserveIsReplaced(t *testing.T) {
	fm := newFakeMux()
	fm.content["s:0.0"] = "a\n"
	e := NewEngine(fm)
	ctx := context.Background()

	if _, err := e.Observe(ctx, "s:0.0"); err != nil {
		t.Fatal(err)
	}
	e.Forget("s:0.0")

	d, err := e.Observe(ctx, "s:0.0")
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != model.Replaced {
		t.Errorf("after Forget: got %v, want Replaced", d.Kind)
	}
}

func TestDiffSnapshots_SpecExamples(t *testing.T) {
	old := Snapshot{Lines: []string{"a", "b"}}

	d := DiffSnapshots(old, Snapshot{Lines: []string{"a", "b", "c"}})
	if d.Kind != model.Appended || len(d.Lines) != 1 || d.Lines[0] != "c" {
		t.Errorf("append case: got %v %v", d.Kind, d.Lines)
	}

	d = DiffSnapshots(old, Snapshot{Lines: []string{"x", "y"}})
	if d.Kind != model.Replaced || len(d.Lines) != 2 {
		t.Errorf("replace case: got %v %v", d.Kind, d.Lines)
	}

	d = DiffSnapshots(old, Snapshot{Lines: []string{"a", "b"}})
	if d.Kind != model.Unchanged || d.Lines != nil {
		t.Errorf("unchanged case: got %v %v", d.Kind, d.Lines)
	}
}

func TestSplitLines_DropsTrailingBlanks(t *testing.T) {
	lines := splitLines("a\nb\n\n  \n")
	if len(lines) != 2 || lines[0] != "a" || lines[1] != "b" {
		t.Errorf("got %v", lines)
	}
}
