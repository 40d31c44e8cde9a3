package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/telebridge/telebridge/internal/capture"
	"github.com/telebridge/telebridge/internal/model"
	"github.com/telebridge/telebridge/internal/mux"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactively pick a pane",
	Long: `Open an interactive picker over all panes with a live preview of the
selected pane's content. The chosen target is printed to stdout, so the
picker composes with other commands:

  telebridge capture "$(telebridge pick)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}
		return runPicker(cmd.Context(), m)
	},
}

func init() {
	rootCmd.AddCommand(pickCmd)
}

// Styles
var (
	pickTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	pickSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	pickDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pickPreviewStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(lipgloss.Color("8")).PaddingLeft(1)
)

const previewInterval = time.Second

// messages
type panesMsg struct {
	panes []model.Pane
	err   error
}

type previewMsg struct {
	target string
	lines  []string
}

type previewTickMsg struct{}

type pickerModel struct {
	ctx   context.Context
	mux   mux.Multiplexer
	panes []model.Pane

	filter  textinput.Model
	visible []int // indices into panes matching the filter
	cursor  int

	preview       []string
	previewTarget string

	width  int
	height int

	chosen string
	err    error
}

func runPicker(ctx context.Context, m mux.Multiplexer) error {
	ti := textinput.New()
	ti.Placeholder = "filter panes..."
	ti.Focus()
	ti.CharLimit = 64

	pm := &pickerModel{ctx: ctx, mux: m, filter: ti}
	// Render to stderr so the chosen target on stdout stays pipeable.
	prog := tea.NewProgram(pm, tea.WithAltScreen(), tea.WithOutput(os.Stderr))
	final, err := prog.Run()
	if err != nil {
		return err
	}
	result := final.(*pickerModel)
	if result.err != nil {
		return result.err
	}
	if result.chosen == "" {
		return fmt.Errorf("no pane selected")
	}
	fmt.Println(result.chosen)
	return nil
}

func (m *pickerModel) Init() tea.Cmd {
	return tea.Batch(m.loadPanes(), textinput.Blink)
}

func (m *pickerModel) loadPanes() tea.Cmd {
	return func() tea.Msg {
		panes, err := m.mux.ListPanes(m.ctx)
		return panesMsg{panes: panes, err: err}
	}
}

func (m *pickerModel) capturePreview() tea.Cmd {
	target := m.selectedTarget()
	if target == "" {
		return nil
	}
	return func() tea.Msg {
		content, err := m.mux.CapturePane(m.ctx, target)
		if err != nil {
			return previewMsg{target: target, lines: []string{"(capture failed: " + err.Error() + ")"}}
		}
		lines := capture.CleanLines(strings.Split(content, "\n"))
		return previewMsg{target: target, lines: lines}
	}
}

func previewTick() tea.Cmd {
	return tea.Tick(previewInterval, func(time.Time) tea.Msg {
		return previewTickMsg{}
	})
}

func (m *pickerModel) selectedTarget() string {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return ""
	}
	return m.panes[m.visible[m.cursor]].Target
}

// applyFilter rebuilds the visible set from the filter text, keeping
// the cursor on the previously selected pane when it still matches.
func (m *pickerModel) applyFilter() {
	prev := m.selectedTarget()
	needle := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for i, p := range m.panes {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Target), needle) ||
			strings.Contains(strings.ToLower(p.Command), needle) ||
			strings.Contains(strings.ToLower(p.WindowName), needle) {
			m.visible = append(m.visible, i)
		}
	}
	m.cursor = 0
	for vi, pi := range m.visible {
		if m.panes[pi].Target == prev {
			m.cursor = vi
			break
		}
	}
}

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case panesMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.panes = msg.panes
		m.applyFilter()
		return m, tea.Batch(m.capturePreview(), previewTick())

	case previewMsg:
		// Drop stale previews from a pane the cursor already left.
		if msg.target == m.selectedTarget() {
			m.preview = msg.lines
			m.previewTarget = msg.target
		}
		return m, nil

	case previewTickMsg:
		return m, tea.Batch(m.capturePreview(), previewTick())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.chosen = m.selectedTarget()
			return m, tea.Quit
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
			}
			return m, m.capturePreview()
		case tea.KeyDown:
			if m.cursor < len(m.visible)-1 {
				m.cursor++
			}
			return m, m.capturePreview()
		}

		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, tea.Batch(cmd, m.capturePreview())
	}

	return m, nil
}

// previewLines trims the preview to the last height lines and clips each
// line to width bytes. The input is the cached capture, so the clipped
// lines are copies rather than writes into the cache.
func previewLines(lines []string, height, width int) []string {
	shown := append([]string(nil), capture.Window(lines, height)...)
	for i, line := range shown {
		shown[i] = clipLine(line, width)
	}
	return shown
}

// clipLine cuts s to at most max bytes without splitting a UTF-8 rune.
func clipLine(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (m *pickerModel) View() string {
	var sb strings.Builder
	sb.WriteString(pickTitleStyle.Render("Pick a pane"))
	sb.WriteString("  ")
	sb.WriteString(m.filter.View())
	sb.WriteString("\n\n")

	listHeight := m.height - 6
	if listHeight < 3 {
		listHeight = 3
	}

	listWidth := 0
	var rows []string
	for vi, pi := range m.visible {
		if vi >= listHeight {
			rows = append(rows, pickDimStyle.Render(fmt.Sprintf("  ... %d more", len(m.visible)-listHeight)))
			break
		}
		p := m.panes[pi]
		label := fmt.Sprintf("%s  %s", p.Target, p.Command)
		if vi == m.cursor {
			rows = append(rows, pickSelectedStyle.Render("> "+label))
		} else {
			rows = append(rows, "  "+label)
		}
		if len(label)+2 > listWidth {
			listWidth = len(label) + 2
		}
	}
	if len(m.visible) == 0 {
		rows = append(rows, pickDimStyle.Render("  (no matching panes)"))
	}

	list := strings.Join(rows, "\n")

	previewWidth := m.width - listWidth - 6
	if previewWidth > 20 && len(m.preview) > 0 {
		shown := previewLines(m.preview, listHeight, previewWidth)
		preview := pickPreviewStyle.Render(strings.Join(shown, "\n"))
		list = lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", preview)
	}

	sb.WriteString(list)
	sb.WriteString("\n\n")
	sb.WriteString(pickDimStyle.Render("enter: select   esc: cancel   type to filter"))
	return sb.String()
}
