package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telebridge/telebridge/internal/model"
	"github.com/telebridge/telebridge/internal/mux"
)

// Callback data prefixes. Telegram caps callback data at 64 bytes, so
// the payload is the bare pane target or key symbol.
const (
	callbackConnect = "connect:"
	callbackKey     = "key:"

	// keyToggleMode rides the key namespace but flips the input mode
	// instead of sending a keystroke.
	keyToggleMode = "toggle_mode"
)

// parseCallback splits callback data into its action and payload.
// Returns ok=false for data this bot never produced (stale buttons
// from an older build, or another bot sharing the chat).
func parseCallback(data string) (action, payload string, ok bool) {
	switch {
	case strings.HasPrefix(data, callbackConnect):
		return "connect", strings.TrimPrefix(data, callbackConnect), true
	case strings.HasPrefix(data, callbackKey):
		return "key", strings.TrimPrefix(data, callbackKey), true
	}
	return "", "", false
}

// paneKeyboard builds an inline keyboard with one button per pane.
func paneKeyboard(panes []model.Pane) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(panes))
	for _, p := range panes {
		label := p.Target
		if p.Command != "" {
			label = fmt.Sprintf("%s (%s)", p.Target, p.Command)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackConnect+p.Target),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// keyRows lays out the control-key pad: arrows on top, then editing
// keys, then interrupts, then the input-mode toggle.
var keyRows = [][]struct {
	label  string
	symbol string
}{
	{
		{"⬆", string(mux.KeyUp)},
		{"⬇", string(mux.KeyDown)},
		{"⬅", string(mux.KeyLeft)},
		{"➡", string(mux.KeyRight)},
	},
	{
		{"Enter", string(mux.KeyEnter)},
		{"Esc", string(mux.KeyEscape)},
		{"Tab", string(mux.KeyTab)},
		{"⇧Tab", string(mux.KeyShiftTab)},
	},
	{
		{"⌫", string(mux.KeyBackspace)},
		{"Ctrl-C", string(mux.KeyCtrlC)},
		{"Ctrl-C ×2", string(mux.KeyCtrlCC)},
	},
	{
		{"Toggle input mode", keyToggleMode},
	},
}

// keyKeyboard builds the control-key pad shown by /keys.
func keyKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyRows))
	for _, row := range keyRows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, k := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(k.label, callbackKey+k.symbol))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
