package mux

// Key is a named control key that can be injected into a pane.
// The values double as the wire symbols used by the remote keyboard
// (callback data), so they stay lowercase and stable.
type Key string

const (
	KeyUp        Key = "up"
	KeyDown      Key = "down"
	KeyLeft      Key = "left"
	KeyRight     Key = "right"
	KeyEnter     Key = "enter"
	KeyBackspace Key = "backspace"
	KeyTab       Key = "tab"
	KeyShiftTab  Key = "shift_tab"
	KeyEscape    Key = "esc"
	KeyCtrlC     Key = "ctrl_c"
	// KeyCtrlCC sends Ctrl-C twice with no delay; several TUIs require a
	// double interrupt to actually quit.
	KeyCtrlCC Key = "ctrl_cc"
)

// tmuxKeyNames maps key symbols to tmux send-keys names.
var tmuxKeyNames = map[Key]string{
	KeyUp:        "Up",
	KeyDown:      "Down",
	KeyLeft:      "Left",
	KeyRight:     "Right",
	KeyEnter:     "Enter",
	KeyBackspace: "BSpace",
	KeyTab:       "Tab",
	KeyShiftTab:  "BTab",
	KeyEscape:    "Escape",
	KeyCtrlC:     "C-c",
	KeyCtrlCC:    "C-c",
}

// ParseKey returns the Key for a wire symbol, or ErrInvalidKey.
func ParseKey(symbol string) (Key, error) {
	k := Key(symbol)
	if _, ok := tmuxKeyNames[k]; !ok {
		return "", ErrInvalidKey
	}
	return k, nil
}

// Keys returns all valid key symbols, for help output.
func Keys() []Key {
	return []Key{
		KeyUp, KeyDown, KeyLeft, KeyRight, KeyEnter, KeyBackspace,
		KeyTab, KeyShiftTab, KeyEscape, KeyCtrlC, KeyCtrlCC,
	}
}
