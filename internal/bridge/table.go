package bridge

import (
	"errors"
	"sort"
	"time"
)

// ErrNotConnected is returned by operations that require an active
// connection when the conversation has none.
var ErrNotConnected = errors.New("not connected")

// InputMode controls whether typed text is submitted automatically.
type InputMode int

const (
	// ModeAuto sends text followed by Enter.
	ModeAuto InputMode = iota
	// ModeWait leaves text on the pane's input line, unsent.
	ModeWait
)

// String returns "auto" or "wait".
func (m InputMode) String() string {
	if m == ModeWait {
		return "wait"
	}
	return "auto"
}

// Connection binds one remote conversation to one pane, plus the
// per-conversation settings the command layer can adjust.
type Connection struct {
	ConversationID int64
	Target         string
	Mode           InputMode
	Width          int
	CreatedAt      time.Time
}

// Table is the authoritative conversation → connection mapping, with a
// reverse index for pane → watching conversations. It is plain data:
// all mutation happens on the bridge's control loop, so the table
// carries no lock of its own.
type Table struct {
	byConv map[int64]*Connection
	byPane map[string]map[int64]struct{}
}

// NewTable creates an empty connection table.
func NewTable() *Table {
	return &Table{
		byConv: make(map[int64]*Connection),
		byPane: make(map[string]map[int64]struct{}),
	}
}

// Connect installs a connection for the conversation. An existing
// connection is fully torn down first (reverse index included) and
// returned so the caller can discard its buffer state — a conversation
// never has two live connections.
func (t *Table) Connect(conversationID int64, target string, now time.Time) (replaced *Connection) {
	if old, ok := t.byConv[conversationID]; ok {
		t.remove(old)
		replaced = old
	}

	conn := &Connection{
		ConversationID: conversationID,
		Target:         target,
		Mode:           ModeAuto,
		CreatedAt:      now,
	}
	t.byConv[conversationID] = conn
	watchers, ok := t.byPane[target]
	if !ok {
		watchers = make(map[int64]struct{})
		t.byPane[target] = watchers
	}
	watchers[conversationID] = struct{}{}
	return replaced
}

// Disconnect removes the conversation's connection. Fails with
// ErrNotConnected if there is none.
func (t *Table) Disconnect(conversationID int64) (*Connection, error) {
	conn, ok := t.byConv[conversationID]
	if !ok {
		return nil, ErrNotConnected
	}
	t.remove(conn)
	return conn, nil
}

// Lookup returns the conversation's connection, or nil.
func (t *Table) Lookup(conversationID int64) *Connection {
	return t.byConv[conversationID]
}

// Watchers returns the conversations watching a pane, sorted for
// deterministic fan-out order.
func (t *Table) Watchers(target string) []int64 {
	set := t.byPane[target]
	if len(set) == 0 {
		return nil
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Targets returns the distinct panes with at least one watcher, sorted.
func (t *Table) Targets() []string {
	out := make([]string, 0, len(t.byPane))
	for target := range t.byPane {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of live connections.
func (t *Table) Len() int {
	return len(t.byConv)
}

func (t *Table) remove(conn *Connection) {
	delete(t.byConv, conn.ConversationID)
	if watchers, ok := t.byPane[conn.Target]; ok {
		delete(watchers, conn.ConversationID)
		if len(watchers) == 0 {
			delete(t.byPane, conn.Target)
		}
	}
}
