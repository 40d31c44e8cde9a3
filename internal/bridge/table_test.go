package bridge

import (
	"testing"
	"time"
)

func TestTableConnectDisconnect(t *testing.T) {
	tab := NewTable()
	now := time.Now()

	if replaced := tab.Connect(100, "work:0.1", now); replaced != nil {
		t.Fatalf("first connect replaced %v", replaced)
	}
	if tab.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tab.Len())
	}

	conn := tab.Lookup(100)
	if conn == nil || conn.Target != "work:0.1" {
		t.Fatalf("Lookup = %+v", conn)
	}
	if conn.Mode != ModeAuto {
		t.Errorf("new connection mode = %v, want auto", conn.Mode)
	}

	got, err := tab.Disconnect(100)
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if got.Target != "work:0.1" {
		t.Errorf("disconnected target = %q", got.Target)
	}
	if tab.Lookup(100) != nil {
		t.Error("connection still present after disconnect")
	}
}

func TestTableDisconnectNotConnected(t *testing.T) {
	tab := NewTable()
	if _, err := tab.Disconnect(42); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestTableReconnectReplaces(t *testing.T) {
	tab := NewTable()
	now := time.Now()

	tab.Connect(100, "work:0.1", now)
	replaced := tab.Connect(100, "other:1.0", now)

	if replaced == nil || replaced.Target != "work:0.1" {
		t.Fatalf("replaced = %+v, want old connection", replaced)
	}
	if tab.Len() != 1 {
		t.Fatalf("Len = %d after reconnect, want 1", tab.Len())
	}
	if got := tab.Lookup(100).Target; got != "other:1.0" {
		t.Errorf("target = %q, want other:1.0", got)
	}

	// The old pane must have no watchers left.
	if w := tab.Watchers("work:0.1"); len(w) != 0 {
		t.Errorf("old pane still has watchers %v", w)
	}
	if w := tab.Watchers("other:1.0"); len(w) != 1 || w[0] != 100 {
		t.Errorf("new pane watchers = %v", w)
	}
}

func TestTableFanOut(t *testing.T) {
	tab := NewTable()
	now := time.Now()

	tab.Connect(300, "work:0.1", now)
	tab.Connect(100, "work:0.1", now)
	tab.Connect(200, "other:1.0", now)

	watchers := tab.Watchers("work:0.1")
	if len(watchers) != 2 || watchers[0] != 100 || watchers[1] != 300 {
		t.Errorf("Watchers = %v, want [100 300] sorted", watchers)
	}

	targets := tab.Targets()
	if len(targets) != 2 || targets[0] != "other:1.0" || targets[1] != "work:0.1" {
		t.Errorf("Targets = %v", targets)
	}

	tab.Disconnect(100)
	if w := tab.Watchers("work:0.1"); len(w) != 1 || w[0] != 300 {
		t.Errorf("Watchers after one disconnect = %v", w)
	}

	tab.Disconnect(300)
	if len(tab.Targets()) != 1 {
		t.Errorf("Targets after pane fully unwatched = %v", tab.Targets())
	}
}
