// Package bridge runs the control loop that ties terminal panes to
// remote conversations: it polls watched panes, coalesces new output
// into messages, and injects input coming back from the channel.
//
// All bridge state (connection table, output buffers, capture
// snapshots) is owned by a single loop goroutine. Public methods post
// closures to that loop and wait for the result, so no state needs
// locking and operations never interleave with a tick.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/telebridge/telebridge/internal/capture"
	"github.com/telebridge/telebridge/internal/model"
	"github.com/telebridge/telebridge/internal/mux"
	tbotel "github.com/telebridge/telebridge/internal/otel"
	"github.com/telebridge/telebridge/internal/resilience"
)

var tracer = otel.Tracer("telebridge-bridge")

// ErrNotRunning is returned by bridge operations before Start or after
// Stop.
var ErrNotRunning = errors.New("bridge not running")

// Channel is the outbound side of the remote chat transport. The
// inbound side (commands, text) calls into the Bridge directly.
type Channel interface {
	// SendMessage delivers plain text to a conversation.
	SendMessage(ctx context.Context, conversationID int64, text string) error

	// SendMonospace delivers text preformatted as a terminal block.
	SendMonospace(ctx context.Context, conversationID int64, text string) error

	// Reconnect tears down and re-establishes the transport. Called
	// after a detected suspend/resume gap.
	Reconnect(ctx context.Context) error
}

// Options tunes the bridge loop. Zero values take defaults.
type Options struct {
	PollInterval  time.Duration // pane poll cadence (default 1s)
	QuietPeriod   time.Duration // silence before a buffer flushes
	MaxHold       time.Duration // ceiling on buffering under continuous output
	SendTimeout   time.Duration // per-message delivery deadline
	TerminalLines int           // visible window sent on full refreshes
	MessageLimit  int           // max characters per delivered message
	Parallel      int           // concurrent pane captures per tick

	DefaultWorkDir string // working directory for created sessions
	GapThreshold   time.Duration
	Policy         resilience.Policy
	Metrics        *tbotel.Metrics
}

const (
	DefaultPollInterval  = 1 * time.Second
	DefaultSendTimeout   = 10 * time.Second
	DefaultTerminalLines = 30
	DefaultParallel      = 4
)

func (o *Options) withDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.QuietPeriod <= 0 {
		o.QuietPeriod = DefaultQuietPeriod
	}
	if o.MaxHold <= 0 {
		o.MaxHold = DefaultMaxHold
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = DefaultSendTimeout
	}
	if o.TerminalLines <= 0 {
		o.TerminalLines = DefaultTerminalLines
	}
	if o.MessageLimit <= 0 {
		o.MessageLimit = DefaultMessageLimit
	}
	if o.Parallel < 1 {
		o.Parallel = DefaultParallel
	}
	if o.Policy == (resilience.Policy{}) {
		o.Policy = resilience.DefaultPolicy()
	}
}

// Bridge owns the pane↔conversation state and the poll loop.
type Bridge struct {
	mux     mux.Multiplexer
	engine  *capture.Engine
	channel Channel
	opts    Options

	// Loop-owned state. Touched only from run().
	table      *Table
	buffers    map[int64]*OutputBuffer
	reconnect  *resilience.ReconnectState
	gap        *resilience.GapDetector
	health     *Health
	sessionSeq int

	requests chan func()

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped bridge.
func New(m mux.Multiplexer, ch Channel, opts Options) *Bridge {
	opts.withDefaults()
	return &Bridge{
		mux:       m,
		engine:    capture.NewEngine(m),
		channel:   ch,
		opts:      opts,
		table:     NewTable(),
		buffers:   make(map[int64]*OutputBuffer),
		reconnect: resilience.NewReconnectState(opts.Policy),
		gap:       resilience.NewGapDetector(opts.GapThreshold),
		health:    NewHealth(time.Now()),
		requests:  make(chan func()),
	}
}

// Start launches the poll loop. Idempotent while running.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true
	b.health.SetState(StateConnecting)
	go b.run(ctx)
}

// Stop halts the loop after the in-flight tick finishes. Buffered
// output that has not flushed yet is dropped.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	cancel()
	<-done
}

// do runs fn on the loop goroutine and waits for it to finish. All
// public operations funnel through here so they serialize with ticks.
func (b *Bridge) do(fn func()) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ErrNotRunning
	}
	done := b.done
	b.mu.Unlock()

	reply := make(chan struct{})
	select {
	case b.requests <- func() { fn(); close(reply) }:
		<-reply
		return nil
	case <-done:
		return ErrNotRunning
	}
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	b.gap.Reset()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-b.requests:
			fn()
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

// tick is one poll cycle: detect suspend gaps, capture watched panes
// concurrently, apply diffs serially, fan new output into buffers, and
// flush due buffers to the channel.
func (b *Bridge) tick(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "tick")
	defer span.End()

	now := time.Now()

	if gap, suspended := b.gap.Observe(now); suspended {
		fmt.Fprintf(os.Stderr, "warning: %.0fs gap between polls, reconnecting transport\n", gap.Seconds())
		b.opts.Metrics.RecordSleepGap(ctx)
		b.health.SetState(StateConnecting)
		rctx, rcancel := context.WithTimeout(ctx, b.opts.SendTimeout)
		if err := b.channel.Reconnect(rctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: transport reconnect: %v\n", err)
			b.reconnect.RecordFailure(now)
		} else {
			b.reconnect.RecordSuccess(now)
			b.health.RecordPoll(now)
		}
		rcancel()
	}

	targets := b.table.Targets()
	span.SetAttributes(attribute.Int("panes.watched", len(targets)))

	type captureResult struct {
		snap capture.Snapshot
		err  error
	}
	results := make([]captureResult, len(targets))

	parallel := b.opts.Parallel
	if parallel > len(targets) && len(targets) > 0 {
		parallel = len(targets)
	}
	var wg sync.WaitGroup
	sem := make(chan struct{}, parallel)
	for i, target := range targets {
		wg.Add(1)
		go func(idx int, t string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			snap, err := b.engine.Capture(ctx, t)
			results[idx] = captureResult{snap: snap, err: err}
		}(i, target)
	}
	wg.Wait()

	for i, target := range targets {
		res := results[i]
		if res.err != nil {
			if errors.Is(res.err, mux.ErrPaneNotFound) {
				b.handlePaneClosed(ctx, target)
			} else {
				fmt.Fprintf(os.Stderr, "warning: capture %s: %v\n", target, res.err)
				b.opts.Metrics.RecordCapture(ctx, "error")
			}
			continue
		}

		diff := b.engine.Apply(target, res.snap)
		b.opts.Metrics.RecordCapture(ctx, diff.Kind.String())
		if diff.Kind == model.Unchanged {
			continue
		}

		lines := capture.CleanLines(diff.Lines)
		if diff.Kind == model.Replaced {
			lines = capture.Window(lines, b.opts.TerminalLines)
		}
		if len(lines) == 0 {
			continue
		}
		for _, convID := range b.table.Watchers(target) {
			if buf, ok := b.buffers[convID]; ok {
				buf.Append(lines, now)
			}
		}
	}

	b.flushDue(ctx, now)

	// A transport that has gone 5 minutes without a successful poll is
	// presumed dead; reconnect under the same backoff gate as sends.
	// A successful reconnect counts as the poll, otherwise the next
	// tick would tear the transport down again.
	end := time.Now()
	if !b.health.Check(end) && b.reconnect.ShouldRetry(end) {
		rctx, rcancel := context.WithTimeout(ctx, b.opts.SendTimeout)
		if err := b.channel.Reconnect(rctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: transport reconnect: %v\n", err)
			b.reconnect.RecordFailure(end)
		} else {
			b.reconnect.RecordSuccess(end)
			b.health.RecordPoll(end)
		}
		rcancel()
	}
	b.opts.Metrics.RecordTick(ctx)
}

// handlePaneClosed tears down every connection watching a vanished
// pane and tells each conversation once.
func (b *Bridge) handlePaneClosed(ctx context.Context, target string) {
	b.opts.Metrics.RecordPaneClosure(ctx)
	for _, convID := range b.table.Watchers(target) {
		if _, err := b.table.Disconnect(convID); err == nil {
			delete(b.buffers, convID)
			b.notify(ctx, convID, fmt.Sprintf("Pane %s closed. Disconnected.", target))
		}
	}
	b.engine.Forget(target)
}

// flushDue delivers every buffer that has met the quiet-period or
// max-hold condition. Delivery attempts are gated by the reconnect
// state so a dead transport is not hammered every tick.
func (b *Bridge) flushDue(ctx context.Context, now time.Time) {
	for convID, buf := range b.buffers {
		if !buf.Due(now, b.opts.QuietPeriod, b.opts.MaxHold) {
			continue
		}
		if !b.reconnect.ShouldRetry(now) {
			continue
		}

		lines := buf.Take(now)
		msg := FormatMessage(lines, b.opts.MessageLimit)

		sctx, cancel := context.WithTimeout(ctx, b.opts.SendTimeout)
		err := b.channel.SendMonospace(sctx, convID, msg)
		cancel()

		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: send to %d: %v\n", convID, err)
			b.opts.Metrics.RecordSend(ctx, false)
			b.reconnect.RecordFailure(now)
			buf.Requeue(lines, now)
			if b.reconnect.Degraded() {
				b.health.SetState(StateDegraded)
			}
			continue
		}

		b.opts.Metrics.RecordSend(ctx, true)
		b.opts.Metrics.RecordFlush(ctx, len(msg))
		b.reconnect.RecordSuccess(now)
		b.health.RecordMessage(now)
	}
}

// notify sends a plain informational message, retrying transient
// failures under the bridge's backoff policy. Runs off the control
// loop so backoff sleeps never stall ticks.
func (b *Bridge) notify(ctx context.Context, convID int64, text string) {
	go func() {
		err := b.opts.Policy.DoNotify(ctx, func() error {
			sctx, cancel := context.WithTimeout(ctx, b.opts.SendTimeout)
			defer cancel()
			return b.channel.SendMessage(sctx, convID, text)
		}, func(err error, next time.Duration) {
			b.opts.Metrics.RecordSendRetry(ctx)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: notify %d: %v\n", convID, err)
		}
	}()
}

// RecordChannelPoll reports a successful inbound poll of the remote
// channel. The channel layer calls this from its update loop.
func (b *Bridge) RecordChannelPoll() {
	_ = b.do(func() {
		b.health.RecordPoll(time.Now())
	})
}

// Connect binds a conversation to a pane and returns the pane's
// current visible content as the initial screen. A previous binding
// for the conversation is replaced.
func (b *Bridge) Connect(ctx context.Context, conversationID int64, target string) (initial []string, replaced string, err error) {
	doErr := b.do(func() {
		if !b.mux.PaneExists(ctx, target) {
			err = fmt.Errorf("%w: %s", mux.ErrPaneNotFound, target)
			return
		}
		if old := b.table.Connect(conversationID, target, time.Now()); old != nil {
			replaced = old.Target
			b.forgetIfUnwatched(old.Target)
		}
		b.buffers[conversationID] = &OutputBuffer{}

		snap, cerr := b.engine.Capture(ctx, target)
		if cerr != nil {
			// Roll back so a half-connected conversation is not polled.
			b.table.Disconnect(conversationID)
			delete(b.buffers, conversationID)
			b.forgetIfUnwatched(target)
			err = cerr
			return
		}
		b.engine.Apply(target, snap)
		initial = capture.Window(capture.CleanLines(snap.Lines), b.opts.TerminalLines)
	})
	if doErr != nil {
		return nil, "", doErr
	}
	return initial, replaced, err
}

// Disconnect unbinds a conversation from its pane.
func (b *Bridge) Disconnect(conversationID int64) (target string, err error) {
	doErr := b.do(func() {
		conn, derr := b.table.Disconnect(conversationID)
		if derr != nil {
			err = derr
			return
		}
		target = conn.Target
		delete(b.buffers, conversationID)
		b.forgetIfUnwatched(conn.Target)
	})
	if doErr != nil {
		return "", doErr
	}
	return target, err
}

// forgetIfUnwatched drops the retained snapshot once no conversation
// watches the pane, so a later reconnect gets the full screen again.
func (b *Bridge) forgetIfUnwatched(target string) {
	if len(b.table.Watchers(target)) == 0 {
		b.engine.Forget(target)
	}
}

// Lookup returns a copy of the conversation's connection, if any.
func (b *Bridge) Lookup(conversationID int64) (Connection, bool) {
	var conn Connection
	var ok bool
	if err := b.do(func() {
		if c := b.table.Lookup(conversationID); c != nil {
			conn, ok = *c, true
		}
	}); err != nil {
		return Connection{}, false
	}
	return conn, ok
}

// ListPanes lists all panes visible to the multiplexer.
func (b *Bridge) ListPanes(ctx context.Context) ([]model.Pane, error) {
	var panes []model.Pane
	var err error
	if doErr := b.do(func() {
		panes, err = b.mux.ListPanes(ctx)
	}); doErr != nil {
		return nil, doErr
	}
	return panes, err
}

// SendInput types text into the conversation's pane. In auto mode the
// text is submitted with Enter; in wait mode it is left on the input
// line.
func (b *Bridge) SendInput(ctx context.Context, conversationID int64, text string) error {
	var err error
	if doErr := b.do(func() {
		conn := b.table.Lookup(conversationID)
		if conn == nil {
			err = ErrNotConnected
			return
		}
		err = b.mux.SendText(ctx, conn.Target, text, conn.Mode == ModeAuto)
		if err == nil {
			b.opts.Metrics.RecordInput(ctx, "text")
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// SendKey sends a named control key to the conversation's pane.
func (b *Bridge) SendKey(ctx context.Context, conversationID int64, key mux.Key) error {
	var err error
	if doErr := b.do(func() {
		conn := b.table.Lookup(conversationID)
		if conn == nil {
			err = ErrNotConnected
			return
		}
		err = b.mux.SendKey(ctx, conn.Target, key)
		if err == nil {
			b.opts.Metrics.RecordInput(ctx, "key")
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// Resize resizes the conversation's pane to the given column width.
func (b *Bridge) Resize(ctx context.Context, conversationID int64, width int) error {
	var err error
	if doErr := b.do(func() {
		conn := b.table.Lookup(conversationID)
		if conn == nil {
			err = ErrNotConnected
			return
		}
		err = b.mux.ResizePane(ctx, conn.Target, width)
		if err == nil {
			conn.Width = mux.ClampWidth(width)
			b.opts.Metrics.RecordInput(ctx, "resize")
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// SetWidth constrains the terminal width seen by programs in the pane
// by injecting an stty command, without resizing the pane itself.
func (b *Bridge) SetWidth(ctx context.Context, conversationID int64, width int) error {
	var err error
	if doErr := b.do(func() {
		conn := b.table.Lookup(conversationID)
		if conn == nil {
			err = ErrNotConnected
			return
		}
		w := mux.ClampWidth(width)
		err = b.mux.SendText(ctx, conn.Target, fmt.Sprintf("stty columns %d", w), true)
		if err == nil {
			conn.Width = w
			b.opts.Metrics.RecordInput(ctx, "resize")
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// ResetWidth restores the pane's natural terminal width.
func (b *Bridge) ResetWidth(ctx context.Context, conversationID int64) error {
	var err error
	if doErr := b.do(func() {
		conn := b.table.Lookup(conversationID)
		if conn == nil {
			err = ErrNotConnected
			return
		}
		err = b.mux.SendText(ctx, conn.Target, "eval $(resize)", true)
		if err == nil {
			conn.Width = 0
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// CreateSession creates a fresh detached session with an auto-assigned
// name (tb1, tb2, ...) and connects the conversation to its first pane.
func (b *Bridge) CreateSession(ctx context.Context, conversationID int64) (session, target string, err error) {
	doErr := b.do(func() {
		for i := 0; i < 100; i++ {
			b.sessionSeq++
			name := fmt.Sprintf("tb%d", b.sessionSeq)
			s, t, nerr := b.mux.NewSession(ctx, name, b.opts.DefaultWorkDir)
			if nerr == nil {
				session, target = s, t
				break
			}
			if !strings.Contains(nerr.Error(), "duplicate session") {
				err = nerr
				return
			}
		}
		if session == "" && err == nil {
			err = errors.New("no free session name")
			return
		}
		if old := b.table.Connect(conversationID, target, time.Now()); old != nil {
			b.forgetIfUnwatched(old.Target)
		}
		b.buffers[conversationID] = &OutputBuffer{}
	})
	if doErr != nil {
		return "", "", doErr
	}
	return session, target, err
}

// KillSession destroys a session. Every conversation watching a pane
// in the session is disconnected on the next tick when its pane
// capture fails.
func (b *Bridge) KillSession(ctx context.Context, session string) error {
	var err error
	if doErr := b.do(func() {
		err = b.mux.KillSession(ctx, session)
	}); doErr != nil {
		return doErr
	}
	return err
}

// ToggleInputMode flips the conversation between auto and wait input
// modes and returns the new mode.
func (b *Bridge) ToggleInputMode(conversationID int64) (InputMode, error) {
	var mode InputMode
	var err error
	if doErr := b.do(func() {
		conn := b.table.Lookup(conversationID)
		if conn == nil {
			err = ErrNotConnected
			return
		}
		if conn.Mode == ModeAuto {
			conn.Mode = ModeWait
		} else {
			conn.Mode = ModeAuto
		}
		mode = conn.Mode
	}); doErr != nil {
		return ModeAuto, doErr
	}
	return mode, err
}

// ForceRefresh re-captures the conversation's pane and returns the
// full visible window, resynchronizing the retained snapshot.
func (b *Bridge) ForceRefresh(ctx context.Context, conversationID int64) ([]string, error) {
	var lines []string
	var err error
	if doErr := b.do(func() {
		conn := b.table.Lookup(conversationID)
		if conn == nil {
			err = ErrNotConnected
			return
		}
		snap, cerr := b.engine.Capture(ctx, conn.Target)
		if cerr != nil {
			err = cerr
			return
		}
		b.engine.Apply(conn.Target, snap)
		lines = capture.Window(capture.CleanLines(snap.Lines), b.opts.TerminalLines)
	}); doErr != nil {
		return nil, doErr
	}
	return lines, err
}

// Health returns a snapshot of the bridge's transport health.
func (b *Bridge) Health() HealthStatus {
	var status HealthStatus
	if err := b.do(func() {
		status = b.health.Status(time.Now())
	}); err != nil {
		return HealthStatus{State: StateDisconnected}
	}
	return status
}

// Connections returns a copy of all live connections, sorted by
// conversation ID.
func (b *Bridge) Connections() []Connection {
	var out []Connection
	_ = b.do(func() {
		for _, target := range b.table.Targets() {
			for _, convID := range b.table.Watchers(target) {
				if c := b.table.Lookup(convID); c != nil {
					out = append(out, *c)
				}
			}
		}
	})
	return out
}
