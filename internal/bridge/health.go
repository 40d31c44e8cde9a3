package bridge

import (
	"fmt"
	"time"
)

// ConnState is the bridge's view of the remote-channel transport.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDegraded
)

// String returns the lowercase state name.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

// stalePollWindow: without a successful poll for this long, the
// transport is considered degraded and a reconnect is warranted.
const stalePollWindow = 5 * time.Minute

// Health tracks transport liveness for the bridge process. Mutated
// only on the control loop.
type Health struct {
	state         ConnState
	lastPollAt    time.Time
	lastMessageAt time.Time
	startedAt     time.Time
}

// HealthStatus is a point-in-time copy of the health state.
type HealthStatus struct {
	State         ConnState
	LastPollAt    time.Time
	LastMessageAt time.Time
	Uptime        time.Duration
}

// Healthy reports whether the transport is usable.
func (s HealthStatus) Healthy() bool {
	return s.State == StateConnected || s.State == StateConnecting
}

// String renders a one-line status summary for logs and the /status
// command.
func (s HealthStatus) String() string {
	lastPoll := "never"
	if !s.LastPollAt.IsZero() {
		lastPoll = fmt.Sprintf("%.1fs ago", time.Since(s.LastPollAt).Seconds())
	}
	return fmt.Sprintf("state=%s last_poll=%s uptime=%.1fmin",
		s.State, lastPoll, s.Uptime.Minutes())
}

// NewHealth creates a health tracker starting in the disconnected state.
func NewHealth(now time.Time) *Health {
	return &Health{state: StateDisconnected, startedAt: now}
}

// SetState transitions to a new state.
func (h *Health) SetState(state ConnState) {
	h.state = state
}

// RecordPoll records a successful update poll. A degraded transport
// recovers on the first successful poll.
func (h *Health) RecordPoll(now time.Time) {
	h.lastPollAt = now
	if h.state == StateDegraded || h.state == StateConnecting {
		h.state = StateConnected
	}
}

// RecordMessage records a successfully delivered outbound message.
func (h *Health) RecordMessage(now time.Time) {
	h.lastMessageAt = now
}

// Check marks the transport degraded when no poll has succeeded within
// the stale window, and reports whether it is still healthy.
func (h *Health) Check(now time.Time) bool {
	if !h.lastPollAt.IsZero() && now.Sub(h.lastPollAt) > stalePollWindow {
		h.state = StateDegraded
	}
	return h.Status(now).Healthy()
}

// Status returns a copy of the current health state.
func (h *Health) Status(now time.Time) HealthStatus {
	return HealthStatus{
		State:         h.state,
		LastPollAt:    h.lastPollAt,
		LastMessageAt: h.lastMessageAt,
		Uptime:        now.Sub(h.startedAt),
	}
}
