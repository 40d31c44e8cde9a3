package resilience

import "time"

// ReconnectState tracks the health of the remote-channel transport as
// an explicit state machine advanced once per scheduler tick, instead
// of ad hoc timers scattered through the loop.
//
// Any successful remote call resets the failure count; consecutive
// failures push the next retry further out under the policy's backoff.
type ReconnectState struct {
	policy Policy

	ConsecutiveFailures int
	NextRetryAt         time.Time
	LastSuccessfulTick  time.Time
}

// NewReconnectState creates a state machine using the given policy for
// retry spacing.
func NewReconnectState(policy Policy) *ReconnectState {
	return &ReconnectState{policy: policy}
}

// RecordSuccess resets the failure streak.
func (r *ReconnectState) RecordSuccess(now time.Time) {
	r.ConsecutiveFailures = 0
	r.NextRetryAt = time.Time{}
	r.LastSuccessfulTick = now
}

// RecordFailure advances the failure streak and schedules the next
// retry with exponential spacing.
func (r *ReconnectState) RecordFailure(now time.Time) {
	delay := r.policy.Delay(r.ConsecutiveFailures)
	r.ConsecutiveFailures++
	r.NextRetryAt = now.Add(delay)
}

// ShouldRetry reports whether enough time has passed to attempt the
// remote channel again. Always true while the streak is clean.
func (r *ReconnectState) ShouldRetry(now time.Time) bool {
	if r.ConsecutiveFailures == 0 {
		return true
	}
	return !now.Before(r.NextRetryAt)
}

// Degraded reports whether the transport has failed enough times in a
// row that the caller should surface a delivery problem to the user.
func (r *ReconnectState) Degraded() bool {
	return r.ConsecutiveFailures >= r.policy.MaxRetries
}
