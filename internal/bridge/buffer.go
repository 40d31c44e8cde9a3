package bridge

import (
	"strings"
	"time"
)

// Default flush policy. Quiet period: how long output must go silent
// before the buffer flushes. Max hold: the ceiling on how long lines
// may sit buffered under continuous output.
const (
	DefaultQuietPeriod = 400 * time.Millisecond
	DefaultMaxHold     = 2 * time.Second
	// DefaultMessageLimit honors the transport's ~4096-char message
	// cap with headroom for the code fence.
	DefaultMessageLimit = 4000
)

// TruncationMarker prefixes a flushed block whose content was cut to
// fit the message limit.
const TruncationMarker = "[truncated]"

// OutputBuffer coalesces bursts of new pane output for one connection
// so a rapid sequence of lines becomes a handful of messages instead
// of one message per line.
type OutputBuffer struct {
	pending        []string
	firstPendingAt time.Time
	lastAppendAt   time.Time
	lastFlushAt    time.Time
}

// Append adds new lines to the pending set. The first append after a
// flush starts the hold clock.
func (b *OutputBuffer) Append(lines []string, now time.Time) {
	if len(lines) == 0 {
		return
	}
	if len(b.pending) == 0 {
		b.firstPendingAt = now
	}
	b.pending = append(b.pending, lines...)
	b.lastAppendAt = now
}

// Empty reports whether there is nothing pending.
func (b *OutputBuffer) Empty() bool {
	return len(b.pending) == 0
}

// Due reports whether the buffer should flush now: either output has
// gone quiet for quietPeriod, or the oldest pending line has been held
// for maxHold (so continuous output cannot delay delivery forever).
func (b *OutputBuffer) Due(now time.Time, quietPeriod, maxHold time.Duration) bool {
	if len(b.pending) == 0 {
		return false
	}
	if now.Sub(b.lastAppendAt) >= quietPeriod {
		return true
	}
	return now.Sub(b.firstPendingAt) >= maxHold
}

// Requeue puts taken lines back at the front of the pending set after
// a failed delivery, so output is retried rather than dropped.
func (b *OutputBuffer) Requeue(lines []string, now time.Time) {
	if len(lines) == 0 {
		return
	}
	b.pending = append(lines, b.pending...)
	if b.firstPendingAt.IsZero() {
		b.firstPendingAt = now
	}
	if b.lastAppendAt.IsZero() {
		b.lastAppendAt = now
	}
}

// Take removes and returns the pending lines, marking the flush time.
func (b *OutputBuffer) Take(now time.Time) []string {
	lines := b.pending
	b.pending = nil
	b.firstPendingAt = time.Time{}
	b.lastAppendAt = time.Time{}
	b.lastFlushAt = now
	return lines
}

// FormatMessage renders flushed lines as one monospace block, capped
// at limit characters. When the content exceeds the cap the head is
// dropped — the freshest terminal output is the part worth keeping —
// and the block is prefixed with the truncation marker.
func FormatMessage(lines []string, limit int) string {
	content := strings.Join(lines, "\n")
	if limit > 0 && len(content) > limit {
		keep := limit - len(TruncationMarker) - 1
		if keep < 0 {
			keep = 0
		}
		cut := content[len(content)-keep:]
		// Resync to a line boundary so the block does not open mid-line.
		if idx := strings.IndexByte(cut, '\n'); idx >= 0 && idx < len(cut)-1 {
			cut = cut[idx+1:]
		}
		content = TruncationMarker + "\n" + cut
	}
	return content
}
