package bridge

import (
	"strings"
	"testing"
	"time"
)

func TestBufferQuietPeriodFlush(t *testing.T) {
	var buf OutputBuffer
	t0 := time.Now()

	buf.Append([]string{"a", "b"}, t0)

	if buf.Due(t0.Add(100*time.Millisecond), DefaultQuietPeriod, DefaultMaxHold) {
		t.Error("due before quiet period elapsed")
	}
	if !buf.Due(t0.Add(500*time.Millisecond), DefaultQuietPeriod, DefaultMaxHold) {
		t.Error("not due after quiet period elapsed")
	}

	lines := buf.Take(t0.Add(500 * time.Millisecond))
	if strings.Join(lines, "\n") != "a\nb" {
		t.Errorf("Take = %v", lines)
	}
	if !buf.Empty() {
		t.Error("buffer not empty after Take")
	}
}

func TestBufferMaxHoldUnderContinuousOutput(t *testing.T) {
	var buf OutputBuffer
	t0 := time.Now()

	// Appends every 100ms keep resetting the quiet clock.
	now := t0
	for i := 0; i < 25; i++ {
		buf.Append([]string{"line"}, now)
		now = now.Add(100 * time.Millisecond)
	}

	// 2.5s after the first append: quiet period never elapsed, but the
	// max hold has.
	if !buf.Due(now, DefaultQuietPeriod, DefaultMaxHold) {
		t.Error("continuous output delayed flush past max hold")
	}
}

func TestBufferCoalescesFewerFlushesThanAppends(t *testing.T) {
	var buf OutputBuffer
	t0 := time.Now()
	flushes := 0

	now := t0
	for i := 0; i < 10; i++ {
		buf.Append([]string{"x"}, now)
		now = now.Add(50 * time.Millisecond)
		if buf.Due(now, DefaultQuietPeriod, DefaultMaxHold) {
			buf.Take(now)
			flushes++
		}
	}
	// Drain.
	now = now.Add(time.Second)
	if buf.Due(now, DefaultQuietPeriod, DefaultMaxHold) {
		buf.Take(now)
		flushes++
	}

	if flushes >= 10 {
		t.Errorf("flushes = %d, want fewer than appends", flushes)
	}
	if flushes == 0 {
		t.Error("output never flushed")
	}
}

func TestBufferRequeuePreservesOrder(t *testing.T) {
	var buf OutputBuffer
	t0 := time.Now()

	buf.Append([]string{"a", "b"}, t0)
	taken := buf.Take(t0.Add(time.Second))
	buf.Append([]string{"c"}, t0.Add(time.Second))
	buf.Requeue(taken, t0.Add(time.Second))

	got := buf.Take(t0.Add(2 * time.Second))
	if strings.Join(got, "\n") != "a\nb\nc" {
		t.Errorf("after requeue = %v, want [a b c]", got)
	}
}

func TestFormatMessageWithinLimit(t *testing.T) {
	msg := FormatMessage([]string{"hello", "world"}, DefaultMessageLimit)
	if msg != "hello\nworld" {
		t.Errorf("FormatMessage = %q", msg)
	}
}

func TestFormatMessageTruncatesKeepingTail(t *testing.T) {
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = strings.Repeat("x", 50)
	}
	lines[len(lines)-1] = "THE END"

	msg := FormatMessage(lines, 1000)
	if len(msg) > 1000 {
		t.Errorf("len = %d, exceeds limit", len(msg))
	}
	if !strings.HasPrefix(msg, TruncationMarker) {
		t.Errorf("missing truncation marker: %q", msg[:40])
	}
	if !strings.HasSuffix(msg, "THE END") {
		t.Error("truncation dropped the tail instead of the head")
	}
}

func TestFormatMessageZeroLimitNoTruncation(t *testing.T) {
	long := strings.Repeat("y", 10000)
	if msg := FormatMessage([]string{long}, 0); len(msg) != 10000 {
		t.Errorf("len = %d with limit 0, want untouched", len(msg))
	}
}
