package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyDelay_Monotonic(t *testing.T) {
	p := Policy{Base: 1 * time.Second, Max: 5 * time.Minute, MaxRetries: 10}

	prev := time.Duration(0)
	for attempt := 0; attempt < 15; attempt++ {
		d := p.Delay(attempt)
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		if d > p.Max {
			t.Fatalf("delay exceeds ceiling at attempt %d: %v", attempt, d)
		}
		prev = d
	}
}

func TestPolicyDelay_Values(t *testing.T) {
	p := Policy{Base: 1 * time.Second, Max: 5 * time.Minute}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{8, 256 * time.Second},
		{9, 5 * time.Minute}, // 512s capped
		{20, 5 * time.Minute},
	}
	for _, c := range cases {
		if got := p.Delay(c.attempt); got != c.want {
			t.Errorf("Delay(%d): got %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: 5 * time.Millisecond, MaxRetries: 5}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: 2 * time.Millisecond, MaxRetries: 3}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("down")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: 2 * time.Millisecond, MaxRetries: 5}

	calls := 0
	sentinel := errors.New("bad input")
	err := p.Do(context.Background(), func() error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestDo_ContextCancel(t *testing.T) {
	p := Policy{Base: 50 * time.Millisecond, Max: time.Second, MaxRetries: 100}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error { return errors.New("down") })
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
}

func TestReconnectState_ResetOnSuccess(t *testing.T) {
	p := Policy{Base: 1 * time.Second, Max: 5 * time.Minute, MaxRetries: 10}
	r := NewReconnectState(p)
	now := time.Now()

	r.RecordFailure(now)
	r.RecordFailure(now)
	if r.ConsecutiveFailures != 2 {
		t.Fatalf("failures: got %d", r.ConsecutiveFailures)
	}

	r.RecordSuccess(now)
	if r.ConsecutiveFailures != 0 {
		t.Errorf("failures after success: got %d, want 0", r.ConsecutiveFailures)
	}
	if !r.ShouldRetry(now) {
		t.Error("clean state should always allow retry")
	}
}

func TestReconnectState_BackoffSpacing(t *testing.T) {
	p := Policy{Base: 1 * time.Second, Max: 5 * time.Minute, MaxRetries: 10}
	r := NewReconnectState(p)
	now := time.Now()

	r.RecordFailure(now) // schedules retry at now+1s
	if r.ShouldRetry(now) {
		t.Error("retry should not be due immediately after a failure")
	}
	if !r.ShouldRetry(now.Add(time.Second)) {
		t.Error("retry should be due after the base delay")
	}

	r.RecordFailure(now) // second failure: now+2s
	if r.ShouldRetry(now.Add(time.Second)) {
		t.Error("second retry should wait for the doubled delay")
	}
	if !r.ShouldRetry(now.Add(2 * time.Second)) {
		t.Error("second retry should be due after 2s")
	}
}

func TestReconnectState_Degraded(t *testing.T) {
	p := Policy{Base: time.Second, Max: time.Minute, MaxRetries: 3}
	r := NewReconnectState(p)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if r.Degraded() {
			t.Fatalf("degraded too early at %d failures", i)
		}
		r.RecordFailure(now)
	}
	if !r.Degraded() {
		t.Error("expected degraded after MaxRetries consecutive failures")
	}
}

func TestGapDetector_FirstObservationNeverTriggers(t *testing.T) {
	g := NewGapDetector(60 * time.Second)
	if _, tripped := g.Observe(time.Now()); tripped {
		t.Error("first observation must not trigger")
	}
}

func TestGapDetector_SleepGap(t *testing.T) {
	g := NewGapDetector(60 * time.Second)
	now := time.Now()

	g.Observe(now)
	gap, tripped := g.Observe(now.Add(90 * time.Second))
	if !tripped {
		t.Fatal("90s gap with 60s threshold should trigger")
	}
	if gap != 90*time.Second {
		t.Errorf("gap: got %v", gap)
	}

	// The next normal tick must not trigger again.
	if _, tripped := g.Observe(now.Add(91 * time.Second)); tripped {
		t.Error("normal follow-up tick should not trigger")
	}
}

func TestGapDetector_NormalCadence(t *testing.T) {
	g := NewGapDetector(60 * time.Second)
	now := time.Now()
	for i := 0; i < 10; i++ {
		if _, tripped := g.Observe(now.Add(time.Duration(i) * time.Second)); tripped {
			t.Fatalf("1s cadence tripped at tick %d", i)
		}
	}
}

func TestGapDetector_Reset(t *testing.T) {
	g := NewGapDetector(60 * time.Second)
	now := time.Now()
	g.Observe(now)
	g.Reset()
	if _, tripped := g.Observe(now.Add(2 * time.Hour)); tripped {
		t.Error("observation after Reset must not trigger")
	}
}
