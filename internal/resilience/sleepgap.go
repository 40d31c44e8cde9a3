package resilience

import "time"

// DefaultGapThreshold is the tick-to-tick jump treated as a process
// suspend/resume rather than scheduler lag. Well beyond any plausible
// lag for a ~1s poll interval.
const DefaultGapThreshold = 60 * time.Second

// GapDetector watches the gap between consecutive scheduler ticks. A
// gap far exceeding the poll interval means the process was suspended
// (laptop sleep, cgroup freeze); the transport is likely dead and must
// be proactively reconnected before polling resumes.
type GapDetector struct {
	Threshold time.Duration

	last time.Time
}

// NewGapDetector creates a detector with the given threshold. A zero
// threshold uses DefaultGapThreshold.
func NewGapDetector(threshold time.Duration) *GapDetector {
	if threshold <= 0 {
		threshold = DefaultGapThreshold
	}
	return &GapDetector{Threshold: threshold}
}

// Observe records a tick timestamp and reports the gap since the
// previous tick along with whether it crossed the threshold. The first
// observation never triggers.
func (g *GapDetector) Observe(now time.Time) (time.Duration, bool) {
	if g.last.IsZero() {
		g.last = now
		return 0, false
	}
	gap := now.Sub(g.last)
	g.last = now
	return gap, gap > g.Threshold
}

// Reset forgets the previous tick, so the next Observe never triggers.
// Called after an explicit stop so a later start is not misread as a
// sleep gap.
func (g *GapDetector) Reset() {
	g.last = time.Time{}
}
