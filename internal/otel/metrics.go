package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "telebridge"

// Metrics holds all OTEL metric instruments for the bridge.
// All counters are cumulative (monotonic) and safe for concurrent use.
// Every Record* method is nil-safe so callers can pass a nil *Metrics
// when telemetry is disabled.
type Metrics struct {
	// Poll loop counters
	Ticks        metric.Int64Counter
	Captures     metric.Int64Counter // partitioned by diff kind via attributes
	Flushes      metric.Int64Counter
	FlushedBytes metric.Int64Counter

	// Input injection counters (partitioned by kind: text, key, resize)
	Inputs metric.Int64Counter

	// Transport counters
	Sends        metric.Int64Counter // partitioned by outcome: ok, failed
	SendRetries  metric.Int64Counter
	SleepGaps    metric.Int64Counter
	PaneClosures metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Ticks, err = meter.Int64Counter("poll.ticks",
		metric.WithDescription("Completed poll scheduler ticks"))
	if err != nil {
		return nil, err
	}

	m.Captures, err = meter.Int64Counter("capture.diffs",
		metric.WithDescription("Pane captures partitioned by diff kind (unchanged, appended, replaced, error)"))
	if err != nil {
		return nil, err
	}

	m.Flushes, err = meter.Int64Counter("buffer.flushes",
		metric.WithDescription("Output buffer flushes delivered to the remote channel"))
	if err != nil {
		return nil, err
	}

	m.FlushedBytes, err = meter.Int64Counter("buffer.flushed_bytes",
		metric.WithDescription("Bytes of terminal output delivered"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	m.Inputs, err = meter.Int64Counter("input.injections",
		metric.WithDescription("Input injections partitioned by kind (text, key, resize)"))
	if err != nil {
		return nil, err
	}

	m.Sends, err = meter.Int64Counter("transport.sends",
		metric.WithDescription("Remote channel sends partitioned by outcome (ok, failed)"))
	if err != nil {
		return nil, err
	}

	m.SendRetries, err = meter.Int64Counter("transport.retries",
		metric.WithDescription("Backoff retries of remote channel sends"))
	if err != nil {
		return nil, err
	}

	m.SleepGaps, err = meter.Int64Counter("poll.sleep_gaps",
		metric.WithDescription("Detected process suspend/resume gaps between ticks"))
	if err != nil {
		return nil, err
	}

	m.PaneClosures, err = meter.Int64Counter("pane.closures",
		metric.WithDescription("Panes detected closed while being watched"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTick records a completed scheduler tick.
func (m *Metrics) RecordTick(ctx context.Context) {
	if m == nil {
		return
	}
	m.Ticks.Add(ctx, 1)
}

// RecordCapture records a pane capture with its diff kind
// ("unchanged", "appended", "replaced", or "error").
func (m *Metrics) RecordCapture(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Captures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("diff.kind", kind),
	))
}

// RecordFlush records a delivered buffer flush and its size.
func (m *Metrics) RecordFlush(ctx context.Context, bytes int) {
	if m == nil {
		return
	}
	m.Flushes.Add(ctx, 1)
	m.FlushedBytes.Add(ctx, int64(bytes))
}

// RecordInput records an input injection ("text", "key", "resize").
func (m *Metrics) RecordInput(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Inputs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("input.kind", kind),
	))
}

// RecordSend records a remote channel send outcome.
func (m *Metrics) RecordSend(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.Sends.Add(ctx, 1, metric.WithAttributes(
		attribute.String("send.outcome", outcome),
	))
}

// RecordSendRetry records one backoff retry of a send.
func (m *Metrics) RecordSendRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.SendRetries.Add(ctx, 1)
}

// RecordSleepGap records a detected suspend/resume gap.
func (m *Metrics) RecordSleepGap(ctx context.Context) {
	if m == nil {
		return
	}
	m.SleepGaps.Add(ctx, 1)
}

// RecordPaneClosure records a watched pane found closed.
func (m *Metrics) RecordPaneClosure(ctx context.Context) {
	if m == nil {
		return
	}
	m.PaneClosures.Add(ctx, 1)
}
