// Package observe provides application-wide observability primitives for
// Cadenza: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Cadenza metrics.
const meterName = "github.com/cadenza-ai/cadenza"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// AnalysisTickDuration tracks per-frame biometric analysis latency.
	AnalysisTickDuration metric.Float64Histogram

	// DetectionDuration tracks facial landmark detection request latency.
	DetectionDuration metric.Float64Histogram

	// PlaybackLeadTime tracks how far ahead of the playhead inbound audio
	// buffers are scheduled.
	PlaybackLeadTime metric.Float64Histogram

	// --- Counters ---

	// FramesTransmitted counts capture frames sent to the agent.
	FramesTransmitted metric.Int64Counter

	// FramesDropped counts capture frames dropped on backpressure. Use with
	// attribute: attribute.String("consumer", ...)
	FramesDropped metric.Int64Counter

	// PlaybackScheduled counts inbound audio buffers scheduled for playback.
	PlaybackScheduled metric.Int64Counter

	// ToolCalls counts remote tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// AssessmentsSaved counts per-question assessments persisted to the
	// session store.
	AssessmentsSaved metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for audio-pipeline latencies.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisTickDuration, err = m.Float64Histogram("cadenza.analysis.tick.duration",
		metric.WithDescription("Latency of per-frame biometric analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DetectionDuration, err = m.Float64Histogram("cadenza.landmarks.detection.duration",
		metric.WithDescription("Latency of facial landmark detection requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackLeadTime, err = m.Float64Histogram("cadenza.playback.lead_time",
		metric.WithDescription("Scheduling lead time of inbound audio buffers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesTransmitted, err = m.Int64Counter("cadenza.audio.frames.transmitted",
		metric.WithDescription("Total capture frames sent to the agent."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("cadenza.audio.frames.dropped",
		metric.WithDescription("Total capture frames dropped on backpressure by consumer."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackScheduled, err = m.Int64Counter("cadenza.playback.buffers.scheduled",
		metric.WithDescription("Total inbound audio buffers scheduled for playback."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("cadenza.tool.calls",
		metric.WithDescription("Total remote tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.AssessmentsSaved, err = m.Int64Counter("cadenza.assessments.saved",
		metric.WithDescription("Total per-question assessments persisted."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("cadenza.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("cadenza.active_sessions",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("cadenza.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordFrameDropped is a convenience method that records a dropped capture
// frame for the named consumer.
func (m *Metrics) RecordFrameDropped(ctx context.Context, consumer string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("consumer", consumer)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
