package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/pkg/provider/landmarks"
)

// Detector wraps a [landmarks.Detector] with a [CircuitBreaker]. While the
// breaker is open, Detect fails fast with [ErrCircuitOpen] instead of waiting
// out the sidecar's request timeout on every video frame.
type Detector struct {
	inner   landmarks.Detector
	breaker *CircuitBreaker
	metrics *observe.Metrics
}

// DetectorOption configures a [Detector].
type DetectorOption func(*Detector)

// WithMetrics overrides the metrics instance recording detection latency.
// The default is the package-wide observe default.
func WithMetrics(m *observe.Metrics) DetectorOption {
	return func(d *Detector) {
		if m != nil {
			d.metrics = m
		}
	}
}

// NewDetector wraps inner with a breaker built from cfg. An empty cfg.Name
// defaults to "landmarks".
func NewDetector(inner landmarks.Detector, cfg CircuitBreakerConfig, opts ...DetectorOption) *Detector {
	if cfg.Name == "" {
		cfg.Name = "landmarks"
	}
	d := &Detector{
		inner:   inner,
		breaker: NewCircuitBreaker(cfg),
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect implements [landmarks.Detector]. Latency is recorded only for
// requests that reach the sidecar; fast-failed calls would skew the
// histogram toward zero.
func (d *Detector) Detect(ctx context.Context, image []byte) (*landmarks.Frame, error) {
	var frame *landmarks.Frame
	err := d.breaker.Execute(func() error {
		start := time.Now()
		f, err := d.inner.Detect(ctx, image)
		d.metrics.DetectionDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			return err
		}
		frame = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resilience: landmark detection: %w", err)
	}
	return frame, nil
}

// BreakerState exposes the breaker state for health reporting.
func (d *Detector) BreakerState() State {
	return d.breaker.State()
}

var _ landmarks.Detector = (*Detector)(nil)
