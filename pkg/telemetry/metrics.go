package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName scopes every instrument created here
const MeterName = "booth-rush"

// MetricOpts describes an instrument
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
}

// Counter is a monotonically increasing instrument
type Counter struct {
	inner metric.Int64Counter
}

// NewCounter registers a counter on the global meter provider.
// With no provider installed the counter is a no-op.
func NewCounter(opts MetricOpts) (*Counter, error) {
	c, err := otel.Meter(MeterName).Int64Counter(opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{inner: c}, nil
}

// Add increments the counter by n
func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	if c == nil || c.inner == nil {
		return
	}
	c.inner.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Inc increments the counter by one
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// UpDownCounter tracks a value that can go both ways
type UpDownCounter struct {
	inner metric.Int64UpDownCounter
}

// NewUpDownCounter registers an up-down counter on the global meter provider
func NewUpDownCounter(opts MetricOpts) (*UpDownCounter, error) {
	c, err := otel.Meter(MeterName).Int64UpDownCounter(opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &UpDownCounter{inner: c}, nil
}

// Add moves the value by n
func (c *UpDownCounter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	if c == nil || c.inner == nil {
		return
	}
	c.inner.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Histogram records float64 samples such as latencies
type Histogram struct {
	inner metric.Float64Histogram
}

// NewHistogram registers a histogram on the global meter provider
func NewHistogram(opts MetricOpts) (*Histogram, error) {
	h, err := otel.Meter(MeterName).Float64Histogram(opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Histogram{inner: h}, nil
}

// Record adds a sample
func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	if h == nil || h.inner == nil {
		return
	}
	h.inner.Record(ctx, v, metric.WithAttributes(attrs...))
}
