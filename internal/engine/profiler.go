package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Profiler records the duration of named pipeline events. Implementations
// are passed explicitly to the components that report into them.
type Profiler interface {
	Record(event string, d time.Duration)
}

// NopProfiler discards every event.
type NopProfiler struct{}

func (NopProfiler) Record(string, time.Duration) {}

// MeterProfiler records event durations into an OpenTelemetry histogram,
// tagged with an "event" attribute.
type MeterProfiler struct {
	hist  metric.Float64Histogram
	model attribute.KeyValue
}

// NewMeterProfiler creates the "asr.event.duration" histogram on meter.
func NewMeterProfiler(meter metric.Meter, model string) (*MeterProfiler, error) {
	hist, err := meter.Float64Histogram(
		"asr.event.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of speech recognition pipeline events"),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: create profiler histogram: %w", err)
	}
	return &MeterProfiler{hist: hist, model: attribute.String("model", model)}, nil
}

// Record adds one sample for event.
func (p *MeterProfiler) Record(event string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	p.hist.Record(context.Background(), ms, metric.WithAttributes(p.model, attribute.String("event", event)))
}
