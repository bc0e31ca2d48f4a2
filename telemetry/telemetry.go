// Package telemetry is a small progressive-disclosure metrics API over
// go.opentelemetry.io/otel: Counter/Histogram/Gauge/Duration cover the
// common cases, with a Registry type underneath for packages that declare
// their own metric sets at init() time.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/gomind-labs/orchestrator"

// Registry wraps an otel Meter and caches instruments by name so repeated
// Counter/Histogram calls for the same metric name don't re-register.
type Registry struct {
	meter      metric.Meter
	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Histogram // gauges recorded as histograms; see Gauge doc
}

// NewRegistry builds a Registry against the global otel MeterProvider.
// Call otel.SetMeterProvider before constructing for a non-default SDK.
func NewRegistry() *Registry {
	return &Registry{
		meter:      otel.Meter(meterName),
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Histogram),
	}
}

var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

func global() *Registry {
	globalOnce.Do(func() { globalRegistry = NewRegistry() })
	return globalRegistry
}

func (r *Registry) counter(name string) metric.Float64Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c, _ := r.meter.Float64Counter(name)
	r.counters[name] = c
	return c
}

func (r *Registry) histogram(name string) metric.Float64Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h, _ := r.meter.Float64Histogram(name)
	r.histograms[name] = h
	return h
}

func (r *Registry) gauge(name string) metric.Float64Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g, _ := r.meter.Float64Histogram(name)
	r.gauges[name] = g
	return g
}

func labelsToAttrs(labels []string) []attrKV {
	out := make([]attrKV, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		out = append(out, attrKV{labels[i], labels[i+1]})
	}
	return out
}

// Counter increments a counter metric by 1. Labels are key-value pairs:
// Counter("scheduler.ticks", "plan_id", planID).
func (r *Registry) Counter(name string, labels ...string) {
	r.counter(name).Add(context.Background(), 1, metric.WithAttributes(toOtelAttrs(labelsToAttrs(labels))...))
}

// Histogram records a value in a distribution (latencies, sizes).
func (r *Registry) Histogram(name string, value float64, labels ...string) {
	r.histogram(name).Record(context.Background(), value, metric.WithAttributes(toOtelAttrs(labelsToAttrs(labels))...))
}

// Gauge records a point-in-time value. Recorded as a histogram internally
// (OpenTelemetry gauges require async callbacks; a histogram of single
// observations gives equivalent dashboards without the callback machinery).
func (r *Registry) Gauge(name string, value float64, labels ...string) {
	r.gauge(name).Record(context.Background(), value, metric.WithAttributes(toOtelAttrs(labelsToAttrs(labels))...))
}

// Duration records elapsed time since start in milliseconds.
func (r *Registry) Duration(name string, start time.Time, labels ...string) {
	r.Histogram(name, float64(time.Since(start).Milliseconds()), labels...)
}

// EmitWithContext records nothing: its arguments are discarded, and
// Counter, Histogram, Gauge and Duration do not call it.
func (r *Registry) EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
	_ = ctx
	_ = name
	_ = value
	_ = labels
}

// Package-level convenience functions delegate to a lazily-built global
// registry so components can call telemetry.Counter(...) without threading
// a Registry through every constructor, matching the teacher's Level-1 API.
func Counter(name string, labels ...string)                  { global().Counter(name, labels...) }
func Histogram(name string, value float64, labels ...string) { global().Histogram(name, value, labels...) }
func Gauge(name string, value float64, labels ...string)     { global().Gauge(name, value, labels...) }
func Duration(name string, start time.Time, labels ...string) {
	global().Duration(name, start, labels...)
}

// TimeOperation returns a func to defer that records elapsed time under name.
func TimeOperation(name string, labels ...string) func() {
	start := time.Now()
	return func() { Duration(name, start, labels...) }
}

type attrKV struct{ key, value string }
