// Package metrics provides interfaces and implementations for collecting
// instruction processing metrics.
//
// The processor reports a counter per processed, succeeded and failed
// instruction, a counter per operation and a histogram of processing time.
// Sinks are combined with a Collection; LogMetrics keeps running totals and
// writes them through slog, NoopMetrics discards everything.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Metrics defines the interface for collecting and managing processor metrics.
type Metrics interface {
	// Initialize prepares the metrics system for data collection.
	Initialize(ctx context.Context) error

	// Flush sends any buffered metrics data to ensure all metrics are reported.
	Flush(ctx context.Context) error

	// Shutdown gracefully shuts down the metrics system, performing cleanup.
	Shutdown(ctx context.Context) error

	// UpdateGauge sets a gauge metric to the specified value.
	// Gauges track values that can go up or down, like queue length.
	UpdateGauge(ctx context.Context, name string, value float64) error

	// IncrementCounter increments a counter metric by the specified value.
	// Counters track values that only increase, like total processed items.
	IncrementCounter(ctx context.Context, name string, value uint64) error

	// RecordHistogram records a value in a histogram metric.
	// Histograms track the distribution of values, like request latencies.
	RecordHistogram(ctx context.Context, name string, value float64) error
}

// Collection manages multiple Metrics implementations and delegates calls to all of them.
type Collection struct {
	metrics []Metrics
	mu      sync.RWMutex
}

// NewCollection creates a new Collection with the given metrics implementations.
func NewCollection(metrics ...Metrics) *Collection {
	return &Collection{
		metrics: metrics,
	}
}

// Add adds a new Metrics implementation to the collection.
func (c *Collection) Add(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = append(c.metrics, m)
}

// each calls fn on every sink. A failing sink does not stop the others; their
// errors are joined.
func (c *Collection) each(fn func(Metrics) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	for _, m := range c.metrics {
		if err := fn(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Initialize initializes all metrics in the collection.
func (c *Collection) Initialize(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Initialize(ctx) })
}

// Flush flushes all metrics in the collection.
func (c *Collection) Flush(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Flush(ctx) })
}

// Shutdown shuts down all metrics in the collection.
func (c *Collection) Shutdown(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Shutdown(ctx) })
}

// UpdateGauge updates a gauge metric across all implementations.
func (c *Collection) UpdateGauge(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.UpdateGauge(ctx, name, value) })
}

// IncrementCounter increments a counter across all implementations.
func (c *Collection) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return c.each(func(m Metrics) error { return m.IncrementCounter(ctx, name, value) })
}

// RecordHistogram records a histogram value across all implementations.
func (c *Collection) RecordHistogram(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.RecordHistogram(ctx, name, value) })
}

// Len returns the number of metrics implementations in the collection.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metrics)
}

// NoopMetrics is a Metrics implementation that does nothing.
// Useful for testing or when metrics are disabled.
type NoopMetrics struct{}

// NewNoopMetrics creates a new NoopMetrics.
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) Initialize(ctx context.Context) error                              { return nil }
func (n *NoopMetrics) Flush(ctx context.Context) error                                   { return nil }
func (n *NoopMetrics) Shutdown(ctx context.Context) error                                { return nil }
func (n *NoopMetrics) UpdateGauge(ctx context.Context, name string, value float64) error { return nil }
func (n *NoopMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return nil
}
func (n *NoopMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	return nil
}

// LogMetrics is a Metrics implementation that logs all metrics using slog and
// keeps running totals that can be read back.
type LogMetrics struct {
	logger     *slog.Logger
	mu         sync.RWMutex
	gauges     map[string]float64
	counters   map[string]uint64
	histograms map[string]HistogramSummary
}

// HistogramSummary aggregates the values recorded for one histogram.
type HistogramSummary struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func (h HistogramSummary) observe(v float64) HistogramSummary {
	if h.Count == 0 || v < h.Min {
		h.Min = v
	}
	if h.Count == 0 || v > h.Max {
		h.Max = v
	}
	h.Count++
	h.Sum += v
	return h
}

// Mean returns the average recorded value.
func (h HistogramSummary) Mean() float64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / float64(h.Count)
}

// NewLogMetrics creates a new LogMetrics with the given logger.
// If logger is nil, the default logger is used.
func NewLogMetrics(logger *slog.Logger) *LogMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMetrics{
		logger:     logger,
		gauges:     make(map[string]float64),
		counters:   make(map[string]uint64),
		histograms: make(map[string]HistogramSummary),
	}
}

// Initialize initializes the log metrics.
func (l *LogMetrics) Initialize(ctx context.Context) error {
	l.logger.Info("metrics initialized")
	return nil
}

// Flush logs all current metric values.
func (l *LogMetrics) Flush(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	l.logger.Info("metrics flush",
		"gauges", l.gauges,
		"counters", l.counters,
		"histograms", l.histograms,
	)
	return nil
}

// Shutdown shuts down the log metrics.
func (l *LogMetrics) Shutdown(ctx context.Context) error {
	l.logger.Info("metrics shutdown")
	return nil
}

// UpdateGauge logs the gauge update.
func (l *LogMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gauges[name] = value
	l.logger.Debug("gauge updated", "name", name, "value", value)
	return nil
}

// IncrementCounter logs the counter increment.
func (l *LogMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counters[name] += value
	l.logger.Debug("counter incremented", "name", name, "value", value, "total", l.counters[name])
	return nil
}

// RecordHistogram logs the histogram record.
func (l *LogMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.histograms[name] = l.histograms[name].observe(value)
	l.logger.Debug("histogram recorded", "name", name, "value", value)
	return nil
}

// Counter returns the running total of a counter.
func (l *LogMetrics) Counter(name string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counters[name]
}

// Histogram returns the summary of a histogram.
func (l *LogMetrics) Histogram(name string) HistogramSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.histograms[name]
}

// Metric names used by the processor and the host.
const (
	MetricInstructionsProcessed             = "instructions_processed"
	MetricInstructionsSucceeded             = "instructions_succeeded"
	MetricInstructionsFailed                = "instructions_failed"
	MetricInstructionProcessTimeNanoseconds = "instruction_process_time_nanoseconds"
	MetricInvocationsRolledBack             = "invocations_rolled_back"
	MetricInvocationsCommitted              = "invocations_committed"
	MetricAccountsStored                    = "accounts_stored"
)

// InstructionCounter returns the per-operation counter name, e.g. instruction_close.
func InstructionCounter(operation string) string {
	return "instruction_" + toSnake(operation)
}

func toSnake(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
