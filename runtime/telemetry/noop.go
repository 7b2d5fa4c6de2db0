package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// NoopLogger discards every message. scheduler.New installs it when no
	// WithLogger option is given, so workflow code never nil-checks its
	// instrumentation.
	NoopLogger struct{}

	// NoopMetrics discards every counter, timer and gauge sample.
	NoopMetrics struct{}

	// NoopTracer hands out inert spans and leaves the context untouched, so
	// timer workflows run untraced with zero per-span cost.
	NoopTracer struct{}

	noopSpan struct{}
)

// NewNoopLogger returns the discard logger used as the default for scheduler
// and bus construction.
func NewNoopLogger() Logger {
	return NoopLogger{}
}

// NewNoopMetrics returns the discard metrics recorder.
func NewNoopMetrics() Metrics {
	return NoopMetrics{}
}

// NewNoopTracer returns the inert tracer.
func NewNoopTracer() Tracer {
	return NoopTracer{}
}

func (NoopLogger) Debug(context.Context, string, ...any) {}
func (NoopLogger) Info(context.Context, string, ...any)  {}
func (NoopLogger) Warn(context.Context, string, ...any)  {}
func (NoopLogger) Error(context.Context, string, ...any) {}

func (NoopMetrics) IncCounter(string, float64, ...string)        {}
func (NoopMetrics) RecordTimer(string, time.Duration, ...string) {}
func (NoopMetrics) RecordGauge(string, float64, ...string)       {}

// Start returns the context unchanged alongside an inert span.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

// Span returns an inert span regardless of what the context carries.
func (NoopTracer) Span(context.Context) Span {
	return noopSpan{}
}

func (noopSpan) End(...trace.SpanEndOption)              {}
func (noopSpan) AddEvent(string, ...any)                 {}
func (noopSpan) SetStatus(codes.Code, string)            {}
func (noopSpan) RecordError(error, ...trace.EventOption) {}
