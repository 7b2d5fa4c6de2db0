// Package scheduler implements the timer service workflows: ingesting
// ScheduleTimer commands from the bus, polling the store for due timers and
// publishing DueTimeReached events, and the long-running worker that drives
// the poll at a fixed cadence.
//
// The workflows are deliberately thin. Idempotency lives behind the ports
// (Save is an upsert, MarkFired a monotone transition, publish at-least-once
// with consumer-side dedup), so every step here is safe to repeat after a
// crash or a redelivery.
package scheduler

import (
	"time"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/telemetry"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

type (
	// Clock supplies the current wall-clock moment. Workflows read it once
	// per pass so a whole batch shares a single "now".
	Clock func() time.Time

	// Metadata carries the correlation and causation extracted from the
	// envelope a command arrived in. It is passed explicitly rather than
	// riding an ambient context value.
	Metadata struct {
		CorrelationID *timer.CorrelationID
		CausationID   *timer.EnvelopeID
	}

	// Service bundles the ports the workflows operate on.
	Service struct {
		store   timer.Store
		bus     bus.Publisher
		clock   Clock
		logger  telemetry.Logger
		metrics telemetry.Metrics
		tracer  telemetry.Tracer
	}

	// Option configures a Service.
	Option func(*Service)
)

// WithClock overrides the wall clock. Tests use this to drive due times
// deterministically.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l telemetry.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New constructs a Service over the given store and publisher. Telemetry
// defaults to no-op implementations and the clock to time.Now.
func New(store timer.Store, publisher bus.Publisher, opts ...Option) *Service {
	s := &Service{
		store:   store,
		bus:     publisher,
		clock:   func() time.Time { return time.Now().UTC() },
		logger:  telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
		tracer:  telemetry.NewNoopTracer(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}
