package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

// PollDueTimers runs one firing pass: it loads every scheduled timer whose due
// moment has arrived and, for each one in due order, publishes DueTimeReached
// and then marks the row fired.
//
// Publish happens before MarkFired. A crash between the two leaves the timer
// scheduled, so the next pass publishes again; consumers dedup by envelope id.
// The reverse order would risk a marked timer whose event never left the
// process.
//
// A per-timer failure never aborts the pass. Failed timers stay scheduled and
// the pass reports them collectively as *BatchProcessingError once the batch
// is done. Only the initial store scan is fatal to the pass itself.
func (s *Service) PollDueTimers(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "Timer.PollDueTimers")
	defer span.End()

	now := s.clock()
	due, err := s.store.FindDue(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return fmt.Errorf("poll due timers: %w", err)
	}
	span.AddEvent("scanned", "batch_size", len(due))
	s.metrics.RecordGauge("timer.poll_batch_size", float64(len(due)))
	if len(due) == 0 {
		span.SetStatus(codes.Ok, "nothing due")
		return nil
	}

	var errs []error
	for _, t := range due {
		if err := s.fire(ctx, t, now); err != nil {
			errs = append(errs, err)
			s.metrics.IncCounter("timer.poll_failures", 1, "tenant_id", t.TenantID.String())
			s.logger.Warn(ctx, "timer fire failed",
				"tenant_id", t.TenantID.String(),
				"service_call_id", t.ServiceCallID.String(),
				"error", err.Error(),
			)
			continue
		}
		s.metrics.IncCounter("timer.fired", 1, "tenant_id", t.TenantID.String())
	}

	if len(errs) > 0 {
		span.SetStatus(codes.Error, "partial batch failure")
		span.AddEvent("batch done", "failed", len(errs), "total", len(due))
		return &BatchProcessingError{FailedCount: len(errs), TotalCount: len(due), Errs: errs}
	}
	span.SetStatus(codes.Ok, "batch fired")
	return nil
}

// fire publishes the DueTimeReached event for one timer and marks it fired.
// The mark runs under a detached context: once the event is out, a caller
// cancellation must not prevent recording that fact.
func (s *Service) fire(ctx context.Context, t timer.Timer, reachedAt time.Time) error {
	env, err := bus.NewEnvelope(bus.DueTimeReached{
		TenantID:      t.TenantID,
		ServiceCallID: t.ServiceCallID,
		ReachedAt:     reachedAt,
	}, reachedAt, t.CorrelationID, nil)
	if err != nil {
		return fmt.Errorf("fire %s: %w", t.Key(), err)
	}
	if err := s.bus.Publish(ctx, []bus.Envelope{env}); err != nil {
		return fmt.Errorf("fire %s: %w", t.Key(), err)
	}
	if err := s.store.MarkFired(context.WithoutCancel(ctx), t.Key(), reachedAt); err != nil {
		return fmt.Errorf("fire %s: %w", t.Key(), err)
	}
	s.logger.Debug(ctx, "timer fired",
		"tenant_id", t.TenantID.String(),
		"service_call_id", t.ServiceCallID.String(),
		"due_at", t.DueAt,
		"reached_at", reachedAt,
	)
	return nil
}
