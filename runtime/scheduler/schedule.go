package scheduler

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

// ScheduleTimer ingests a ScheduleTimer command: it builds the scheduled
// aggregate and upserts it under the (tenant, service call) key. Re-ingesting
// the same key replaces the previous schedule, so command redelivery and
// client reschedules converge on the same row.
//
// The persistence step runs under a detached context: once the workflow
// decides to save, a caller cancellation must not leave the command half
// applied.
func (s *Service) ScheduleTimer(ctx context.Context, cmd bus.ScheduleTimer, meta Metadata) error {
	attrs := []attribute.KeyValue{
		attribute.String("tenant_id", cmd.TenantID.String()),
		attribute.String("service_call_id", cmd.ServiceCallID.String()),
		attribute.String("due_at", cmd.DueAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")),
	}
	if meta.CorrelationID != nil {
		attrs = append(attrs, attribute.String("correlation_id", meta.CorrelationID.String()))
	}
	if meta.CausationID != nil {
		attrs = append(attrs, attribute.String("causation_id", meta.CausationID.String()))
	}
	ctx, span := s.tracer.Start(ctx, "Timer.ScheduleTimer", trace.WithAttributes(attrs...))
	defer span.End()

	key := timer.Key{TenantID: cmd.TenantID, ServiceCallID: cmd.ServiceCallID}
	t := timer.Schedule(key, cmd.DueAt, s.clock(), meta.CorrelationID)

	if err := s.store.Save(context.WithoutCancel(ctx), t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return fmt.Errorf("schedule timer %s: %w", key, err)
	}

	s.metrics.IncCounter("timer.scheduled", 1, "tenant_id", key.TenantID.String())
	s.logger.Info(ctx, "timer scheduled",
		"tenant_id", key.TenantID.String(),
		"service_call_id", key.ServiceCallID.String(),
		"due_at", t.DueAt,
	)
	span.SetStatus(codes.Ok, "scheduled")
	return nil
}
