package scheduler

import (
	"context"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/retry"
)

// CommandHandler returns the bus handler for the command topic. Each delivered
// envelope runs the ScheduleTimer workflow under the given retry policy, so
// transient persistence faults are absorbed locally before the message is
// naked back to the broker.
//
// Envelopes carrying a payload other than ScheduleTimer are logged and acked:
// redelivering them cannot change the outcome. A workflow error that survives
// the retries is returned so the bus naks the delivery.
func (s *Service) CommandHandler(retryCfg retry.Config) bus.Handler {
	return func(ctx context.Context, env bus.Envelope) error {
		cmd, ok := env.Payload.(bus.ScheduleTimer)
		if !ok {
			s.logger.Warn(ctx, "unexpected payload on command topic",
				"envelope_id", env.ID.String(),
				"type", env.Type,
			)
			return nil
		}

		meta := Metadata{CorrelationID: env.CorrelationID}
		id := env.ID
		meta.CausationID = &id

		err := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
			return s.ScheduleTimer(ctx, cmd, meta)
		})
		if err != nil {
			s.logger.Error(ctx, "schedule command failed",
				"envelope_id", env.ID.String(),
				"tenant_id", cmd.TenantID.String(),
				"service_call_id", cmd.ServiceCallID.String(),
				"error", err.Error(),
			)
			return err
		}
		return nil
	}
}
