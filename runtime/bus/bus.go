// Package bus defines the event bus port the timer service publishes to and
// consumes from, together with the message envelope and the typed payloads
// that ride in it.
//
// The port is transport-agnostic: adapters map it onto a concrete broker
// (features/bus/pulse runs it over Redis Streams, runtime/bus/inmem keeps it
// in process for tests). Every adapter carries the same guarantees:
//
//   - Publish is at-least-once. Envelopes are deduplicated within the
//     adapter's dedup window keyed by Envelope.ID, and envelopes sharing a
//     (tenant, aggregate) pair are delivered in publish order.
//   - Subscribe joins a durable shared consumer: replicas of the service
//     split the stream between them, each instance handles one message at a
//     time, a nil handler result acks the message and an error naks it for
//     redelivery.
//
// Because redelivery is always possible, handlers must be idempotent.
package bus

import (
	"context"
	"fmt"
)

type (
	// Topic is a logical message channel. Adapters map topics onto their
	// broker's addressing scheme.
	Topic string

	// Handler processes one decoded envelope. Returning nil acknowledges the
	// message; returning an error naks it and the broker redelivers.
	Handler func(ctx context.Context, env Envelope) error

	// Publisher places envelopes on the bus.
	Publisher interface {
		// Publish places the given envelopes on the topic derived from their
		// payload type. It rejects empty input. Within one call envelopes are
		// appended in order; a failure is reported as *PublishError. Batch
		// atomicity is adapter-level: the in-memory bus places a batch all or
		// not at all, while the stream adapter appends one envelope at a time,
		// so a broker fault mid-batch can leave a prefix placed. Callers
		// re-publish on error and consumer dedup absorbs the overlap.
		Publish(ctx context.Context, envelopes []Envelope) error
	}

	// Subscriber consumes topics with an ack/nak contract.
	Subscriber interface {
		// Subscribe joins the durable consumer for the given topics and
		// invokes handler sequentially, one message at a time. It blocks
		// until ctx is done (returning nil) or the subscription itself fails
		// (returning *SubscribeError).
		Subscribe(ctx context.Context, topics []Topic, handler Handler) error
	}

	// Bus combines both halves of the port.
	Bus interface {
		Publisher
		Subscriber
	}
)

const (
	// TopicTimerCommands carries ScheduleTimer commands into the service.
	TopicTimerCommands Topic = "Timer.Commands"
	// TopicTimerEvents carries DueTimeReached events out of the service.
	TopicTimerEvents Topic = "Timer.Events"
)

// PublishError reports a broker publication failure.
type PublishError struct {
	Err error
}

// Error implements error.
func (e *PublishError) Error() string { return fmt.Sprintf("publish: %v", e.Err) }

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *PublishError) Unwrap() error { return e.Err }

// SubscribeError reports a broker subscription or consumer failure. It is
// fatal to the subscription; the service entry point treats it as terminal.
type SubscribeError struct {
	Err error
}

// Error implements error.
func (e *SubscribeError) Error() string { return fmt.Sprintf("subscribe: %v", e.Err) }

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *SubscribeError) Unwrap() error { return e.Err }
