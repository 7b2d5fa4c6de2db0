package bus

import (
	"errors"
	"time"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

type (
	// Envelope wraps a typed payload with the routing metadata the broker and
	// downstream consumers need: tenant, ordering key, correlation and
	// causation. Envelopes are immutable once built.
	Envelope struct {
		// ID uniquely identifies the envelope. Fresh ids are time-ordered so
		// broker dedup windows can key on them.
		ID timer.EnvelopeID
		// Type discriminates the payload; it always equals the payload's own
		// type tag.
		Type string
		// TenantID is the tenant the payload belongs to.
		TenantID timer.TenantID
		// AggregateID is the per-tenant ordering key. For timers it is always
		// the service call id.
		AggregateID *string
		// Timestamp is the producer timestamp (UTC).
		Timestamp time.Time
		// CorrelationID ties the message to the originating transaction. Nil
		// when unknown.
		CorrelationID *timer.CorrelationID
		// CausationID names the envelope that caused this one. Nil for
		// messages that start a chain.
		CausationID *timer.EnvelopeID
		// Payload is one of the typed messages below.
		Payload Payload
	}

	// Payload is a typed message riding in an envelope. The type tag doubles
	// as the envelope Type and selects the topic the envelope travels on.
	Payload interface {
		PayloadType() string
	}

	// ScheduleTimer is the command that asks the service to fire a timer for
	// a service call at DueAt.
	ScheduleTimer struct {
		TenantID      timer.TenantID
		ServiceCallID timer.ServiceCallID
		DueAt         time.Time
	}

	// DueTimeReached is the event announcing that a timer's due moment has
	// arrived. Delivery is at-least-once; consumers must dedup by envelope id
	// or treat the event idempotently.
	DueTimeReached struct {
		TenantID      timer.TenantID
		ServiceCallID timer.ServiceCallID
		ReachedAt     time.Time
	}
)

const (
	// TypeScheduleTimer tags ScheduleTimer payloads.
	TypeScheduleTimer = "ScheduleTimer"
	// TypeDueTimeReached tags DueTimeReached payloads.
	TypeDueTimeReached = "DueTimeReached"
)

// PayloadType implements Payload.
func (ScheduleTimer) PayloadType() string { return TypeScheduleTimer }

// PayloadType implements Payload.
func (DueTimeReached) PayloadType() string { return TypeDueTimeReached }

// TopicFor maps a payload type to the topic it travels on.
func TopicFor(payloadType string) (Topic, error) {
	switch payloadType {
	case TypeScheduleTimer:
		return TopicTimerCommands, nil
	case TypeDueTimeReached:
		return TopicTimerEvents, nil
	default:
		return "", errors.New("unknown payload type " + payloadType)
	}
}

// NewEnvelope wraps payload in an envelope with a fresh id. The aggregate id
// is derived from the payload (the service call id for both timer messages)
// and the timestamp is normalized to UTC.
func NewEnvelope(payload Payload, ts time.Time, correlationID *timer.CorrelationID, causationID *timer.EnvelopeID) (Envelope, error) {
	id, err := timer.NewEnvelopeID()
	if err != nil {
		return Envelope{}, err
	}
	var (
		tenant    timer.TenantID
		aggregate string
	)
	switch p := payload.(type) {
	case ScheduleTimer:
		tenant, aggregate = p.TenantID, p.ServiceCallID.String()
	case DueTimeReached:
		tenant, aggregate = p.TenantID, p.ServiceCallID.String()
	default:
		return Envelope{}, errors.New("unknown payload type")
	}
	return Envelope{
		ID:            id,
		Type:          payload.PayloadType(),
		TenantID:      tenant,
		AggregateID:   &aggregate,
		Timestamp:     ts.UTC(),
		CorrelationID: correlationID,
		CausationID:   causationID,
		Payload:       payload,
	}, nil
}
