package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

// envelopeSchema is the wire contract both timer topics share. Inbound
// messages are validated against it before decoding so malformed producers
// surface as poison messages instead of partial decodes.
const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "type", "tenantId", "timestampMs", "payload"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "type": {"type": "string", "minLength": 1},
    "tenantId": {"type": "string", "minLength": 1},
    "aggregateId": {"type": ["string", "null"]},
    "timestampMs": {"type": "string"},
    "correlationId": {"type": ["string", "null"]},
    "causationId": {"type": ["string", "null"]},
    "payload": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var compiledEnvelopeSchema = mustCompileEnvelopeSchema()

type (
	// wireEnvelope is the JSON rendering of an envelope.
	wireEnvelope struct {
		ID            string          `json:"id"`
		Type          string          `json:"type"`
		TenantID      string          `json:"tenantId"`
		AggregateID   *string         `json:"aggregateId"`
		TimestampMs   time.Time       `json:"timestampMs"`
		CorrelationID *string         `json:"correlationId"`
		CausationID   *string         `json:"causationId"`
		Payload       json.RawMessage `json:"payload"`
	}

	wireScheduleTimer struct {
		Type          string    `json:"type"`
		TenantID      string    `json:"tenantId"`
		ServiceCallID string    `json:"serviceCallId"`
		DueAt         time.Time `json:"dueAt"`
	}

	wireDueTimeReached struct {
		Type          string    `json:"type"`
		TenantID      string    `json:"tenantId"`
		ServiceCallID string    `json:"serviceCallId"`
		ReachedAt     time.Time `json:"reachedAt"`
	}
)

// MarshalEnvelope renders the envelope in the wire shape shared by both timer
// topics.
func MarshalEnvelope(env Envelope) ([]byte, error) {
	payload, err := marshalPayload(env.Payload)
	if err != nil {
		return nil, err
	}
	wire := wireEnvelope{
		ID:          env.ID.String(),
		Type:        env.Type,
		TenantID:    env.TenantID.String(),
		AggregateID: env.AggregateID,
		TimestampMs: env.Timestamp.UTC(),
		Payload:     payload,
	}
	if env.CorrelationID != nil {
		s := env.CorrelationID.String()
		wire.CorrelationID = &s
	}
	if env.CausationID != nil {
		s := env.CausationID.String()
		wire.CausationID = &s
	}
	return json.Marshal(wire)
}

// DecodeEnvelope validates data against the envelope schema and decodes it
// into a typed envelope. Any error means the message can never be processed;
// subscribers treat it as poison (log and ack).
func DecodeEnvelope(data []byte) (Envelope, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := compiledEnvelopeSchema.Validate(doc); err != nil {
		return Envelope{}, fmt.Errorf("envelope schema: %w", err)
	}
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	id, err := timer.ParseEnvelopeID(wire.ID)
	if err != nil {
		return Envelope{}, err
	}
	tenant, err := timer.ParseTenantID(wire.TenantID)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{
		ID:          id,
		Type:        wire.Type,
		TenantID:    tenant,
		AggregateID: wire.AggregateID,
		Timestamp:   wire.TimestampMs.UTC(),
	}
	if wire.CorrelationID != nil {
		corr, err := timer.ParseCorrelationID(*wire.CorrelationID)
		if err != nil {
			return Envelope{}, err
		}
		env.CorrelationID = &corr
	}
	if wire.CausationID != nil {
		cause, err := timer.ParseEnvelopeID(*wire.CausationID)
		if err != nil {
			return Envelope{}, err
		}
		env.CausationID = &cause
	}
	env.Payload, err = decodePayload(wire.Type, wire.Payload)
	if err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func marshalPayload(p Payload) (json.RawMessage, error) {
	switch payload := p.(type) {
	case ScheduleTimer:
		return json.Marshal(wireScheduleTimer{
			Type:          TypeScheduleTimer,
			TenantID:      payload.TenantID.String(),
			ServiceCallID: payload.ServiceCallID.String(),
			DueAt:         payload.DueAt.UTC(),
		})
	case DueTimeReached:
		return json.Marshal(wireDueTimeReached{
			Type:          TypeDueTimeReached,
			TenantID:      payload.TenantID.String(),
			ServiceCallID: payload.ServiceCallID.String(),
			ReachedAt:     payload.ReachedAt.UTC(),
		})
	default:
		return nil, fmt.Errorf("unknown payload type %T", p)
	}
}

func decodePayload(envType string, data json.RawMessage) (Payload, error) {
	switch envType {
	case TypeScheduleTimer:
		var wire wireScheduleTimer
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", envType, err)
		}
		if wire.Type != TypeScheduleTimer {
			return nil, fmt.Errorf("payload type %q does not match envelope type %q", wire.Type, envType)
		}
		tenant, err := timer.ParseTenantID(wire.TenantID)
		if err != nil {
			return nil, err
		}
		call, err := timer.ParseServiceCallID(wire.ServiceCallID)
		if err != nil {
			return nil, err
		}
		return ScheduleTimer{TenantID: tenant, ServiceCallID: call, DueAt: wire.DueAt.UTC()}, nil
	case TypeDueTimeReached:
		var wire wireDueTimeReached
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", envType, err)
		}
		if wire.Type != TypeDueTimeReached {
			return nil, fmt.Errorf("payload type %q does not match envelope type %q", wire.Type, envType)
		}
		tenant, err := timer.ParseTenantID(wire.TenantID)
		if err != nil {
			return nil, err
		}
		call, err := timer.ParseServiceCallID(wire.ServiceCallID)
		if err != nil {
			return nil, err
		}
		return DueTimeReached{TenantID: tenant, ServiceCallID: call, ReachedAt: wire.ReachedAt.UTC()}, nil
	default:
		return nil, fmt.Errorf("unknown envelope type %q", envType)
	}
}

func mustCompileEnvelopeSchema() *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(envelopeSchema), &doc); err != nil {
		panic(fmt.Sprintf("bus: unmarshal envelope schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("envelope.json", doc); err != nil {
		panic(fmt.Sprintf("bus: add envelope schema resource: %v", err))
	}
	schema, err := c.Compile("envelope.json")
	if err != nil {
		panic(fmt.Sprintf("bus: compile envelope schema: %v", err))
	}
	return schema
}
