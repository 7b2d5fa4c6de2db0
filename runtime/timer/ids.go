package timer

import (
	"fmt"

	"github.com/google/uuid"
)

type (
	// TenantID identifies the tenant that owns a timer. Tenants partition all
	// stored data; a timer is only visible through its own tenant.
	TenantID string

	// ServiceCallID identifies the service call a timer fires for. Together
	// with the tenant it forms the timer's primary identity.
	ServiceCallID string

	// EnvelopeID uniquely identifies a message envelope. Fresh ids are
	// time-ordered (UUID v7) so broker dedup windows and log ordering work
	// off the id alone.
	EnvelopeID string

	// CorrelationID ties a timer and the events it produces back to the
	// originating business transaction.
	CorrelationID string

	// Key is the composite identity of a timer. At most one timer exists per
	// key.
	Key struct {
		TenantID      TenantID
		ServiceCallID ServiceCallID
	}
)

// NewTenantID returns a fresh time-ordered tenant identifier.
func NewTenantID() (TenantID, error) {
	s, err := newV7()
	return TenantID(s), err
}

// NewServiceCallID returns a fresh time-ordered service call identifier.
func NewServiceCallID() (ServiceCallID, error) {
	s, err := newV7()
	return ServiceCallID(s), err
}

// NewEnvelopeID returns a fresh time-ordered envelope identifier.
func NewEnvelopeID() (EnvelopeID, error) {
	s, err := newV7()
	return EnvelopeID(s), err
}

// NewCorrelationID returns a fresh time-ordered correlation identifier.
func NewCorrelationID() (CorrelationID, error) {
	s, err := newV7()
	return CorrelationID(s), err
}

// ParseTenantID validates s as a UUID and returns it in canonical form.
func ParseTenantID(s string) (TenantID, error) {
	c, err := canonical(s)
	if err != nil {
		return "", fmt.Errorf("tenant id: %w", err)
	}
	return TenantID(c), nil
}

// ParseServiceCallID validates s as a UUID and returns it in canonical form.
func ParseServiceCallID(s string) (ServiceCallID, error) {
	c, err := canonical(s)
	if err != nil {
		return "", fmt.Errorf("service call id: %w", err)
	}
	return ServiceCallID(c), nil
}

// ParseEnvelopeID validates s as a UUID and returns it in canonical form.
func ParseEnvelopeID(s string) (EnvelopeID, error) {
	c, err := canonical(s)
	if err != nil {
		return "", fmt.Errorf("envelope id: %w", err)
	}
	return EnvelopeID(c), nil
}

// ParseCorrelationID validates s as a UUID and returns it in canonical form.
func ParseCorrelationID(s string) (CorrelationID, error) {
	c, err := canonical(s)
	if err != nil {
		return "", fmt.Errorf("correlation id: %w", err)
	}
	return CorrelationID(c), nil
}

func (id TenantID) String() string      { return string(id) }
func (id ServiceCallID) String() string { return string(id) }
func (id EnvelopeID) String() string    { return string(id) }
func (id CorrelationID) String() string { return string(id) }

// String renders the key as "tenant/serviceCall" for logs and errors.
func (k Key) String() string {
	return string(k.TenantID) + "/" + string(k.ServiceCallID)
}

// newV7 generates a canonical UUID v7 string. Generated ids are always v7;
// parsers accept any RFC 4122 UUID because peer modules may predate v7.
func newV7() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return u.String(), nil
}

// canonical parses s and re-renders it in the canonical lowercase form.
func canonical(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
