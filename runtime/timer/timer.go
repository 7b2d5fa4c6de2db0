// Package timer defines the timer aggregate and the persistence contract used
// by the scheduling workflows.
//
// A timer is the promise to announce, once, that a service call's due moment
// has arrived. It is a tagged variant over two states sharing a common
// header:
//
//   - Scheduled: the waiting state, created when a ScheduleTimer command is
//     ingested.
//   - Reached: the terminal state, entered when the polling workflow fires
//     the timer. The transition is monotone; a reached timer never goes back
//     to scheduled except through a fresh upsert of the same key.
//
// Identity is the (tenant, service call) pair: at most one timer exists per
// Key, and saving again under the same key replaces the previous schedule.
// All state transitions are pure; durability and idempotency guarantees live
// behind the Store interface.
package timer

import (
	"context"
	"time"
)

type (
	// State is the lifecycle tag of a timer.
	State string

	// Timer is an immutable snapshot of a timer aggregate. The zero value is
	// not a valid timer; construct one with Schedule.
	Timer struct {
		// TenantID is the owning tenant.
		TenantID TenantID
		// ServiceCallID names the service call the timer fires for.
		ServiceCallID ServiceCallID
		// DueAt is the moment the timer becomes due. It may lie in the past
		// relative to RegisteredAt; past-dated timers fire on the next poll.
		DueAt time.Time
		// RegisteredAt records when the schedule command was ingested.
		RegisteredAt time.Time
		// CorrelationID ties the timer to the originating transaction. Nil
		// when the command carried none. A later upsert replaces it, marking
		// fired never touches it.
		CorrelationID *CorrelationID
		// State discriminates the variant.
		State State
		// ReachedAt is set exactly when State is StateReached and records the
		// first firing moment. Marking an already reached timer keeps it.
		ReachedAt *time.Time
	}

	// Store is the persistence port for timers. Implementations must be safe
	// for concurrent use: the polling worker scans while the command
	// subscription writes.
	//
	// Contract:
	//   - Save upserts on the timer's Key: a second save replaces DueAt,
	//     RegisteredAt and CorrelationID (including dropping it to nil) and
	//     re-arms the row as scheduled.
	//   - Find and FindScheduled are tenant-scoped by key and return nil,
	//     not an error, when no row matches.
	//   - FindDue returns scheduled timers with DueAt <= now across all
	//     tenants, ordered by DueAt ascending.
	//   - MarkFired transitions Scheduled to Reached. It is idempotent: a
	//     second call preserves the first ReachedAt, and a missing key is a
	//     no-op.
	//   - Delete removes the row and is a no-op when the key is absent.
	//
	// All failures are reported as *PersistenceError.
	Store interface {
		Save(ctx context.Context, t Timer) error
		Find(ctx context.Context, key Key) (*Timer, error)
		FindScheduled(ctx context.Context, key Key) (*Timer, error)
		FindDue(ctx context.Context, now time.Time) ([]Timer, error)
		MarkFired(ctx context.Context, key Key, reachedAt time.Time) error
		Delete(ctx context.Context, key Key) error
	}
)

const (
	// StateScheduled marks a timer waiting for its due moment.
	StateScheduled State = "Scheduled"
	// StateReached marks a timer that has fired. Terminal.
	StateReached State = "Reached"
)

// Schedule constructs a scheduled timer from the command fields and the
// metadata extracted from the carrying envelope. Times are normalized to UTC;
// the correlation id is copied so the caller's pointer cannot alias stored
// state.
func Schedule(key Key, dueAt, registeredAt time.Time, correlationID *CorrelationID) Timer {
	var corr *CorrelationID
	if correlationID != nil {
		c := *correlationID
		corr = &c
	}
	return Timer{
		TenantID:      key.TenantID,
		ServiceCallID: key.ServiceCallID,
		DueAt:         dueAt.UTC(),
		RegisteredAt:  registeredAt.UTC(),
		CorrelationID: corr,
		State:         StateScheduled,
	}
}

// MarkReached returns the reached variant of the timer with ReachedAt set.
// Calling it on an already reached timer returns the receiver unchanged so
// the first firing moment survives repeated marks.
func (t Timer) MarkReached(reachedAt time.Time) Timer {
	if t.State == StateReached {
		return t
	}
	at := reachedAt.UTC()
	t.State = StateReached
	t.ReachedAt = &at
	return t
}

// IsDue reports whether the timer's due moment has arrived. The comparison is
// inclusive: a timer with DueAt equal to now is due.
func (t Timer) IsDue(now time.Time) bool {
	return !t.DueAt.After(now)
}

// IsScheduled reports whether the timer is in the waiting state.
func (t Timer) IsScheduled() bool { return t.State == StateScheduled }

// IsReached reports whether the timer has fired.
func (t Timer) IsReached() bool { return t.State == StateReached }

// Key returns the timer's composite identity.
func (t Timer) Key() Key {
	return Key{TenantID: t.TenantID, ServiceCallID: t.ServiceCallID}
}
