package mongo

import (
	"context"
	"errors"
	"time"

	clientsmongo "github.com/suddenlyGiovanni/event-service-agent-kata-sub001/features/timer/mongo/clients/mongo"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

// Store implements timer.Store by delegating to the Mongo client. Client
// failures are reported as *timer.PersistenceError tagged with the failed
// operation.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Store using the provided client.
func NewStore(client clientsmongo.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: client}, nil
}

// Save upserts the timer under its key.
func (s *Store) Save(ctx context.Context, t timer.Timer) error {
	if err := s.client.UpsertTimer(ctx, t); err != nil {
		return &timer.PersistenceError{Op: timer.OpSave, Err: err}
	}
	return nil
}

// Find returns the timer stored under key in any state, or nil when absent.
func (s *Store) Find(ctx context.Context, key timer.Key) (*timer.Timer, error) {
	t, err := s.client.LoadTimer(ctx, key)
	if err != nil {
		return nil, &timer.PersistenceError{Op: timer.OpFind, Err: err}
	}
	return t, nil
}

// FindScheduled returns the timer under key while it is still scheduled.
func (s *Store) FindScheduled(ctx context.Context, key timer.Key) (*timer.Timer, error) {
	t, err := s.client.LoadScheduledTimer(ctx, key)
	if err != nil {
		return nil, &timer.PersistenceError{Op: timer.OpFindScheduled, Err: err}
	}
	return t, nil
}

// FindDue returns scheduled timers with DueAt <= now across all tenants.
func (s *Store) FindDue(ctx context.Context, now time.Time) ([]timer.Timer, error) {
	due, err := s.client.ListDueTimers(ctx, now)
	if err != nil {
		return nil, &timer.PersistenceError{Op: timer.OpFindDue, Err: err}
	}
	return due, nil
}

// MarkFired transitions the timer under key from scheduled to reached.
func (s *Store) MarkFired(ctx context.Context, key timer.Key, reachedAt time.Time) error {
	if err := s.client.MarkTimerFired(ctx, key, reachedAt); err != nil {
		return &timer.PersistenceError{Op: timer.OpMarkFired, Err: err}
	}
	return nil
}

// Delete removes the timer under key.
func (s *Store) Delete(ctx context.Context, key timer.Key) error {
	if err := s.client.DeleteTimer(ctx, key); err != nil {
		return &timer.PersistenceError{Op: timer.OpDelete, Err: err}
	}
	return nil
}
