// Package inmem provides an in-memory implementation of timer.Store for
// testing and local development. Timers are held in a map keyed by timer.Key
// with no persistence across process restarts. Use this for unit tests or
// prototyping; production deployments should use a durable backend such as
// features/timer/mongo (MongoDB-backed implementation).
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

// Store implements timer.Store in memory with no durability. All operations
// are thread-safe via sync.RWMutex. Timers are defensively copied on read and
// write so callers can never mutate stored state through shared pointers.
type Store struct {
	mu     sync.RWMutex
	timers map[timer.Key]timer.Timer
}

// New constructs an empty Store. The returned store is immediately ready for
// use and requires no additional configuration.
func New() *Store {
	return &Store{timers: make(map[timer.Key]timer.Timer)}
}

// Save upserts the timer under its key. A second save with the same key
// replaces the stored row entirely, so DueAt, RegisteredAt and CorrelationID
// all take the later call's values and the row is re-armed in the state the
// aggregate carries.
//
// This method is thread-safe and never returns an error (the error return
// exists only to satisfy the timer.Store interface).
func (s *Store) Save(_ context.Context, t timer.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[t.Key()] = copyTimer(t)
	return nil
}

// Find returns the timer stored under key in any state, or nil when the key
// is absent. Lookups are tenant-scoped: the same service call id under a
// different tenant is a different key.
//
// This method is thread-safe and never returns an error.
func (s *Store) Find(_ context.Context, key timer.Key) (*timer.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.timers[key]
	if !ok {
		return nil, nil
	}
	out := copyTimer(t)
	return &out, nil
}

// FindScheduled returns the timer stored under key only while it is still
// scheduled; reached timers and absent keys both yield nil.
//
// This method is thread-safe and never returns an error.
func (s *Store) FindScheduled(_ context.Context, key timer.Key) (*timer.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.timers[key]
	if !ok || !t.IsScheduled() {
		return nil, nil
	}
	out := copyTimer(t)
	return &out, nil
}

// FindDue returns all scheduled timers with DueAt <= now across every tenant,
// ordered by DueAt ascending. Ties order by key so repeated scans are
// deterministic.
//
// This method is thread-safe and never returns an error.
func (s *Store) FindDue(_ context.Context, now time.Time) ([]timer.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []timer.Timer
	for _, t := range s.timers {
		if t.IsScheduled() && t.IsDue(now) {
			due = append(due, copyTimer(t))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].DueAt.Before(due[j].DueAt)
		}
		return due[i].Key().String() < due[j].Key().String()
	})
	return due, nil
}

// MarkFired transitions the timer under key from scheduled to reached. A
// missing key is a no-op, and marking an already reached timer keeps its
// original ReachedAt, so the operation is safe to retry.
//
// This method is thread-safe and never returns an error.
func (s *Store) MarkFired(_ context.Context, key timer.Key, reachedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[key]
	if !ok || t.IsReached() {
		return nil
	}
	s.timers[key] = t.MarkReached(reachedAt)
	return nil
}

// Delete removes the timer under key. Absent keys are a no-op.
//
// This method is thread-safe and never returns an error.
func (s *Store) Delete(_ context.Context, key timer.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, key)
	return nil
}

// Reset clears all stored timers, returning the store to its empty state.
// Useful in tests to ensure isolation between cases; not part of the
// timer.Store interface.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = make(map[timer.Key]timer.Timer)
}

// copyTimer deep-copies the aggregate so stored rows and returned snapshots
// never share pointers with caller-held values.
func copyTimer(t timer.Timer) timer.Timer {
	if t.CorrelationID != nil {
		c := *t.CorrelationID
		t.CorrelationID = &c
	}
	if t.ReachedAt != nil {
		at := *t.ReachedAt
		t.ReachedAt = &at
	}
	return t
}
