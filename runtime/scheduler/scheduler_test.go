package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

// t0 is the fixed wall-clock origin shared by the scheduler tests.
var t0 = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start.UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStore wraps a timer.Store and injects faults per operation.
type failingStore struct {
	timer.Store

	mu           sync.Mutex
	findDueErr   error
	saveErr      error
	markFiredErr map[timer.Key]error
}

func (s *failingStore) Save(ctx context.Context, t timer.Timer) error {
	s.mu.Lock()
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Save(ctx, t)
}

func (s *failingStore) FindDue(ctx context.Context, now time.Time) ([]timer.Timer, error) {
	s.mu.Lock()
	err := s.findDueErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.FindDue(ctx, now)
}

func (s *failingStore) MarkFired(ctx context.Context, key timer.Key, reachedAt time.Time) error {
	s.mu.Lock()
	err := s.markFiredErr[key]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.MarkFired(ctx, key, reachedAt)
}

// countingStore wraps a timer.Store and counts due scans so tests can observe
// the poll cadence.
type countingStore struct {
	timer.Store

	mu    sync.Mutex
	scans int
}

func (s *countingStore) FindDue(ctx context.Context, now time.Time) ([]timer.Timer, error) {
	s.mu.Lock()
	s.scans++
	s.mu.Unlock()
	return s.Store.FindDue(ctx, now)
}

func (s *countingStore) scanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// failingPublisher wraps a bus.Publisher and rejects batches that contain an
// envelope the reject predicate matches.
type failingPublisher struct {
	inner bus.Publisher

	mu     sync.Mutex
	reject func(env bus.Envelope) error
}

func (p *failingPublisher) Publish(ctx context.Context, envelopes []bus.Envelope) error {
	p.mu.Lock()
	reject := p.reject
	p.mu.Unlock()
	if reject != nil {
		for _, env := range envelopes {
			if err := reject(env); err != nil {
				return err
			}
		}
	}
	return p.inner.Publish(ctx, envelopes)
}

func (p *failingPublisher) setReject(reject func(env bus.Envelope) error) {
	p.mu.Lock()
	p.reject = reject
	p.mu.Unlock()
}

// newKey returns a fresh (tenant, service call) identity.
func newKey(t *testing.T) timer.Key {
	t.Helper()
	tenant, err := timer.NewTenantID()
	require.NoError(t, err)
	call, err := timer.NewServiceCallID()
	require.NoError(t, err)
	return timer.Key{TenantID: tenant, ServiceCallID: call}
}
