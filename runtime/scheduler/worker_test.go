package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus"
	businmem "github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus/inmem"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/scheduler"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
	storeinmem "github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer/inmem"
)

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func TestWorkerRunsFirstPassImmediately(t *testing.T) {
	store := storeinmem.New()
	b := businmem.New()
	svc := scheduler.New(store, b, scheduler.WithClock(newFakeClock(t0).Now))

	key := newKey(t)
	schedule(t, store, key, t0.Add(-time.Second), nil)

	// A long interval proves the first pass does not wait for a tick.
	w := scheduler.NewWorker(svc, time.Hour)
	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	eventually(t, func() bool {
		return len(b.Events(bus.TopicTimerEvents)) == 1
	}, "first pass did not run immediately")
}

func TestWorkerScansOncePerIntervalAcrossWindow(t *testing.T) {
	store := &countingStore{Store: storeinmem.New()}
	svc := scheduler.New(store, businmem.New(), scheduler.WithClock(newFakeClock(t0).Now))

	w := scheduler.NewWorker(svc, 50*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	time.Sleep(225 * time.Millisecond)
	require.NoError(t, w.Stop())

	// One immediate pass plus one per elapsed interval: 225ms at a 50ms
	// cadence is five scans. Allow one of slack either way for ticker skew
	// under a loaded test runner.
	got := store.scanCount()
	require.GreaterOrEqual(t, got, 4, "worker scanned too rarely: %d scans", got)
	require.LessOrEqual(t, got, 6, "worker scanned too often: %d scans", got)
}

func TestWorkerFiresTimerThatBecomesDue(t *testing.T) {
	store := storeinmem.New()
	b := businmem.New()
	clock := newFakeClock(t0)
	svc := scheduler.New(store, b, scheduler.WithClock(clock.Now))

	key := newKey(t)
	schedule(t, store, key, t0.Add(time.Minute), nil)

	w := scheduler.NewWorker(svc, 5*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	// Nothing fires while the timer is in the future.
	time.Sleep(30 * time.Millisecond)
	require.Empty(t, b.Events(bus.TopicTimerEvents))

	clock.Advance(2 * time.Minute)
	eventually(t, func() bool {
		return len(b.Events(bus.TopicTimerEvents)) == 1
	}, "worker did not fire the due timer")
}

func TestWorkerKeepsTickingThroughKnownFailures(t *testing.T) {
	inner := businmem.New()
	pub := &failingPublisher{inner: inner}
	pub.setReject(func(bus.Envelope) error {
		return &bus.PublishError{Err: context.DeadlineExceeded}
	})
	store := storeinmem.New()
	svc := scheduler.New(store, pub, scheduler.WithClock(newFakeClock(t0).Now))

	key := newKey(t)
	schedule(t, store, key, t0.Add(-time.Second), nil)

	w := scheduler.NewWorker(svc, 5*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))

	// Let a few failing passes run, then heal the publisher.
	time.Sleep(30 * time.Millisecond)
	pub.setReject(nil)
	eventually(t, func() bool {
		return len(inner.Events(bus.TopicTimerEvents)) == 1
	}, "worker did not recover after publisher healed")

	require.NoError(t, w.Stop())
}

func TestWorkerKeepsTickingThroughScanFailures(t *testing.T) {
	store := &failingStore{Store: storeinmem.New()}
	store.findDueErr = &timer.PersistenceError{Op: timer.OpFindDue, Err: context.DeadlineExceeded}
	b := businmem.New()
	svc := scheduler.New(store, b, scheduler.WithClock(newFakeClock(t0).Now))

	key := newKey(t)
	schedule(t, store, key, t0.Add(-time.Second), nil)

	w := scheduler.NewWorker(svc, 5*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))

	time.Sleep(30 * time.Millisecond)
	store.mu.Lock()
	store.findDueErr = nil
	store.mu.Unlock()

	eventually(t, func() bool {
		return len(b.Events(bus.TopicTimerEvents)) == 1
	}, "worker did not recover after store healed")

	require.NoError(t, w.Stop())
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	svc := scheduler.New(storeinmem.New(), businmem.New(), scheduler.WithClock(newFakeClock(t0).Now))
	w := scheduler.NewWorker(svc, 5*time.Millisecond)

	require.NoError(t, w.Stop()) // never started

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop()) // already stopped
}

func TestWorkerRejectsDoubleStart(t *testing.T) {
	svc := scheduler.New(storeinmem.New(), businmem.New(), scheduler.WithClock(newFakeClock(t0).Now))
	w := scheduler.NewWorker(svc, 5*time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	require.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())

	// A stopped worker can start again.
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}

func TestWorkerStopsOnContextCancellation(t *testing.T) {
	store := storeinmem.New()
	b := businmem.New()
	svc := scheduler.New(store, b, scheduler.WithClock(newFakeClock(t0).Now))

	ctx, cancel := context.WithCancel(context.Background())
	w := scheduler.NewWorker(svc, 5*time.Millisecond)
	require.NoError(t, w.Start(ctx))
	cancel()

	require.NoError(t, w.Stop())
}
