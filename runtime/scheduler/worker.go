package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

// Worker drives PollDueTimers at a fixed cadence. One pass runs immediately on
// Start, then one per tick. Passes never overlap: the loop is single-threaded
// and a slow pass simply delays the next tick's work.
//
// Known failure modes of a pass (partial batch failures, store scan errors)
// are logged at debug level and the loop keeps ticking; the data they concern
// stays scheduled and the next pass retries it. Any other error stops the
// worker and becomes its terminal error.
type Worker struct {
	service  *Service
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewWorker constructs a polling worker over the service. A non-positive
// interval falls back to the default five seconds.
func NewWorker(service *Service, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{service: service, interval: interval}
}

// Start launches the polling loop. It returns immediately; the loop runs until
// Stop is called, ctx is done, or a pass fails with an unrecognized error.
// Starting a running worker is an error.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return errors.New("worker already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.err = nil

	go w.run(ctx)
	return nil
}

// Stop halts the loop and waits for the in-flight pass to finish. It returns
// the terminal error if the loop died on its own, nil otherwise. Stopping a
// stopped or never-started worker is a no-op.
func (w *Worker) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	<-done

	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.err
	w.cancel, w.done, w.err = nil, nil, nil
	return err
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	if err := w.pass(ctx); err != nil {
		w.fail(err)
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.pass(ctx); err != nil {
				w.fail(err)
				return
			}
		}
	}
}

// pass runs one poll and classifies its outcome. Known operational failures
// return nil so the loop continues.
func (w *Worker) pass(ctx context.Context) error {
	err := w.service.PollDueTimers(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}

	var batchErr *BatchProcessingError
	if errors.As(err, &batchErr) {
		w.service.logger.Debug(ctx, "poll pass had failures",
			"failed", batchErr.FailedCount,
			"total", batchErr.TotalCount,
			"error", err.Error(),
		)
		return nil
	}
	var perr *timer.PersistenceError
	if errors.As(err, &perr) {
		w.service.logger.Debug(ctx, "poll pass could not scan store",
			"op", perr.Op,
			"error", err.Error(),
		)
		return nil
	}

	return fmt.Errorf("poll worker: %w", err)
}

func (w *Worker) fail(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
	w.service.logger.Error(context.Background(), "poll worker stopped", "error", err.Error())
}
