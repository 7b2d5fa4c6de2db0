package scheduler

import "fmt"

// BatchProcessingError reports a poll pass in which some timers failed to fire
// while others succeeded. The pass never aborts on a per-timer failure; the
// failed timers stay scheduled and the next pass picks them up again.
type BatchProcessingError struct {
	// FailedCount is the number of timers that could not be fired.
	FailedCount int
	// TotalCount is the number of due timers the pass attempted.
	TotalCount int
	// Errs holds the per-timer causes, in batch order.
	Errs []error
}

// Error implements error.
func (e *BatchProcessingError) Error() string {
	return fmt.Sprintf("poll batch: %d of %d timers failed", e.FailedCount, e.TotalCount)
}

// Unwrap exposes the per-timer causes to errors.Is and errors.As.
func (e *BatchProcessingError) Unwrap() []error { return e.Errs }
