package timer

import "fmt"

// Operation names carried by PersistenceError. They mirror the Store methods
// so operators can tell which call failed from the error alone.
const (
	OpSave          = "save"
	OpFind          = "find"
	OpFindScheduled = "findScheduled"
	OpFindDue       = "findDue"
	OpMarkFired     = "markFired"
	OpDelete        = "delete"
)

// PersistenceError reports a storage adapter failure. Op names the Store
// operation that failed; Err is the adapter's underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("timer persistence %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *PersistenceError) Unwrap() error { return e.Err }
