// Package mongo provides a MongoDB-backed implementation of the timer store.
// Build the low-level client via features/timer/mongo/clients/mongo and pass
// it to NewStore so the scheduling workflows can persist timers durably.
package mongo
