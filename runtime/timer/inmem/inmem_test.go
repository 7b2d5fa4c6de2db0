package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newKey(t *testing.T) timer.Key {
	t.Helper()
	tenant, err := timer.NewTenantID()
	require.NoError(t, err)
	call, err := timer.NewServiceCallID()
	require.NoError(t, err)
	return timer.Key{TenantID: tenant, ServiceCallID: call}
}

func TestSaveUpsertsLatestFields(t *testing.T) {
	ctx := context.Background()
	store := New()
	key := newKey(t)
	corr, err := timer.NewCorrelationID()
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0.Add(5*time.Minute), t0, &corr)))
	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0.Add(9*time.Minute), t0.Add(time.Second), nil)))

	got, err := store.Find(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.DueAt.Equal(t0.Add(9*time.Minute)), "second save wins on due moment")
	require.Nil(t, got.CorrelationID, "second save drops the correlation id")
	require.True(t, got.IsScheduled())

	// Exactly one row per key: the second save replaced, not duplicated.
	due, err := store.FindDue(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestSaveReArmsReachedRow(t *testing.T) {
	ctx := context.Background()
	store := New()
	key := newKey(t)

	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0, t0, nil)))
	require.NoError(t, store.MarkFired(ctx, key, t0.Add(time.Minute)))
	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0.Add(10*time.Minute), t0.Add(2*time.Minute), nil)))

	got, err := store.FindScheduled(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Nil(t, got.ReachedAt)
}

func TestFindIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	store := New()
	keyA := newKey(t)
	keyB := newKey(t)
	keyB.ServiceCallID = keyA.ServiceCallID // same call id, different tenant

	require.NoError(t, store.Save(ctx, timer.Schedule(keyB, t0, t0, nil)))

	got, err := store.Find(ctx, keyA)
	require.NoError(t, err)
	require.Nil(t, got, "tenant A must not see tenant B's timer")

	got, err = store.Find(ctx, keyB)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestFindScheduledExcludesReached(t *testing.T) {
	ctx := context.Background()
	store := New()
	key := newKey(t)

	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0, t0, nil)))
	got, err := store.FindScheduled(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, store.MarkFired(ctx, key, t0.Add(time.Second)))
	got, err = store.FindScheduled(ctx, key)
	require.NoError(t, err)
	require.Nil(t, got)

	// Find still sees the reached row.
	any, err := store.Find(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, any)
	require.True(t, any.IsReached())
}

func TestFindDueInclusiveBoundaryAndOrder(t *testing.T) {
	ctx := context.Background()
	store := New()

	exact := newKey(t)
	early := newKey(t)
	late := newKey(t)
	require.NoError(t, store.Save(ctx, timer.Schedule(exact, t0, t0.Add(-time.Hour), nil)))
	require.NoError(t, store.Save(ctx, timer.Schedule(early, t0.Add(-time.Minute), t0.Add(-time.Hour), nil)))
	require.NoError(t, store.Save(ctx, timer.Schedule(late, t0.Add(time.Millisecond), t0.Add(-time.Hour), nil)))

	due, err := store.FindDue(ctx, t0)
	require.NoError(t, err)
	require.Len(t, due, 2, "dueAt == now is due, dueAt just after now is not")
	require.Equal(t, early, due[0].Key())
	require.Equal(t, exact, due[1].Key())
}

func TestFindDueSpansTenants(t *testing.T) {
	ctx := context.Background()
	store := New()
	keyA := newKey(t)
	keyB := newKey(t)

	require.NoError(t, store.Save(ctx, timer.Schedule(keyA, t0, t0, nil)))
	require.NoError(t, store.Save(ctx, timer.Schedule(keyB, t0, t0, nil)))

	due, err := store.FindDue(ctx, t0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	tenants := map[timer.TenantID]bool{due[0].TenantID: true, due[1].TenantID: true}
	require.True(t, tenants[keyA.TenantID])
	require.True(t, tenants[keyB.TenantID])
}

func TestFindDueSkipsReached(t *testing.T) {
	ctx := context.Background()
	store := New()
	key := newKey(t)

	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0, t0, nil)))
	require.NoError(t, store.MarkFired(ctx, key, t0))

	due, err := store.FindDue(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestMarkFiredKeepsFirstReachedAt(t *testing.T) {
	ctx := context.Background()
	store := New()
	key := newKey(t)
	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0, t0, nil)))

	first := t0.Add(time.Minute)
	second := t0.Add(2 * time.Minute)
	require.NoError(t, store.MarkFired(ctx, key, first))
	require.NoError(t, store.MarkFired(ctx, key, second))

	got, err := store.Find(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ReachedAt)
	require.True(t, got.ReachedAt.Equal(first))
}

func TestMarkFiredMissingKeyIsNoop(t *testing.T) {
	store := New()
	require.NoError(t, store.MarkFired(context.Background(), newKey(t), t0))
}

func TestMarkFiredPreservesCorrelation(t *testing.T) {
	ctx := context.Background()
	store := New()
	key := newKey(t)
	corr, err := timer.NewCorrelationID()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0, t0, &corr)))

	require.NoError(t, store.MarkFired(ctx, key, t0.Add(time.Second)))

	got, err := store.Find(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got.CorrelationID)
	require.Equal(t, corr, *got.CorrelationID)
}

func TestDeleteRemovesRow(t *testing.T) {
	ctx := context.Background()
	store := New()
	key := newKey(t)
	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0, t0, nil)))

	require.NoError(t, store.Delete(ctx, key))
	got, err := store.Find(ctx, key)
	require.NoError(t, err)
	require.Nil(t, got)

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, key))
}

func TestReturnedTimersAreCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	key := newKey(t)
	corr, err := timer.NewCorrelationID()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, timer.Schedule(key, t0, t0, &corr)))

	got, err := store.Find(ctx, key)
	require.NoError(t, err)
	*got.CorrelationID = "mutated"

	again, err := store.Find(ctx, key)
	require.NoError(t, err)
	require.Equal(t, corr, *again.CorrelationID, "mutating a snapshot must not touch stored state")
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.Save(ctx, timer.Schedule(newKey(t), t0, t0, nil)))

	store.Reset()

	due, err := store.FindDue(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, due)
}

// TestUpsertProperty checks that however many times a key is saved, exactly
// one row remains and it carries the last written due moment.
func TestUpsertProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("last save wins and rows never duplicate", prop.ForAll(
		func(offsets []int) bool {
			if len(offsets) == 0 {
				return true
			}
			ctx := context.Background()
			store := New()
			tenant, err := timer.NewTenantID()
			if err != nil {
				return false
			}
			call, err := timer.NewServiceCallID()
			if err != nil {
				return false
			}
			key := timer.Key{TenantID: tenant, ServiceCallID: call}
			for _, off := range offsets {
				due := t0.Add(time.Duration(off) * time.Second)
				if err := store.Save(ctx, timer.Schedule(key, due, t0, nil)); err != nil {
					return false
				}
			}
			got, err := store.Find(ctx, key)
			if err != nil || got == nil {
				return false
			}
			want := t0.Add(time.Duration(offsets[len(offsets)-1]) * time.Second)
			due, err := store.FindDue(ctx, t0.Add(24*time.Hour))
			if err != nil {
				return false
			}
			return got.DueAt.Equal(want) && len(due) == 1
		},
		gen.SliceOf(gen.IntRange(-3600, 3600)),
	))

	properties.TestingRun(t)
}
