package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) Key {
	t.Helper()
	tenant, err := NewTenantID()
	require.NoError(t, err)
	call, err := NewServiceCallID()
	require.NoError(t, err)
	return Key{TenantID: tenant, ServiceCallID: call}
}

func TestScheduleBuildsScheduledVariant(t *testing.T) {
	key := testKey(t)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	registered := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	corr, err := NewCorrelationID()
	require.NoError(t, err)

	tm := Schedule(key, due, registered, &corr)

	require.Equal(t, key.TenantID, tm.TenantID)
	require.Equal(t, key.ServiceCallID, tm.ServiceCallID)
	require.Equal(t, StateScheduled, tm.State)
	require.True(t, tm.IsScheduled())
	require.False(t, tm.IsReached())
	require.Nil(t, tm.ReachedAt)
	require.Equal(t, time.UTC, tm.DueAt.Location())
	require.True(t, tm.DueAt.Equal(due))
	require.True(t, tm.RegisteredAt.Equal(registered))
	require.NotNil(t, tm.CorrelationID)
	require.Equal(t, corr, *tm.CorrelationID)
	require.Equal(t, key, tm.Key())
}

func TestScheduleCopiesCorrelationID(t *testing.T) {
	key := testKey(t)
	corr, err := NewCorrelationID()
	require.NoError(t, err)
	want := corr

	tm := Schedule(key, time.Now(), time.Now(), &corr)
	corr = "mutated"

	require.Equal(t, want, *tm.CorrelationID)
}

func TestScheduleWithoutCorrelation(t *testing.T) {
	tm := Schedule(testKey(t), time.Now(), time.Now(), nil)
	require.Nil(t, tm.CorrelationID)
}

func TestMarkReachedTransitions(t *testing.T) {
	key := testKey(t)
	registered := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	tm := Schedule(key, registered.Add(5*time.Minute), registered, nil)

	reachedAt := registered.Add(6 * time.Minute)
	fired := tm.MarkReached(reachedAt)

	require.Equal(t, StateReached, fired.State)
	require.True(t, fired.IsReached())
	require.False(t, fired.IsScheduled())
	require.NotNil(t, fired.ReachedAt)
	require.True(t, fired.ReachedAt.Equal(reachedAt))
	// The original snapshot is untouched.
	require.Equal(t, StateScheduled, tm.State)
	require.Nil(t, tm.ReachedAt)
}

func TestMarkReachedIsIdempotent(t *testing.T) {
	key := testKey(t)
	registered := time.Now().UTC()
	tm := Schedule(key, registered, registered, nil)

	first := registered.Add(time.Minute)
	second := registered.Add(2 * time.Minute)
	fired := tm.MarkReached(first).MarkReached(second)

	require.True(t, fired.ReachedAt.Equal(first), "second mark must keep the first reached moment")
}

func TestMarkReachedPreservesCorrelation(t *testing.T) {
	key := testKey(t)
	corr, err := NewCorrelationID()
	require.NoError(t, err)
	tm := Schedule(key, time.Now(), time.Now(), &corr)

	fired := tm.MarkReached(time.Now())

	require.NotNil(t, fired.CorrelationID)
	require.Equal(t, corr, *fired.CorrelationID)
}

func TestIsDueBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		dueAt time.Time
		want  bool
	}{
		{"before now", now.Add(-time.Second), true},
		{"exactly now", now, true},
		{"after now", now.Add(time.Millisecond), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tm := Schedule(testKey(t), tc.dueAt, now.Add(-time.Hour), nil)
			require.Equal(t, tc.want, tm.IsDue(now))
		})
	}
}

func TestPastDatedTimersAreLegal(t *testing.T) {
	registered := time.Now().UTC()
	tm := Schedule(testKey(t), registered.Add(-time.Hour), registered, nil)
	require.True(t, tm.IsDue(registered))
}
