package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bimaudit/bimaudit/internal/session"
)

func TestTracker_Empty(t *testing.T) {
	tracker := session.NewTracker()
	_, ok := tracker.Current()
	require.False(t, ok)
}

func TestTracker_BeginAndCurrent(t *testing.T) {
	tracker := session.NewTracker()
	h := tracker.Begin("s1")
	require.Equal(t, "s1", h.ID)

	current, ok := tracker.Current()
	require.True(t, ok)
	require.Equal(t, "s1", current.ID)
	require.False(t, tracker.Stale(h))
	require.False(t, tracker.Stale(current))
}

func TestTracker_NewSessionSupersedesOld(t *testing.T) {
	tracker := session.NewTracker()
	old := tracker.Begin("s1")
	fresh := tracker.Begin("s2")

	require.True(t, tracker.Stale(old))
	require.False(t, tracker.Stale(fresh))
}

func TestTracker_SameIDStillSupersedes(t *testing.T) {
	// Re-uploading into the same server session invalidates data loaded for
	// the previous file even though the id is unchanged.
	tracker := session.NewTracker()
	first := tracker.Begin("s1")
	second := tracker.Begin("s1")

	require.True(t, tracker.Stale(first))
	require.False(t, tracker.Stale(second))
}
