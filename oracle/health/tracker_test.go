package health

import (
	"testing"
	"time"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/stretchr/testify/require"
)

func TestBackoffLadder(t *testing.T) {
	// Mirrors spec scenario 5: base=5, max=300 -> 5,10,20,40,80,160,300,300,...
	tr := NewTracker([]types.SourceName{"binance"}, 5*time.Second, 300*time.Second)
	now := time.Unix(0, 0)

	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		160 * time.Second,
		300 * time.Second,
		300 * time.Second,
	}

	for i, w := range want {
		got := tr.RecordFailure("binance", now)
		require.Equalf(t, w, got, "failure #%d", i+1)
	}
}

func TestRecordSuccessResetsBackoff(t *testing.T) {
	tr := NewTracker([]types.SourceName{"binance"}, 5*time.Second, 300*time.Second)
	now := time.Unix(1000, 0)

	tr.RecordFailure("binance", now)
	require.False(t, tr.IsActive("binance", now))

	tr.RecordSuccess("binance")
	require.True(t, tr.IsActive("binance", now), "success must transition to active immediately")

	st, ok := tr.Status("binance")
	require.True(t, ok)
	require.Zero(t, st.ConsecutiveFailures)
}

func TestActiveSourcesPreservesOrderAndExcludesBackoff(t *testing.T) {
	tr := NewTracker([]types.SourceName{"a", "b", "c"}, time.Second, 10*time.Second)
	now := time.Unix(0, 0)

	tr.RecordFailure("b", now)

	active := tr.ActiveSources(now)
	require.Equal(t, []types.SourceName{"a", "c"}, active)
}

func TestBackoffRemaining(t *testing.T) {
	tr := NewTracker([]types.SourceName{"a"}, 5*time.Second, 300*time.Second)
	now := time.Unix(0, 0)

	require.Zero(t, tr.BackoffRemaining("a", now))

	tr.RecordFailure("a", now)
	require.Equal(t, 5*time.Second, tr.BackoffRemaining("a", now))
	require.Zero(t, tr.BackoffRemaining("a", now.Add(5*time.Second)))
}

func TestResetAll(t *testing.T) {
	tr := NewTracker([]types.SourceName{"a", "b"}, time.Second, 10*time.Second)
	now := time.Unix(0, 0)

	tr.RecordFailure("a", now)
	tr.RecordFailure("b", now)
	tr.ResetAll()

	require.True(t, tr.IsActive("a", now))
	require.True(t, tr.IsActive("b", now))
}
