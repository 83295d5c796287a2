package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dev.c0redev.viewlink/internal/stats"
)

func TestTrackerRecordDecode(t *testing.T) {
	tr := &tracker{}
	now := time.Now()

	tr.RecordDecode(now.Add(-2*time.Second), 200_000, 0.010)
	tr.RecordDecode(now.Add(-1*time.Second), 400_000, 0.020)

	in := tr.Inputs(now, 1_000_000, 100_000)
	require.Len(t, in.DecodeSpeed, 2)
	require.Equal(t, 200_000.0, in.DecodeSpeed[0].Size)
	require.Equal(t, 0.010, in.DecodeSpeed[0].Elapsed)

	// The samples must feed the weighted average, which skips anything
	// without an elapsed time.
	avg, recent, ok := stats.TimeSizeWeightedAverage(in.DecodeSpeed, now, 1)
	require.True(t, ok)
	require.Greater(t, avg, 0.0)
	require.Greater(t, recent, 0.0)
}

func TestTrackerRecordDecodeRejectsNonPositiveElapsed(t *testing.T) {
	tr := &tracker{}
	now := time.Now()

	tr.RecordDecode(now, 100_000, 0)
	tr.RecordDecode(now, 100_000, -0.5)

	in := tr.Inputs(now, 0, 0)
	require.Empty(t, in.DecodeSpeed)
}

func TestTrackerBoundsSeries(t *testing.T) {
	tr := &tracker{}
	now := time.Now()
	for i := 0; i < sampleLimit+25; i++ {
		tr.RecordClientLatency(now, 0.05)
		tr.RecordDecode(now, 1000, 0.001)
	}
	in := tr.Inputs(now, 0, 0)
	require.Len(t, in.ClientLatency, sampleLimit)
	require.Len(t, in.DecodeSpeed, sampleLimit)
}
