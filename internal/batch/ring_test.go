package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRingEvictsOldest(t *testing.T) {
	r := newRing(4)
	base := time.Now()
	for i := 0; i < 6; i++ {
		r.Append(base.Add(time.Duration(i)*time.Second), float64(i))
	}
	require.Equal(t, 4, r.Len())
	vals := r.Values()
	require.Len(t, vals, 4)
	require.Equal(t, 2.0, vals[0].V)
	require.Equal(t, 5.0, vals[3].V)
}

func TestRingPartialFill(t *testing.T) {
	r := newRing(8)
	base := time.Now()
	r.Append(base, 1)
	r.Append(base, 2)
	require.Equal(t, 2, r.Len())
	vals := r.Values()
	require.Equal(t, []float64{1, 2}, []float64{vals[0].V, vals[1].V})
}

func TestRingCloneIndependent(t *testing.T) {
	r := newRing(4)
	r.Append(time.Now(), 1)
	c := r.clone()
	r.Append(time.Now(), 2)
	require.Equal(t, 1, c.Len())
	require.Equal(t, 2, r.Len())
}
