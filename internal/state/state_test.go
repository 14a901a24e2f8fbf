package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeGainBounds(t *testing.T) {
	cases := []struct {
		name    string
		l, r    float64
		wantL   float32
		wantR   float32
	}{
		{"mid scale", 0.25, 0.64, 0.5, 0.8},
		{"clamps above one", 1.5, 2.0, 1, 1},
		{"clamps below zero", -1, -0.5, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := NewVolume()
			v.Set(tc.l, tc.r)
			l, r := v.Get()
			assert.InDelta(t, tc.wantL, l, 1e-6)
			assert.InDelta(t, tc.wantR, r, 1e-6)
			assert.GreaterOrEqual(t, l, float32(0))
			assert.LessOrEqual(t, l, float32(1))
			assert.GreaterOrEqual(t, r, float32(0))
			assert.LessOrEqual(t, r, float32(1))
		})
	}
}

func TestVolumeTryGetFallback(t *testing.T) {
	v := &Volume{}
	l, r := v.TryGet()
	assert.Equal(t, float32(0.5), l)
	assert.Equal(t, float32(0.5), r)
}

func TestSkipTakeOnceSemantics(t *testing.T) {
	s := &Skip{}
	s.Store(200 * time.Millisecond)
	s.Store(500 * time.Millisecond)

	got := s.TakeOnce()
	require.Equal(t, 500*time.Millisecond, got)

	// Reading again without an intervening Store yields zero.
	assert.Equal(t, time.Duration(0), s.TakeOnce())
}

func TestStatusDataResetZeroesElapsed(t *testing.T) {
	s := NewStatusData()
	s.SetElapsed(3 * time.Second)
	s.SetOutputBuffer(100, 50)

	snap := s.Snapshot()
	require.Equal(t, int64(3000), snap.ElapsedMs)

	s.Reset()
	snap = s.Snapshot()
	assert.Equal(t, int64(0), snap.ElapsedMs)
	assert.Equal(t, time.Duration(0), snap.Elapsed)
	assert.Equal(t, uint32(0), snap.OutputFull)
}

func TestStatusDataTimestampEcho(t *testing.T) {
	s := NewStatusData()
	s.SetTimestampEcho(123456)
	assert.Equal(t, uint32(123456), s.Snapshot().TimestampRaw)
}
