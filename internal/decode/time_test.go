package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurSamplesRoundTrip(t *testing.T) {
	const sampleRate, channels = 44100, 2

	// Pick a sample count that divides evenly by sampleRate*channels so the
	// round trip is exact, per the spec's round-trip law.
	samples := int64(sampleRate) * int64(channels) * 3 // exactly 3 seconds

	d := SamplesToDur(samples, sampleRate, channels)
	assert.Equal(t, samples, DurToSamples(d, sampleRate, channels))
}

func TestDurToSamples(t *testing.T) {
	got := DurToSamples(500*time.Millisecond, 44100, 2)
	assert.Equal(t, int64(44100), got)
}

func TestSamplesToDurZeroGuards(t *testing.T) {
	assert.Equal(t, time.Duration(0), SamplesToDur(100, 0, 2))
	assert.Equal(t, time.Duration(0), SamplesToDur(100, 44100, 0))
}
