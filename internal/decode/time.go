package decode

import (
	"encoding/binary"
	"math"
	"time"
)

// DurToSamples converts a duration to a total sample count across all
// channels: sample_rate * channels * d_micros / 1_000_000.
func DurToSamples(d time.Duration, sampleRate, channels int) int64 {
	micros := d.Microseconds()
	return int64(sampleRate) * int64(channels) * micros / 1_000_000
}

// SamplesToDur is the inverse of DurToSamples.
func SamplesToDur(samples int64, sampleRate, channels int) time.Duration {
	if sampleRate == 0 || channels == 0 {
		return 0
	}
	micros := samples * 1_000_000 / (int64(sampleRate) * int64(channels))
	return time.Duration(micros) * time.Microsecond
}

// encodeFloatsLE appends the little-endian 32-bit float byte encoding of in
// to out, matching the wire format of fill_raw_buffer ("the
// reimplementation may choose a safe byte encode instead" of reinterpreting
// the slice).
func encodeFloatsLE(out *[]byte, in []float32) {
	start := len(*out)
	*out = append(*out, make([]byte, len(in)*4)...)
	buf := (*out)[start:]
	for i, f := range in {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}
