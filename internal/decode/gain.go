package decode

import "github.com/vibeclient/vibe/internal/state"

// applyGain scales interleaved samples by the global per-channel VOLUME
// cell: left samples by the left gain, right samples by the right gain.
// Only stereo buffers are scaled; buffers with any other channel count
// (mono, multichannel) pass through unscaled.
func applyGain(samples []float32, channels int, vol *state.Volume) {
	if channels != 2 {
		return
	}
	l, r := vol.TryGet()
	for i := 0; i+1 < len(samples); i += 2 {
		samples[i] *= l
		samples[i+1] *= r
	}
}
