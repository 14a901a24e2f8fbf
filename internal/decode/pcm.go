package decode

import (
	"encoding/binary"
	"io"
	"math"
)

func init() {
	registry["audio/x-adpcm"] = probePCM
}

// pcmTrack reads raw signed-16-bit little-endian PCM and converts to F32.
// There is no container to probe: PCM frames begin immediately after the
// stripped HTTP headers.
type pcmTrack struct {
	r        io.Reader
	channels int
	buf      [4096]byte
}

func probePCM(r *countingReader, rateOverride, channelsOverride int, selfDescribing bool) (track, AudioSpec, error) {
	spec := AudioSpec{SampleRate: rateOverride, Channels: channelsOverride}
	if spec.SampleRate <= 0 {
		spec.SampleRate = 44100
	}
	if spec.Channels <= 0 {
		spec.Channels = 2
	}
	return &pcmTrack{r: r, channels: spec.Channels}, spec, nil
}

func (t *pcmTrack) Pull() ([]float32, error) {
	n, err := t.r.Read(t.buf[:])
	if n == 0 {
		if err == io.EOF {
			return nil, ErrEndOfDecode
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrRetry
	}
	nSamples := n / 2
	out := make([]float32, nSamples)
	for i := 0; i < nSamples; i++ {
		s16 := int16(binary.LittleEndian.Uint16(t.buf[i*2:]))
		out[i] = float32(s16) / math.MaxInt16
	}
	if err == io.EOF {
		// Deliver the final partial read this call; report EOS next call.
		return out, nil
	}
	return out, nil
}

func (t *pcmTrack) Metadata() Metadata { return Metadata{} }
func (t *pcmTrack) Close() error       { return nil }
