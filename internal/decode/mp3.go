package decode

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/hajimehoshi/go-mp3"
)

func init() {
	registry["audio/mpeg"] = probeMP3
}

// mp3Track wraps hajimehoshi/go-mp3's streaming decoder, which already
// demuxes MPEG frames and exposes signed-16-bit stereo PCM via io.Reader.
type mp3Track struct {
	dec      *mp3.Decoder
	channels int
	buf      [4096]byte
}

func probeMP3(r *countingReader, rateOverride, channelsOverride int, selfDescribing bool) (track, AudioSpec, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, AudioSpec{}, err
	}

	spec := AudioSpec{Channels: 2, SampleRate: dec.SampleRate()}
	if rateOverride > 0 {
		spec.SampleRate = rateOverride
	}
	if channelsOverride > 0 {
		spec.Channels = channelsOverride
	}

	return &mp3Track{dec: dec, channels: spec.Channels}, spec, nil
}

func (t *mp3Track) Pull() ([]float32, error) {
	n, err := t.dec.Read(t.buf[:])
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
	return out, nil
}

func (t *mp3Track) Metadata() Metadata { return Metadata{} }
func (t *mp3Track) Close() error       { return nil }
