package decode

import (
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/vorbis"
)

func init() {
	registry["audio/ogg"] = probeVorbis
}

const vorbisPullFrames = 2048

// vorbisTrack wraps gopxl/beep/v2's Ogg Vorbis streamer (carried from
// glebovdev-somafm-cli's go.mod), which already demuxes Ogg pages and
// decodes Vorbis packets, always yielding stereo [2]float64 frames.
type vorbisTrack struct {
	streamer beep.StreamSeekCloser
	buf      [vorbisPullFrames][2]float64
}

func probeVorbis(r *countingReader, rateOverride, channelsOverride int, selfDescribing bool) (track, AudioSpec, error) {
	streamer, format, err := vorbis.Decode(io.NopCloser(r))
	if err != nil {
		return nil, AudioSpec{}, err
	}

	spec := AudioSpec{Channels: 2, SampleRate: int(format.SampleRate)}
	if rateOverride > 0 && !selfDescribing {
		spec.SampleRate = rateOverride
	}

	return &vorbisTrack{streamer: streamer}, spec, nil
}

func (t *vorbisTrack) Pull() ([]float32, error) {
	n, ok := t.streamer.Stream(t.buf[:])
	if n == 0 {
		if !ok {
			if err := t.streamer.Err(); err != nil {
				return nil, err
			}
			return nil, ErrEndOfDecode
		}
		return nil, ErrRetry
	}

	out := make([]float32, n*2)
	for i := 0; i < n; i++ {
		out[i*2] = float32(t.buf[i][0])
		out[i*2+1] = float32(t.buf[i][1])
	}
	if !ok {
		// Final partial buffer; report end of stream on the next call.
		return out, nil
	}
	return out, nil
}

func (t *vorbisTrack) Metadata() Metadata { return Metadata{} }
func (t *vorbisTrack) Close() error       { return t.streamer.Close() }
