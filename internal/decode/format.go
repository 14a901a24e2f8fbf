// Package decode implements the decoder component: per-track HTTP fetch,
// container probe, packet pull, decode to interleaved float32, per-channel
// gain, and EOS/retry/fatal signaling. The concrete codec libraries are
// treated as a pluggable pack behind the track interface in codec.go, so
// the adapters here are thin.
package decode

import (
	"fmt"

	"github.com/vibeclient/vibe/internal/proto"
)

// AudioSpec is the immutable per-track spec the decoder exposes downstream;
// sample format is always F32.
type AudioSpec struct {
	Channels   int
	SampleRate int
}

// mimeHint maps a wire format tag to the MIME hint used to select a
// container prober.
func mimeHint(f proto.Format) (string, error) {
	switch f {
	case proto.FormatPCM:
		return "audio/x-adpcm", nil
	case proto.FormatMP3:
		return "audio/mpeg", nil
	case proto.FormatAAC:
		return "audio/aac", nil
	case proto.FormatOgg:
		return "audio/ogg", nil
	case proto.FormatFLAC:
		return "audio/flac", nil
	case proto.FormatALAC:
		return "audio/x-alac", nil
	default:
		return "", fmt.Errorf("decode: unrecognized format tag %q", byte(f))
	}
}
