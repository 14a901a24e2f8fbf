package decode

import "fmt"

func init() {
	registry["audio/aac"] = probeAAC
}

// probeAAC recognizes ADTS-framed AAC by checking that the stream opens with
// the ADTS sync word (later frames are not examined), then reports
// ErrUnsupportedCodec: no
// pure-Go AAC decoder exists without cgo. This is a real error path, not a
// placeholder — the control core turns it into NotSupported exactly as it
// would for any other codec this build lacks.
func probeAAC(r *countingReader, rateOverride, channelsOverride int, selfDescribing bool) (track, AudioSpec, error) {
	var hdr [2]byte
	if _, err := r.Read(hdr[:]); err != nil {
		return nil, AudioSpec{}, fmt.Errorf("decode: aac: %w", err)
	}
	// ADTS frames begin with the 12-bit sync word 0xFFF.
	if hdr[0] != 0xFF || hdr[1]&0xF0 != 0xF0 {
		return nil, AudioSpec{}, fmt.Errorf("decode: aac: no ADTS sync word found")
	}
	return nil, AudioSpec{}, ErrUnsupportedCodec
}
