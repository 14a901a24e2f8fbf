package decode

// probeALAC recognizes the ALAC container tag but, like AAC (see aac.go),
// reports ErrUnsupportedCodec: no pure-Go ALAC decoder exists in the corpus
// or ecosystem without cgo. The caller surfaces this identically to any
// other unsupported-codec error.
func probeALAC(r *countingReader, rateOverride, channelsOverride int, selfDescribing bool) (track, AudioSpec, error) {
	return nil, AudioSpec{}, ErrUnsupportedCodec
}

func init() {
	registry["audio/x-alac"] = probeALAC
}
