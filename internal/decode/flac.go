package decode

import (
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"
)

func init() {
	registry["audio/flac"] = probeFLAC
}

// flacTrack wraps mewkiz/flac's streaming frame-by-frame parser,
// de-interleaving its per-channel int32 subframe samples into interleaved
// F32.
type flacTrack struct {
	stream   *flac.Stream
	bitShift uint
	meta     Metadata
}

func probeFLAC(r *countingReader, rateOverride, channelsOverride int, selfDescribing bool) (track, AudioSpec, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, AudioSpec{}, err
	}

	spec := AudioSpec{
		Channels:   int(stream.Info.NChannels),
		SampleRate: int(stream.Info.SampleRate),
	}
	if rateOverride > 0 && !selfDescribing {
		spec.SampleRate = rateOverride
	}
	if channelsOverride > 0 && !selfDescribing {
		spec.Channels = channelsOverride
	}

	t := &flacTrack{stream: stream, bitShift: uint(stream.Info.BitsPerSample) - 1}
	t.meta = extractVorbisComments(stream)

	return t, spec, nil
}

func extractVorbisComments(stream *flac.Stream) Metadata {
	m := Metadata{}
	for _, block := range stream.Blocks {
		vc, ok := block.Body.(*meta.VorbisComment)
		if !ok {
			continue
		}
		for _, tag := range vc.Tags {
			if len(tag) != 2 {
				continue
			}
			switch tag[0] {
			case "ARTIST":
				m.Artist = tag[1]
			case "ALBUM":
				m.Album = tag[1]
			case "TITLE":
				m.Title = tag[1]
			case "DATE":
				m.Year = tag[1]
			}
		}
	}
	return m
}

func (t *flacTrack) Pull() ([]float32, error) {
	frame, err := t.stream.ParseNext()
	if err == io.EOF {
		return nil, ErrEndOfDecode
	}
	if err != nil {
		return nil, err
	}

	nCh := len(frame.Subframes)
	if nCh == 0 {
		return nil, ErrRetry
	}
	n := len(frame.Subframes[0].Samples)
	out := make([]float32, n*nCh)
	scale := float32(int32(1) << t.bitShift)

	for ch := 0; ch < nCh; ch++ {
		samples := frame.Subframes[ch].Samples
		for i := 0; i < n && i < len(samples); i++ {
			out[i*nCh+ch] = float32(samples[i]) / scale
		}
	}
	return out, nil
}

func (t *flacTrack) Metadata() Metadata { return t.meta }
func (t *flacTrack) Close() error       { return nil }
