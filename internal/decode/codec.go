package decode

import "errors"

// ErrRetry signals a transient, internally-handled condition (a codec
// reset) that the caller should retry without treating as an error.
var ErrRetry = errors.New("decode: retry")

// ErrEndOfDecode signals a clean end of the decoded stream.
var ErrEndOfDecode = errors.New("decode: end of decode")

// ErrUnsupportedCodec signals a recognized container whose codec this build
// cannot decode (AAC, ALAC). The control core turns this into the same
// NotSupported path as any other unsupported-codec error.
var ErrUnsupportedCodec = errors.New("decode: unsupported codec")

// Metadata is the per-track tag set surfaced to the notifier.
type Metadata struct {
	Artist string
	Album  string
	Title  string
	Year   string
}

// track is the pluggable per-codec interface: probe, next packet, decode,
// and reset collapse here into Pull (which performs packet-read, decode,
// and any internal reset-on-resync in one call, returning ErrRetry rather
// than blocking the caller on an internal reset) plus Metadata and Close.
type track interface {
	// Pull returns one unit of interleaved float32 PCM samples. It returns
	// ErrRetry after an internal resync the caller should immediately retry,
	// ErrEndOfDecode at clean end of stream, or any other error as fatal.
	Pull() ([]float32, error)

	// Metadata returns the most recently observed tag set.
	Metadata() Metadata

	Close() error
}

// prober opens a container/codec pair from raw (HTTP-body, headers-stripped)
// bytes. rateOverride/channelsOverride are >0 when the server specified
// them explicitly; selfDescribing means "take from container" instead.
type prober func(r *countingReader, rateOverride, channelsOverride int, selfDescribing bool) (track, AudioSpec, error)
