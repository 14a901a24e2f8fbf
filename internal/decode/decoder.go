package decode

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibeclient/vibe/internal/proto"
	"github.com/vibeclient/vibe/internal/state"
)

// Decoder owns the per-track HTTP socket, SlimBuffer, container/codec pair,
// and immutable AudioSpec. Its lifetime spans one track.
type Decoder struct {
	conn   net.Conn
	buffer *SlimBuffer
	track  track
	spec   AudioSpec
	global *state.Global
	logger *log.Logger

	pending []float32 // carryover from the last Pull, not yet consumed by a filler
}

// Connected, BufferThreshold are emitted upstream as Decoder is constructed
//; the caller passes a sink for those notifications.
type Events struct {
	Connected       func()
	BufferThreshold func()
}

// registry maps MIME hints to container probers. Populated in init() by
// each codec adapter file (pcm.go, mp3.go, flac.go, vorbis.go, aac.go, alac.go).
var registry = map[string]prober{}

// New constructs a Decoder for req, connecting to defaultServerIP when
// req.ServerIP is unspecified.
func New(req proto.StreamRequest, defaultServerIP net.IP, global *state.Global, logger *log.Logger, events Events) (*Decoder, error) {
	ip := req.ServerIP
	if ip == nil || ip.IsUnspecified() {
		ip = defaultServerIP
	}
	if ip == nil {
		return nil, fmt.Errorf("decode: no server IP available for stream request")
	}

	addr := fmt.Sprintf("%s:%d", ip.String(), req.ServerPort)
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("decode: connect %s: %w", addr, err)
	}

	headers := trimRight(req.HTTPHeaders)
	if _, err := conn.Write(append(headers, "\r\n\r\n"...)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode: write request headers: %w", err)
	}

	if events.Connected != nil {
		events.Connected()
	}

	thresholdBytes := req.ThresholdKiB * 1024
	if thresholdBytes <= 0 {
		thresholdBytes = 32 * 1024
	}

	status := global.Status
	sb := NewSlimBuffer(conn, thresholdBytes, status, events.BufferThreshold)

	br := bufio.NewReader(sb)
	if err := skipHTTPHeaders(br, status); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode: strip response headers: %w", err)
	}

	hint, err := mimeHint(req.Format)
	if err != nil {
		conn.Close()
		return nil, err
	}

	p, ok := registry[hint]
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("decode: no container prober registered for %s", hint)
	}

	selfDescribing := req.PCMSampleRate == proto.SelfDescribing || req.PCMChannels == proto.SelfDescribing
	cr := &countingReader{r: br}
	tr, spec, err := p(cr, req.PCMSampleRate, req.PCMChannels, selfDescribing)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode: unrecognized container/unable to find default track/unable to find suitable decoder: %w", err)
	}

	if spec.Channels == 0 || spec.SampleRate == 0 {
		// Format auto-fallback: stereo/44100 on failure
		// to determine container-declared parameters.
		spec = AudioSpec{Channels: 2, SampleRate: 44100}
	}

	return &Decoder{
		conn:   conn,
		buffer: sb,
		track:  tr,
		spec:   spec,
		global: global,
		logger: logger,
	}, nil
}

// skipHTTPHeaders reads and discards bytes until the first blank line,
// stripping the HTTP response headers that precede the raw audio stream.
func skipHTTPHeaders(r *bufio.Reader, status *state.StatusData) error {
	crlfCount := uint32(0)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		if status != nil {
			status.AddCRLF(1)
		}
		crlfCount++
		trimmed := trimCRLF(line)
		if trimmed == "" {
			return nil
		}
	}
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func trimRight(b []byte) []byte {
	end := len(b)
	for end > 0 {
		c := b[end-1]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			end--
			continue
		}
		break
	}
	out := make([]byte, end)
	copy(out, b[:end])
	return out
}

// Spec returns the immutable per-track AudioSpec.
func (d *Decoder) Spec() AudioSpec { return d.spec }

// Metadata returns the current metadata revision.
func (d *Decoder) Metadata() Metadata {
	return d.track.Metadata()
}

// GetAudioBuffer advances until it yields one interleaved-F32 buffer, or a
// sentinel/fatal error.
func (d *Decoder) GetAudioBuffer() ([]float32, error) {
	for {
		samples, err := d.track.Pull()
		if err == ErrRetry {
			continue
		}
		if err != nil {
			return nil, err
		}
		applyGain(samples, d.spec.Channels, d.global.Volume)
		return samples, nil
	}
}

// FillSampleBuffer appends up to limit interleaved float32 samples to out,
// pulling from the decoder as needed Sink-facing fillers,
// float-float path).
func (d *Decoder) FillSampleBuffer(out *[]float32, limit int) error {
	for len(*out) < limit {
		if len(d.pending) == 0 {
			samples, err := d.GetAudioBuffer()
			if err != nil {
				return err
			}
			d.pending = samples
		}
		n := limit - len(*out)
		if n > len(d.pending) {
			n = len(d.pending)
		}
		*out = append(*out, d.pending[:n]...)
		d.pending = d.pending[n:]
	}
	return nil
}

// FillRawBuffer is the float-to-little-endian-bytes path for sinks that take
// raw byte frames.
func (d *Decoder) FillRawBuffer(out *[]byte, limit int) error {
	var floats []float32
	err := d.FillSampleBuffer(&floats, limit/4)
	encodeFloatsLE(out, floats)
	return err
}

// Close releases the underlying socket and codec resources.
func (d *Decoder) Close() error {
	d.track.Close()
	return d.conn.Close()
}
