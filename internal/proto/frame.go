// Package proto implements the SlimProto wire subset: a framed duplex TCP
// protocol consisting of a 4-byte operation tag followed by a 4-byte
// big-endian length and that many bytes of payload.
package proto

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameLen guards against a runaway length prefix on a corrupt stream.
const maxFrameLen = 16 << 20

// Frame is a raw, undecoded wire frame: a 4-byte tag plus payload bytes.
type Frame struct {
	Tag     string
	Payload []byte
}

// ReadFrame blocks until one full frame has been read from r.
func ReadFrame(r *bufio.Reader) (Frame, error) {
	var tag [4]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Frame{}, err
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, fmt.Errorf("reading frame length for %q: %w", tag, err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return Frame{}, fmt.Errorf("frame %q length %d exceeds max %d", tag, n, maxFrameLen)
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("reading frame %q payload: %w", tag, err)
		}
	}

	return Frame{Tag: string(tag[:]), Payload: payload}, nil
}

// WriteFrame writes one full frame to w.
func WriteFrame(w io.Writer, tag string, payload []byte) error {
	if len(tag) != 4 {
		return fmt.Errorf("proto: tag %q must be exactly 4 bytes", tag)
	}
	buf := make([]byte, 0, 8+len(payload))
	buf = append(buf, tag...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}
