package proto

import (
	"encoding/binary"

	"github.com/vibeclient/vibe/internal/state"
)

// Outbound frame tags.
const (
	tagName = "name"
	tagBye  = "bye "
	tagStt  = "STT " // status frame, carries a StatusCode + StatusData
	tagHelo = "helo"
)

// StatusCode enumerates the outbound status frame codes.
type StatusCode byte

const (
	StatusTimer             StatusCode = 0
	StatusConnect           StatusCode = 1
	StatusBufferThreshold   StatusCode = 2
	StatusStreamEstablished StatusCode = 3
	StatusTrackStarted      StatusCode = 4
	StatusDecoderReady      StatusCode = 5
	StatusPause             StatusCode = 6
	StatusResume            StatusCode = 7
	StatusFlushed           StatusCode = 8
	StatusNotSupported      StatusCode = 9
)

// EncodeHelo builds the initial capability-advertisement frame.
func EncodeHelo(capsEncoded string) (tag string, payload []byte) {
	return tagHelo, []byte(capsEncoded)
}

// EncodeName builds a Name(string) outbound frame.
func EncodeName(name string) (tag string, payload []byte) {
	return tagName, []byte(name)
}

// EncodeBye builds the Bye(u8) outbound frame. The session's writer
// goroutine stops after writing one; the control core does not send it
// when the session is lost.
func EncodeBye(code byte) (tag string, payload []byte) {
	return tagBye, []byte{code}
}

// EncodeStatus builds a status frame carrying the given code and a
// StatusData snapshot.
func EncodeStatus(code StatusCode, snap state.Snapshot) (tag string, payload []byte) {
	buf := make([]byte, 1+8+4+4+4+4+4)
	i := 0
	buf[i] = byte(code)
	i++
	binary.BigEndian.PutUint64(buf[i:], uint64(snap.ElapsedMs))
	i += 8
	binary.BigEndian.PutUint32(buf[i:], uint32(snap.Elapsed.Seconds()))
	i += 4
	binary.BigEndian.PutUint32(buf[i:], snap.OutputSize)
	i += 4
	binary.BigEndian.PutUint32(buf[i:], snap.OutputFull)
	i += 4
	binary.BigEndian.PutUint32(buf[i:], snap.CRLFCount)
	i += 4
	binary.BigEndian.PutUint32(buf[i:], snap.TimestampRaw)
	return tagStt, buf
}
