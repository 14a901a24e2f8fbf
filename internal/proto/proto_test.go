package proto

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeclient/vibe/internal/state"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, "strm", []byte("payload")))

	got, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "strm", got.Tag)
	assert.Equal(t, []byte("payload"), got.Payload)
}

func TestWriteFrameRejectsShortTag(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, "abc", nil)
	assert.Error(t, err)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("strm")
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, maxFrameLen+1)
	buf.Write(lenBuf)

	_, err := ReadFrame(bufio.NewReader(&buf))
	assert.Error(t, err)
}

func TestDecodeServMessage(t *testing.T) {
	payload := append([]byte{10, 0, 0, 5}, []byte("group1\x00\x00")...)
	msg, err := DecodeServerMessage(Frame{Tag: "serv", Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, ServKindServ, msg.Kind)
	assert.True(t, msg.ServIP.Equal(net.IPv4(10, 0, 0, 5)))
	assert.Equal(t, "group1", msg.ServSyncGroupID)
}

func TestDecodeGainFixedPoint(t *testing.T) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:4], uint32(0.5*65536))
	binary.BigEndian.PutUint32(payload[4:8], uint32(1.0*65536))

	msg, err := DecodeServerMessage(Frame{Tag: "audg", Payload: payload})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, msg.GainLeft, 1e-4)
	assert.InDelta(t, 1.0, msg.GainRight, 1e-4)
}

func TestDecodeStreamParsesHeaderAndHeaders(t *testing.T) {
	payload := make([]byte, 22)
	payload[0] = byte(FormatFLAC)
	payload[1] = 0
	binary.BigEndian.PutUint32(payload[2:6], 0)
	payload[6] = 0
	payload[7] = byte(AutostartAuto)
	binary.BigEndian.PutUint32(payload[8:12], 20)   // threshold KiB
	binary.BigEndian.PutUint32(payload[12:16], 200) // output_threshold ms
	// server_ip left zero => current default
	binary.BigEndian.PutUint16(payload[20:22], 9000)
	payload = append(payload, []byte("GET /stream HTTP/1.0\r\n\r\n")...)

	msg, err := DecodeServerMessage(Frame{Tag: "strm", Payload: payload})
	require.NoError(t, err)
	require.Equal(t, ServKindStream, msg.Kind)
	assert.Equal(t, FormatFLAC, msg.Stream.Format)
	assert.Nil(t, msg.Stream.ServerIP)
	assert.Equal(t, 9000, msg.Stream.ServerPort)
	assert.Equal(t, 20, msg.Stream.ThresholdKiB)
	assert.Equal(t, 200*time.Millisecond, msg.Stream.OutputThreshold)
	assert.Contains(t, string(msg.Stream.HTTPHeaders), "GET /stream")
}

func TestEncodeStatusCarriesSnapshot(t *testing.T) {
	status := state.NewStatusData()
	status.SetElapsed(1500 * time.Millisecond)
	status.SetTimestampEcho(42)

	_, payload := EncodeStatus(StatusTimer, status.Snapshot())
	require.Len(t, payload, 1+8+4+4+4+4+4)
	assert.Equal(t, byte(StatusTimer), payload[0])
	assert.Equal(t, uint64(1500), binary.BigEndian.Uint64(payload[1:9]))
}
