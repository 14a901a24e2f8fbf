package proto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// Inbound frame tags. Each is exactly 4 bytes on the wire.
const (
	tagServ   = "serv"
	tagQryn   = "qryn"
	tagSetn   = "setn"
	tagAudg   = "audg"
	tagStat   = "STAT" // server sends this to request a status echo
	tagStop   = "stop"
	tagFlsh   = "flsh"
	tagPaus   = "paus"
	tagUnpa   = "unpa"
	tagSkip   = "skip"
	tagStrm   = "strm"
	tagEnab   = "enab"
	tagDsab   = "dsab"
)

// DecodeServerMessage parses one inbound frame into a ServerMessage.
func DecodeServerMessage(f Frame) (ServerMessage, error) {
	p := f.Payload
	switch f.Tag {
	case tagServ:
		return decodeServ(p)
	case tagQryn:
		return ServerMessage{Kind: ServKindQueryname}, nil
	case tagSetn:
		return ServerMessage{Kind: ServKindSetname, Name: string(p)}, nil
	case tagAudg:
		return decodeGain(p)
	case tagStat:
		return decodeStatusReq(p)
	case tagStop:
		return ServerMessage{Kind: ServKindStop}, nil
	case tagFlsh:
		return ServerMessage{Kind: ServKindFlush}, nil
	case tagPaus:
		return decodeDurationMsg(ServKindPause, p)
	case tagUnpa:
		return decodeDurationMsg(ServKindUnpause, p)
	case tagSkip:
		return decodeDurationMsg(ServKindSkip, p)
	case tagStrm:
		return decodeStream(p)
	case tagEnab:
		return decodeEnable(p)
	case tagDsab:
		return ServerMessage{Kind: ServKindDisableDac}, nil
	default:
		return ServerMessage{}, fmt.Errorf("proto: unknown inbound tag %q", f.Tag)
	}
}

func decodeServ(p []byte) (ServerMessage, error) {
	if len(p) < 4 {
		return ServerMessage{}, fmt.Errorf("proto: serv payload too short")
	}
	ip := net.IPv4(p[0], p[1], p[2], p[3])
	sgid := ""
	if len(p) > 4 {
		sgid = string(bytes.TrimRight(p[4:], "\x00"))
	}
	return ServerMessage{Kind: ServKindServ, ServIP: ip, ServSyncGroupID: sgid}, nil
}

func decodeGain(p []byte) (ServerMessage, error) {
	if len(p) < 8 {
		return ServerMessage{}, fmt.Errorf("proto: audg payload too short")
	}
	l := math64FromBits(binary.BigEndian.Uint32(p[0:4]))
	r := math64FromBits(binary.BigEndian.Uint32(p[4:8]))
	return ServerMessage{Kind: ServKindGain, GainLeft: l, GainRight: r}, nil
}

// math64FromBits decodes gain as 16.16 fixed point, the SlimProto convention.
func math64FromBits(fixed uint32) float64 {
	return float64(fixed) / 65536.0
}

func decodeStatusReq(p []byte) (ServerMessage, error) {
	if len(p) < 4 {
		return ServerMessage{Kind: ServKindStatus}, nil
	}
	return ServerMessage{Kind: ServKindStatus, Timestamp: binary.BigEndian.Uint32(p[0:4])}, nil
}

func decodeDurationMsg(kind ServerKind, p []byte) (ServerMessage, error) {
	if len(p) < 4 {
		return ServerMessage{Kind: kind, Duration: 0}, nil
	}
	ms := binary.BigEndian.Uint32(p[0:4])
	return ServerMessage{Kind: kind, Duration: time.Duration(ms) * time.Millisecond}, nil
}

func decodeEnable(p []byte) (ServerMessage, error) {
	if len(p) < 2 {
		return ServerMessage{}, fmt.Errorf("proto: enab payload too short")
	}
	return ServerMessage{Kind: ServKindEnable, EnableAudio: p[0] != 0, EnableSPDIF: p[1] != 0}, nil
}

// decodeStream parses the Stream payload. Layout:
//
//	[0] format tag byte
//	[1] pcm sample size (0 = SelfDescribing)
//	[2:6] pcm sample rate (0 = SelfDescribing)
//	[6] pcm channels (0 = SelfDescribing)
//	[7] autostart
//	[8:12] threshold (KiB)
//	[12:16] output_threshold (ms)
//	[16:20] server_ip (0 = current default)
//	[20:22] server_port
//	[22:] http_headers (raw bytes, written verbatim before server's CRLFCRLF)
func decodeStream(p []byte) (ServerMessage, error) {
	const headerLen = 22
	if len(p) < headerLen {
		return ServerMessage{}, fmt.Errorf("proto: strm payload too short (%d bytes)", len(p))
	}

	req := StreamRequest{
		Format:          Format(p[0]),
		PCMSampleSize:   int(p[1]),
		PCMSampleRate:   int(binary.BigEndian.Uint32(p[2:6])),
		PCMChannels:     int(p[6]),
		Autostart:       Autostart(p[7]),
		ThresholdKiB:    int(binary.BigEndian.Uint32(p[8:12])),
		OutputThreshold: time.Duration(binary.BigEndian.Uint32(p[12:16])) * time.Millisecond,
		ServerPort:      int(binary.BigEndian.Uint16(p[20:22])),
	}

	ipBytes := p[16:20]
	if !(ipBytes[0] == 0 && ipBytes[1] == 0 && ipBytes[2] == 0 && ipBytes[3] == 0) {
		req.ServerIP = net.IPv4(ipBytes[0], ipBytes[1], ipBytes[2], ipBytes[3])
	}

	if len(p) > headerLen {
		req.HTTPHeaders = append([]byte(nil), p[headerLen:]...)
	}

	return ServerMessage{Kind: ServKindStream, Stream: req}, nil
}
