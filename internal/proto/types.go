package proto

import (
	"net"
	"time"
)

// ServerEndpoint is an IPv4 address + port, optionally tagged with a
// sync-group identifier. It is replaced wholesale on
// redirect, never mutated in place.
type ServerEndpoint struct {
	IP          net.IP
	Port        int
	SyncGroupID string
}

func (e ServerEndpoint) Addr() string {
	return net.JoinHostPort(e.IP.String(), itoa(e.Port))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Format is the wire tag for a Stream message's audio format.
type Format byte

const (
	FormatPCM   Format = 'p'
	FormatMP3   Format = 'm'
	FormatAAC   Format = 'a'
	FormatOgg   Format = 'o'
	FormatFLAC  Format = 'f'
	FormatALAC  Format = 'l'
	FormatUnset Format = '?'
)

// SelfDescribing is the sentinel meaning "take the parameter from the
// container" for pcmsamplesize/rate/channels.
const SelfDescribing = 0

// Autostart modes.
type Autostart byte

const (
	AutostartAuto       Autostart = '1' // begin playback as soon as established
	AutostartNone       Autostart = '0' // wait for explicit Unpause
	AutostartAutoUnpaus Autostart = '3' // auto + send an Unpause on first buffer
)

// StreamRequest carries the parameters of a Stream server message.
type StreamRequest struct {
	HTTPHeaders      []byte
	ServerIP         net.IP // nil/unspecified => use current default
	ServerPort       int
	ThresholdKiB     int
	Format           Format
	PCMSampleSize    int // 8,16,20,32, or SelfDescribing
	PCMSampleRate    int // or SelfDescribing
	PCMChannels      int // 1, 2, or SelfDescribing
	Autostart        Autostart
	OutputThreshold  time.Duration
}

// ServerMessage is the tagged union of inbound frames this core consumes.
type ServerMessage struct {
	Kind ServerKind

	// Serv
	ServIP          net.IP
	ServSyncGroupID string

	// Setname
	Name string

	// Gain
	GainLeft, GainRight float64

	// Status
	Timestamp uint32

	// Pause / Unpause / Skip
	Duration time.Duration

	// Stream
	Stream StreamRequest

	// Enable
	EnableAudio, EnableSPDIF bool
}

// ServerKind discriminates ServerMessage.
type ServerKind int

const (
	ServKindServ ServerKind = iota
	ServKindQueryname
	ServKindSetname
	ServKindGain
	ServKindStatus
	ServKindStop
	ServKindFlush
	ServKindPause
	ServKindUnpause
	ServKindSkip
	ServKindStream
	ServKindEnable
	ServKindDisableDac
	// ServKindNone is the session-loss sentinel.
	ServKindNone
)
