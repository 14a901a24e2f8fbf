// Package discovery implements SlimProto's UDP broadcast discovery handshake
// plus an additive mDNS advertisement. Discovery itself runs over a raw UDP
// socket, since SlimProto discovery predates mDNS and is not itself an mDNS
// exchange; mDNS is a second, independent advertisement channel layered on
// top.
package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/mdns"

	"github.com/vibeclient/vibe/internal/config"
)

// discoveryPort is the UDP port SlimProto discovery broadcasts use; it is the
// same port as the TCP control connection.
const discoveryPort = config.DefaultPort

// probe is the client's discovery datagram: a single 'd' byte followed by
// zero-padding, matching the minimal "type + body" shape other SlimProto
// datagrams use.
var probe = append([]byte{'d'}, make([]byte, 17)...)

// Discover blocks until a server replies to a broadcast discovery probe, or
// ctx is canceled. It returns the responding server's UDP address.
func Discover(ctx context.Context, logger *log.Logger) (*net.UDPAddr, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("discovery: listen: %w", err)
	}
	defer conn.Close()

	broadcast := &net.UDPAddr{IP: net.IPv4bcast, Port: discoveryPort}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()
	defer close(done)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	if _, err := conn.WriteToUDP(probe, broadcast); err != nil {
		return nil, fmt.Errorf("discovery: broadcast: %w", err)
	}

	buf := make([]byte, 64)
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, addr, err := conn.ReadFromUDP(buf)
		if err == nil && n > 0 {
			logger.Debug("discovery reply", "from", addr)
			return addr, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if _, err := conn.WriteToUDP(probe, broadcast); err != nil {
				return nil, fmt.Errorf("discovery: re-broadcast: %w", err)
			}
		default:
		}
	}
}

// Advertiser publishes an mDNS record for this endpoint, purely additive to
// the UDP handshake above: its absence or failure must never block
// discovery or connect.
type Advertiser struct {
	server *mdns.Server
}

// Advertise starts mDNS advertisement under "_slimproto._tcp" and returns an
// Advertiser to Shutdown later. A failure here is logged and ignored by the
// caller; it is not fatal to the player.
func Advertise(name string, port int, logger *log.Logger) *Advertiser {
	ips, err := localIPv4s()
	if err != nil || len(ips) == 0 {
		logger.Warn("mdns advertise: no local IPv4 addresses", "err", err)
		return nil
	}

	svc, err := mdns.NewMDNSService(name, "_slimproto._tcp", "", "", port, ips, nil)
	if err != nil {
		logger.Warn("mdns advertise: build service failed", "err", err)
		return nil
	}

	srv, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		logger.Warn("mdns advertise: start failed", "err", err)
		return nil
	}

	return &Advertiser{server: srv}
}

// Shutdown stops mDNS advertisement, if it was started.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	_ = a.server.Shutdown()
}

func localIPv4s() ([]net.IP, error) {
	var ips []net.IP
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if v4 := ipnet.IP.To4(); v4 != nil {
					ips = append(ips, v4)
				}
			}
		}
	}
	return ips, nil
}

// ParseServer parses the -s/--server flag's "host[:port]" form, defaulting
// the port to DefaultPort and resolving DNS.
func ParseServer(hostPort string) (*net.UDPAddr, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		host = hostPort
		port = fmt.Sprintf("%d", discoveryPort)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve %q: %w", host, err)
	}
	var v4 net.IP
	for _, ip := range ips {
		if x := ip.To4(); x != nil {
			v4 = x
			break
		}
	}
	if v4 == nil {
		return nil, fmt.Errorf("discovery: %q has no IPv4 address", host)
	}

	var p int
	fmt.Sscanf(port, "%d", &p)
	if p == 0 {
		p = discoveryPort
	}

	return &net.UDPAddr{IP: v4, Port: p}, nil
}
