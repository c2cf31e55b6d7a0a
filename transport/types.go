package transport

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/opd-ai/keystream/interfaces"
)

// DefaultPollInterval bounds how long a blocked read waits before re-checking its context.
const DefaultPollInterval = 100 * time.Millisecond

// ErrTransportClosed is returned by operations on a closed transport.
var ErrTransportClosed = fmt.Errorf("udp %w", interfaces.ErrClosed)

// ResolveAddr resolves host and port into a UDP destination address.
// An empty host means loopback.
func ResolveAddr(host string, port int) (net.Addr, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	return addr, nil
}

// ListenAddr formats the wildcard bind address for port.
func ListenAddr(port int) string {
	return net.JoinHostPort("", strconv.Itoa(port))
}
