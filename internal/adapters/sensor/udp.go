package sensor

import (
	"net"
	"time"
)

// UDPSocket is the subset of *net.UDPConn the telemetry source needs.
type UDPSocket interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	LocalAddr() net.Addr
	Close() error
}

// UDPSocketFactory opens UDP sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, addr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory opens real network sockets.
type RealUDPSocketFactory struct{}

// ListenUDP opens a UDP socket bound to addr.
func (RealUDPSocketFactory) ListenUDP(network string, addr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

var _ UDPSocketFactory = RealUDPSocketFactory{}
