//go:build !linux

package types

import (
	"net"
	"net/netip"
)

type UnsupportedError struct{}

func (e UnsupportedError) Error() string {
	return "UnsupportedError"
}

// Socket is only implemented on linux.
type Socket struct{}

func ListenUDP(addr netip.AddrPort) (*Socket, error) {
	return nil, UnsupportedError{}
}

func ListenTCP(addr netip.AddrPort, backlog int) (*Socket, error) {
	return nil, UnsupportedError{}
}

func DialTCP(addr netip.AddrPort) (*Socket, error) {
	return nil, UnsupportedError{}
}

func (s *Socket) Fd() int {
	return -1
}

func (s *Socket) Protocol() Protocol {
	return 0
}

func (s *Socket) LocalAddr() netip.AddrPort {
	return netip.AddrPort{}
}

func (s *Socket) LocalEndpoint() Endpoint {
	return Endpoint{}
}

func (s *Socket) PeerAddr() (netip.AddrPort, error) {
	return netip.AddrPort{}, UnsupportedError{}
}

func (s *Socket) Accept() (*Socket, netip.AddrPort, error) {
	return nil, netip.AddrPort{}, UnsupportedError{}
}

func (s *Socket) SockError() error {
	return UnsupportedError{}
}

func (s *Socket) SendTo(b []byte, addr netip.AddrPort) (int, error) {
	return 0, UnsupportedError{}
}

func (s *Socket) RecvFrom(b []byte) (int, netip.AddrPort, error) {
	return 0, netip.AddrPort{}, UnsupportedError{}
}

func (s *Socket) ConnectTo(addr netip.AddrPort) error {
	return UnsupportedError{}
}

func (s *Socket) Conn() (net.Conn, error) {
	return nil, UnsupportedError{}
}

func (s *Socket) PacketConn() (net.PacketConn, error) {
	return nil, UnsupportedError{}
}

func (s *Socket) Close() error {
	return nil
}

func WouldBlock(err error) bool {
	return false
}
