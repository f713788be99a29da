//go:build linux

package types

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"

	"golang.org/x/sys/unix"
)

// Socket is a non-blocking socket owned by whichever reactor state registered it.
// It is not safe for concurrent use.
type Socket struct {
	fd       int
	family   int
	protocol Protocol
	local    netip.AddrPort
}

// ListenUDP binds a UDP socket. An invalid address binds the IPv4 wildcard on an ephemeral port.
func ListenUDP(addr netip.AddrPort) (*Socket, error) {
	s, err := newSocket(UDP, addr)
	if err != nil {
		return nil, err
	}
	if err := s.bind(addr); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ListenTCP binds and listens on a TCP socket.
func ListenTCP(addr netip.AddrPort, backlog int) (*Socket, error) {
	s, err := newSocket(TCP, addr)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		s.Close()
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := s.bind(addr); err != nil {
		s.Close()
		return nil, err
	}
	if err := unix.Listen(s.fd, backlog); err != nil {
		s.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}
	return s, nil
}

// DialTCP starts a non-blocking connect. The socket becomes writable once the connect has
// finished; SockError then reports its outcome.
func DialTCP(addr netip.AddrPort) (*Socket, error) {
	if !addr.IsValid() {
		return nil, BadAddressError{}
	}
	s, err := newSocket(TCP, addr)
	if err != nil {
		return nil, err
	}
	sa, err := sockaddr(addr, s.family)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := unix.Connect(s.fd, sa); err != nil && err != unix.EINPROGRESS {
		s.Close()
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	if err := s.updateLocal(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newSocket(protocol Protocol, addr netip.AddrPort) (*Socket, error) {
	family := unix.AF_INET
	if addr.IsValid() && addr.Addr().Is6() && !addr.Addr().Is4In6() {
		family = unix.AF_INET6
	}
	typ := unix.SOCK_STREAM
	if protocol == UDP {
		typ = unix.SOCK_DGRAM
	}
	fd, err := unix.Socket(family, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	return &Socket{fd: fd, family: family, protocol: protocol}, nil
}

func (s *Socket) bind(addr netip.AddrPort) error {
	if !addr.IsValid() {
		addr = netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
	}
	sa, err := sockaddr(addr, s.family)
	if err != nil {
		return err
	}
	if err := unix.Bind(s.fd, sa); err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	return s.updateLocal()
}

func (s *Socket) updateLocal() error {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return fmt.Errorf("getsockname: %w", err)
	}
	s.local = addrPort(sa)
	return nil
}

// Fd returns the descriptor to register with a poller, or -1 once closed.
func (s *Socket) Fd() int {
	return s.fd
}

func (s *Socket) Protocol() Protocol {
	return s.protocol
}

func (s *Socket) LocalAddr() netip.AddrPort {
	return s.local
}

// LocalEndpoint returns the bound address as an Endpoint.
func (s *Socket) LocalEndpoint() Endpoint {
	return Endpoint{Protocol: s.protocol, Addr: s.local}
}

// PeerAddr returns the address a connected socket is connected to.
func (s *Socket) PeerAddr() (netip.AddrPort, error) {
	if s.fd < 0 {
		return netip.AddrPort{}, ClosedError{}
	}
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("getpeername: %w", err)
	}
	return addrPort(sa), nil
}

// Accept returns the next pending connection of a listening socket.
// When none is pending the error satisfies WouldBlock.
func (s *Socket) Accept() (*Socket, netip.AddrPort, error) {
	if s.fd < 0 {
		return nil, netip.AddrPort{}, ClosedError{}
	}
	fd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, netip.AddrPort{}, err
	}
	conn := &Socket{fd: fd, family: s.family, protocol: TCP}
	if err := conn.updateLocal(); err != nil {
		conn.Close()
		return nil, netip.AddrPort{}, err
	}
	return conn, addrPort(sa), nil
}

// SockError returns the pending error of the socket, e.g. the outcome of a non-blocking connect.
func (s *Socket) SockError() error {
	if s.fd < 0 {
		return ClosedError{}
	}
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("getsockopt SO_ERROR: %w", err)
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

func (s *Socket) SendTo(b []byte, addr netip.AddrPort) (int, error) {
	if s.fd < 0 {
		return 0, ClosedError{}
	}
	sa, err := sockaddr(addr, s.family)
	if err != nil {
		return 0, err
	}
	if err := unix.Sendto(s.fd, b, 0, sa); err != nil {
		return 0, err
	}
	return len(b), nil
}

// RecvFrom reads one datagram. When nothing is queued the error satisfies WouldBlock.
func (s *Socket) RecvFrom(b []byte) (int, netip.AddrPort, error) {
	if s.fd < 0 {
		return 0, netip.AddrPort{}, ClosedError{}
	}
	n, sa, err := unix.Recvfrom(s.fd, b, 0)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return n, addrPort(sa), nil
}

// ConnectTo fixes the peer of a UDP socket, so Conn can hand it over as a net.Conn.
func (s *Socket) ConnectTo(addr netip.AddrPort) error {
	if s.fd < 0 {
		return ClosedError{}
	}
	sa, err := sockaddr(addr, s.family)
	if err != nil {
		return err
	}
	if err := unix.Connect(s.fd, sa); err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	return nil
}

// Conn hands a connected socket over to the standard library.
// The Socket is closed afterwards; only the returned net.Conn remains.
func (s *Socket) Conn() (net.Conn, error) {
	f, err := s.release()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return net.FileConn(f)
}

// PacketConn hands a UDP socket over to the standard library, like Conn.
func (s *Socket) PacketConn() (net.PacketConn, error) {
	f, err := s.release()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return net.FilePacketConn(f)
}

func (s *Socket) release() (*os.File, error) {
	if s.fd < 0 {
		return nil, ClosedError{}
	}
	f := os.NewFile(uintptr(s.fd), s.LocalEndpoint().String())
	s.fd = -1
	return f, nil
}

// Close closes the socket. Closing twice is a no-op.
func (s *Socket) Close() error {
	if s == nil || s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	return unix.Close(fd)
}

// WouldBlock reports whether err means the operation would have blocked.
func WouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

func sockaddr(addr netip.AddrPort, family int) (unix.Sockaddr, error) {
	ip := addr.Addr()
	port := int(addr.Port())
	if family == unix.AF_INET6 {
		sa := &unix.SockaddrInet6{Port: port, Addr: ip.As16()}
		if zone := ip.Zone(); zone != "" {
			intf, err := net.InterfaceByName(zone)
			if err != nil {
				return nil, fmt.Errorf("zone %s: %w", zone, err)
			}
			sa.ZoneId = uint32(intf.Index)
		}
		return sa, nil
	}
	ip = ip.Unmap()
	if !ip.Is4() {
		return nil, BadAddressError{}
	}
	return &unix.SockaddrInet4{Port: port, Addr: ip.As4()}, nil
}

func addrPort(sa unix.Sockaddr) netip.AddrPort {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(v.Addr), uint16(v.Port))
	case *unix.SockaddrInet6:
		ip := netip.AddrFrom16(v.Addr).Unmap()
		if v.ZoneId != 0 && ip.Is6() {
			if intf, err := net.InterfaceByIndex(int(v.ZoneId)); err == nil {
				ip = ip.WithZone(intf.Name)
			}
		}
		return netip.AddrPortFrom(ip, uint16(v.Port))
	default:
		return netip.AddrPort{}
	}
}
