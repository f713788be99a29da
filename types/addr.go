package types

import (
	"net"
	"net/netip"
	"strings"
)

type Protocol uint8

const (
	TCP Protocol = iota + 1
	UDP
)

func (p Protocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	default:
		return "unknown"
	}
}

func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "tcp":
		return TCP, nil
	case "udp":
		return UDP, nil
	default:
		return 0, BadEndpointError{Text: s}
	}
}

// Endpoint implements the `net.Addr` interface for a protocol and socket address pair.
type Endpoint struct {
	Protocol Protocol
	Addr     netip.AddrPort
}

func NewEndpoint(protocol Protocol, addr netip.AddrPort) Endpoint {
	return Endpoint{Protocol: protocol, Addr: addr}
}

// ParseEndpoint parses the form produced by String, e.g. "tcp://192.0.2.1:5483".
func ParseEndpoint(s string) (Endpoint, error) {
	proto, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Endpoint{}, BadEndpointError{Text: s}
	}
	p, err := ParseProtocol(proto)
	if err != nil {
		return Endpoint{}, BadEndpointError{Text: s}
	}
	addr, err := netip.ParseAddrPort(rest)
	if err != nil {
		return Endpoint{}, BadEndpointError{Text: s}
	}
	return Endpoint{Protocol: p, Addr: addr}, nil
}

// EndpointFromNetAddr converts the standard library's TCP and UDP addresses.
func EndpointFromNetAddr(a net.Addr) (ep Endpoint, ok bool) {
	switch v := a.(type) {
	case Endpoint:
		return v, true
	case *net.TCPAddr:
		return Endpoint{Protocol: TCP, Addr: unmap(v.AddrPort())}, true
	case *net.UDPAddr:
		return Endpoint{Protocol: UDP, Addr: unmap(v.AddrPort())}, true
	default:
		return Endpoint{}, false
	}
}

func unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// Network returns "tcp" or "udp".
func (e Endpoint) Network() string {
	return e.Protocol.String()
}

func (e Endpoint) String() string {
	return e.Protocol.String() + "://" + e.Addr.String()
}

func (e Endpoint) IsValid() bool {
	return (e.Protocol == TCP || e.Protocol == UDP) && e.Addr.IsValid()
}

func (e Endpoint) MarshalText() ([]byte, error) {
	if !e.IsValid() {
		return nil, BadEndpointError{Text: e.String()}
	}
	return []byte(e.String()), nil
}

func (e *Endpoint) UnmarshalText(text []byte) error {
	ep, err := ParseEndpoint(string(text))
	if err != nil {
		return err
	}
	*e = ep
	return nil
}

// Connection identifies a connection by protocol and both of its endpoints.
type Connection struct {
	Protocol  Protocol
	OurAddr   Endpoint
	TheirAddr Endpoint
}

// Peer returns the remote endpoint.
func (c Connection) Peer() Endpoint {
	return c.TheirAddr
}

func (c Connection) String() string {
	return c.OurAddr.String() + "->" + c.TheirAddr.String()
}

type BadEndpointError struct {
	Text string
}

func (e BadEndpointError) Error() string {
	return "BadEndpointError: " + e.Text
}

type BadAddressError struct{}

func (e BadAddressError) Error() string {
	return "BadAddressError"
}

type ClosedError struct{}

func (e ClosedError) Error() string {
	return "ClosedError"
}
