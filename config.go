package crust

import (
	"io"
	"net/netip"
	"time"

	"github.com/gologme/log"

	"github.com/Fraser999/crust/core"
)

type config struct {
	listenAddr     netip.AddrPort
	stunServers    []netip.AddrPort
	stunTimeout    time.Duration
	logger         core.Logger
	sessionCounter core.SessionID
}

type Option func(*config)

func configDefaults() Option {
	return func(c *config) {
		c.listenAddr = netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
		c.stunTimeout = 3 * time.Second
		c.logger = log.New(io.Discard, "", 0)
	}
}

// WithListenAddr sets where the bootstrap acceptor listens. The UDP sockets of contact info are bound
// to the same IP on a random port.
func WithListenAddr(addr netip.AddrPort) Option {
	return func(c *config) {
		c.listenAddr = addr
	}
}

// WithSTUNServers sets the servers asked for our public UDP addresses.
func WithSTUNServers(servers ...netip.AddrPort) Option {
	return func(c *config) {
		c.stunServers = append([]netip.AddrPort(nil), servers...)
	}
}

func WithSTUNTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.stunTimeout = timeout
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSessionCounter reserves the sessions below start for the owner.
func WithSessionCounter(start core.SessionID) Option {
	return func(c *config) {
		c.sessionCounter = start
	}
}
