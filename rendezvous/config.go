package rendezvous

import (
	"net/netip"
	"time"

	"github.com/Fraser999/crust/types"
)

const defaultSTUNTimeout = 3 * time.Second

// Config controls how contact info is prepared.
type Config struct {
	// ListenAddr is where the UDP socket is bound. The zero value binds every interface on a random port.
	ListenAddr netip.AddrPort
	// STUNServers are queried in order for the socket's public address.
	STUNServers []netip.AddrPort
	// STUNTimeout bounds the wait for each server. Zero means three seconds.
	STUNTimeout time.Duration
	// StaticAddrs are passed through to the contact info, e.g. the endpoint of a bootstrap acceptor.
	StaticAddrs []types.Endpoint
}

func (cfg *Config) timeout() time.Duration {
	if cfg.STUNTimeout <= 0 {
		return defaultSTUNTimeout
	}
	return cfg.STUNTimeout
}
