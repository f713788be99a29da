package rendezvous

import (
	"context"
	"net/netip"
	"time"

	"github.com/pion/stun"

	"github.com/Fraser999/crust/core"
	"github.com/Fraser999/crust/types"
)

const stunBufferSize = 1500

// mappedAddrs asks every server for the public address of socket, skipping servers that fail.
// Duplicates are reported once, in the order first seen. It gives up early if ctx is done.
func mappedAddrs(ctx context.Context, socket *types.Socket, servers []netip.AddrPort, timeout time.Duration, logger core.Logger) []netip.AddrPort {
	var addrs []netip.AddrPort
	seen := make(map[netip.AddrPort]struct{})
	for _, server := range servers {
		if ctx.Err() != nil {
			break
		}
		addr, err := queryMappedAddr(ctx, socket, server, timeout)
		if err != nil {
			logger.Debugln("stun query to", server, "failed:", err)
			continue
		}
		logger.Debugln("stun server", server, "maps us to", addr)
		if _, isIn := seen[addr]; isIn {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	return addrs
}

// queryMappedAddr sends one binding request and waits for the matching response.
func queryMappedAddr(ctx context.Context, socket *types.Socket, server netip.AddrPort, timeout time.Duration) (netip.AddrPort, error) {
	req, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if _, err := socket.SendTo(req.Raw, server); err != nil {
		return netip.AddrPort{}, err
	}
	deadline := time.Now().Add(timeout)
	buf := make([]byte, stunBufferSize)
	for {
		n, from, err := socket.RecvFrom(buf)
		if types.WouldBlock(err) {
			if err := waitReadable(ctx, socket.Fd(), time.Until(deadline)); err != nil {
				return netip.AddrPort{}, err
			}
			continue
		}
		if err != nil {
			return netip.AddrPort{}, err
		}
		if from != server {
			continue
		}
		res := new(stun.Message)
		res.Raw = append([]byte(nil), buf[:n]...)
		if err := res.Decode(); err != nil {
			continue
		}
		if res.TransactionID != req.TransactionID {
			continue
		}
		return mappedAddr(res)
	}
}

func mappedAddr(res *stun.Message) (netip.AddrPort, error) {
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(res); err == nil {
		return toAddrPort(xorAddr.IP, xorAddr.Port)
	}
	var addr stun.MappedAddress
	if err := addr.GetFrom(res); err != nil {
		return netip.AddrPort{}, err
	}
	return toAddrPort(addr.IP, addr.Port)
}

func toAddrPort(ip []byte, port int) (netip.AddrPort, error) {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.AddrPort{}, types.BadAddressError{}
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(port)), nil
}
