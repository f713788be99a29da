package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/gologme/log"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

const beaconAddrString = ":5484"
const groupAddrString = "[ff02::114]:5484"
const beaconInterval = 3 * time.Second

// beacon is 8 bytes of node id followed by the big endian port of the bootstrap acceptor.
const beaconSize = 10

// beacon announces our bootstrap acceptor on the link-local multicast group of every interface,
// and reports the acceptors other nodes announce.
type beacon struct {
	conn   *ipv6.PacketConn
	group  *net.UDPAddr
	id     [8]byte
	port   uint16
	logger *log.Logger
}

func newBeacon(port uint16, logger *log.Logger) (*beacon, error) {
	group, err := net.ResolveUDPAddr("udp6", groupAddrString)
	if err != nil {
		return nil, err
	}
	reuse := func(network, address string, c syscall.RawConn) (err error) {
		_ = c.Control(func(fd uintptr) {
			err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		return
	}
	lc := net.ListenConfig{
		Control: reuse,
	}
	conn, err := lc.ListenPacket(context.Background(), "udp6", beaconAddrString)
	if err != nil {
		return nil, err
	}
	b := &beacon{
		conn:   ipv6.NewPacketConn(conn),
		group:  group,
		port:   port,
		logger: logger,
	}
	if _, err := rand.Read(b.id[:]); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *beacon) Close() error {
	return b.conn.Close()
}

// announce sends a beacon every few seconds until ctx is done.
func (b *beacon) announce(ctx context.Context) {
	msg := make([]byte, beaconSize)
	copy(msg, b.id[:])
	binary.BigEndian.PutUint16(msg[len(b.id):], b.port)
	ticker := time.NewTicker(beaconInterval)
	defer ticker.Stop()
	for {
		b.announceOnce(msg)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *beacon) announceOnce(msg []byte) {
	intfs, err := net.Interfaces()
	if err != nil {
		b.logger.Warnln("listing interfaces:", err)
		return
	}
	for _, intf := range intfs {
		if intf.Flags&net.FlagUp == 0 || intf.Flags&net.FlagMulticast == 0 {
			continue
		}
		addrs, err := intf.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			addrIP, _, _ := net.ParseCIDR(addr.String())
			if addrIP.To4() != nil || !addrIP.IsLinkLocalUnicast() {
				continue
			}
			tmp := intf
			_ = b.conn.JoinGroup(&tmp, b.group)
			dest := *b.group
			dest.Zone = tmp.Name
			if _, err := b.conn.WriteTo(msg, nil, &dest); err != nil {
				b.logger.Debugln("beacon on", tmp.Name, "failed:", err)
			}
			break
		}
	}
}

// listen calls found for every beacon of another node, until the beacon is closed.
func (b *beacon) listen(found func(id [8]byte, acceptor netip.AddrPort)) {
	buf := make([]byte, 2048)
	for {
		n, _, from, err := b.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if n != beaconSize {
			continue
		}
		var id [8]byte
		copy(id[:], buf)
		if id == b.id {
			continue
		}
		udp, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(udp.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if udp.Zone != "" && ip.Is6() {
			ip = ip.WithZone(udp.Zone)
		}
		port := binary.BigEndian.Uint16(buf[len(id):n])
		found(id, netip.AddrPortFrom(ip, port))
	}
}
