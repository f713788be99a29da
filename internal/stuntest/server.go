// Package stuntest provides a loopback STUN server for tests.
package stuntest

import (
	"net"
	"net/netip"
	"testing"

	"github.com/pion/stun"
	"github.com/stretchr/testify/require"
)

// NewServer starts a server answering every binding request with the address it came from.
// It is closed when the test finishes.
func NewServer(t testing.TB) netip.AddrPort {
	conn := listen(t)
	go func() {
		buf := make([]byte, 1500)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req := new(stun.Message)
			req.Raw = append([]byte(nil), buf[:n]...)
			if err := req.Decode(); err != nil {
				continue
			}
			udp := from.(*net.UDPAddr)
			res, err := stun.Build(
				stun.NewTransactionIDSetter(req.TransactionID),
				stun.BindingSuccess,
				&stun.XORMappedAddress{IP: udp.IP, Port: udp.Port},
				stun.Fingerprint,
			)
			if err != nil {
				continue
			}
			conn.WriteTo(res.Raw, from)
		}
	}()
	return addrOf(conn)
}

// NewSilentServer returns the address of a bound UDP socket that never answers.
func NewSilentServer(t testing.TB) netip.AddrPort {
	return addrOf(listen(t))
}

func listen(t testing.TB) net.PacketConn {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
	})
	return conn
}

func addrOf(conn net.PacketConn) netip.AddrPort {
	ap := conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
