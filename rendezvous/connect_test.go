//go:build linux

package rendezvous

import (
	"io"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/Fraser999/crust/bootstrap"
	"github.com/Fraser999/crust/core"
	"github.com/Fraser999/crust/event"
	"github.com/Fraser999/crust/internal/stuntest"
	"github.com/Fraser999/crust/types"
)

func refusedEndpoint(t *testing.T) types.Endpoint {
	l, err := nettest.NewLocalListener("tcp4")
	require.NoError(t, err)
	ep, ok := types.EndpointFromNetAddr(l.Addr())
	require.True(t, ok)
	l.Close()
	return ep
}

func connected(t *testing.T, sink *event.Channel, token uint32) event.ConnectResult {
	t.Helper()
	ev := nextEvent(t, sink)
	require.IsType(t, event.OnConnect{}, ev)
	result := ev.(event.OnConnect).Result
	require.Equal(t, token, result.Token)
	return result
}

func TestConnectStatic(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	accepts := newSink(t)
	our := prepared(t, r, sink, 1, Config{ListenAddr: loopback})
	refused := refusedEndpoint(t)

	var ep types.Endpoint
	onReactor(t, r, func(r *core.Reactor) {
		a, err := bootstrap.Listen(r, netip.MustParseAddrPort("127.0.0.1:0"), accepts)
		if !assert.NoError(t, err) {
			return
		}
		ep = a.Endpoint()
		their := event.TheirContactInfo{
			StaticAddrs: []types.Endpoint{
				types.NewEndpoint(types.UDP, netip.MustParseAddrPort("127.0.0.1:9")),
				refused,
				ep,
			},
		}
		_, ok := Connect(r, 21, our, their, sink)
		assert.True(t, ok)
	})

	result := connected(t, sink, 21)
	require.True(t, result.Ok(), "%v", result.Err)
	defer result.Stream.Close()
	assert.Equal(t, types.TCP, result.Connection.Protocol)
	assert.Equal(t, ep, result.Endpoint)
	assert.Equal(t, ep, result.Connection.TheirAddr)

	accepted := nextEvent(t, accepts).(event.OnBootstrapAccept)
	defer accepted.Stream.Close()
	assert.Equal(t, result.Connection.OurAddr, accepted.Connection.TheirAddr)
	_, err := result.Stream.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(accepted.Stream, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	onReactor(t, r, func(r *core.Reactor) {
		assert.Equal(t, 1, r.Len(), "only the acceptor is left")
	})
	noEvent(t, sink)
}

func TestConnectFallsBackToHolePunch(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	server := stuntest.NewServer(t)
	cfg := Config{ListenAddr: loopback, STUNServers: []netip.AddrPort{server}}
	a := prepared(t, r, sink, 1, cfg)
	b := prepared(t, r, sink, 2, cfg)
	aAddr, bAddr := a.Socket.LocalAddr(), b.Socket.LocalAddr()
	aInfo, bInfo := a.TheirInfo(), b.TheirInfo()
	bInfo.StaticAddrs = []types.Endpoint{refusedEndpoint(t)}

	onReactor(t, r, func(r *core.Reactor) {
		_, ok := Connect(r, 7, a, bInfo, sink)
		assert.True(t, ok)
		_, ok = PunchHole(r, 9, b, aInfo, sink)
		assert.True(t, ok)
	})

	var result event.ConnectResult
	var punched event.HolePunchResult
	for idx := 0; idx < 2; idx++ {
		switch ev := nextEvent(t, sink).(type) {
		case event.OnConnect:
			result = ev.Result
		case event.OnHolePunched:
			punched = ev.Result
		default:
			t.Fatalf("unexpected event %#v", ev)
		}
	}
	require.Equal(t, uint32(7), result.Token)
	require.True(t, result.Ok(), "%v", result.Err)
	defer result.Stream.Close()
	require.True(t, punched.Ok(), "%v", punched.Err)
	defer punched.Socket.Close()
	assert.Equal(t, types.NewEndpoint(types.UDP, bAddr), result.Connection.TheirAddr)
	assert.Equal(t, types.NewEndpoint(types.UDP, aAddr), result.Connection.OurAddr)
	assert.Equal(t, aAddr, punched.PeerAddr)

	_, err := result.Stream.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 64)
	deadline := time.Now().Add(5 * time.Second)
	for {
		n, from, err := punched.Socket.RecvFrom(buf)
		if types.WouldBlock(err) {
			require.True(t, time.Now().Before(deadline), "nothing received")
			time.Sleep(time.Millisecond)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, aAddr, from)
		if string(buf[:n]) == "hello" {
			break
		}
	}
	noEvent(t, sink)
}

func TestConnectUnreachable(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	our := prepared(t, r, sink, 1, Config{ListenAddr: loopback})
	their := event.TheirContactInfo{StaticAddrs: []types.Endpoint{refusedEndpoint(t)}}
	onReactor(t, r, func(r *core.Reactor) {
		_, ok := Connect(r, 3, our, their, sink)
		assert.True(t, ok)
	})
	result := connected(t, sink, 3)
	assert.ErrorIs(t, result.Err, UnreachableError{})
	assert.Nil(t, result.Stream)
	onReactor(t, r, func(r *core.Reactor) {
		assert.Zero(t, r.Len())
	})
	noEvent(t, sink)
}

func TestConnectFailsAtOnce(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	onReactor(t, r, func(r *core.Reactor) {
		_, ok := Connect(r, 4, nil, event.TheirContactInfo{}, sink)
		assert.False(t, ok)
		assert.Zero(t, r.Len())
	})
	result := connected(t, sink, 4)
	var closed types.ClosedError
	assert.ErrorAs(t, result.Err, &closed)
	noEvent(t, sink)
}

func TestConnectTerminated(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	our := prepared(t, r, sink, 1, Config{ListenAddr: loopback})
	their := event.TheirContactInfo{RendezvousAddrs: []netip.AddrPort{stuntest.NewSilentServer(t)}}
	var s core.SessionID
	onReactor(t, r, func(r *core.Reactor) {
		var ok bool
		s, ok = Connect(r, 5, our, their, sink)
		assert.True(t, ok)
		assert.Equal(t, 2, r.Len())
	})
	onReactor(t, r, func(r *core.Reactor) {
		r.Terminate(s)
		assert.Nil(t, r.Cell(s))
		assert.Zero(t, r.Len())
	})
	result := connected(t, sink, 5)
	var closed core.ClosedError
	assert.ErrorAs(t, result.Err, &closed)
	noEvent(t, sink)
}
