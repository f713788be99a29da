//go:build linux

package bootstrap

import (
	"io"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/Fraser999/crust/core"
	"github.com/Fraser999/crust/event"
	"github.com/Fraser999/crust/types"
)

func startReactor(t *testing.T) *core.Reactor {
	r, err := core.NewReactor()
	require.NoError(t, err)
	go r.Run()
	t.Cleanup(func() {
		r.Close()
	})
	return r
}

func onReactor(t *testing.T, r *core.Reactor, fn func(r *core.Reactor)) {
	require.NoError(t, r.Send(func(r *core.Reactor, p core.Poller) {
		fn(r)
	}))
	r.Flush()
}

func newSink(t *testing.T) *event.Channel {
	ch := event.NewChannel()
	t.Cleanup(ch.Close)
	return ch
}

func nextEvent(t *testing.T, ch *event.Channel) event.Event {
	t.Helper()
	select {
	case ev := <-ch.Recv():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
		return nil
	}
}

func noEvent(t *testing.T, ch *event.Channel) {
	t.Helper()
	select {
	case ev := <-ch.Recv():
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func localEndpoint(t *testing.T, l net.Listener) types.Endpoint {
	ep, ok := types.EndpointFromNetAddr(l.Addr())
	require.True(t, ok)
	return ep
}

func TestConnect(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	l, err := nettest.NewLocalListener("tcp4")
	require.NoError(t, err)
	defer l.Close()
	ep := localEndpoint(t, l)

	onReactor(t, r, func(r *core.Reactor) {
		_, ok := Connect(r, 7, ep, sink)
		assert.True(t, ok)
	})
	peer, err := l.Accept()
	require.NoError(t, err)
	defer peer.Close()

	ev := nextEvent(t, sink)
	require.IsType(t, event.OnBootstrapConnect{}, ev)
	result := ev.(event.OnBootstrapConnect).Result
	require.True(t, result.Ok(), "%v", result.Err)
	assert.Equal(t, uint32(7), result.Token)
	assert.Equal(t, ep, result.Endpoint)
	assert.Equal(t, ep, result.Connection.TheirAddr)
	assert.Equal(t, types.TCP, result.Connection.Protocol)
	assert.Equal(t, peer.RemoteAddr().String(), result.Connection.OurAddr.Addr.String())

	defer result.Stream.Close()
	_, err = result.Stream.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	onReactor(t, r, func(r *core.Reactor) {
		assert.Zero(t, r.Len())
	})
	noEvent(t, sink)
}

func TestConnectRefused(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	l, err := nettest.NewLocalListener("tcp4")
	require.NoError(t, err)
	ep := localEndpoint(t, l)
	l.Close()

	onReactor(t, r, func(r *core.Reactor) {
		Connect(r, 3, ep, sink)
	})
	result := nextEvent(t, sink).(event.OnBootstrapConnect).Result
	assert.False(t, result.Ok())
	assert.Equal(t, uint32(3), result.Token)
	assert.Nil(t, result.Stream)
	noEvent(t, sink)
}

func TestConnectWrongProtocol(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	ep := types.NewEndpoint(types.UDP, netip.MustParseAddrPort("127.0.0.1:5483"))
	onReactor(t, r, func(r *core.Reactor) {
		_, ok := Connect(r, 4, ep, sink)
		assert.False(t, ok)
		assert.Zero(t, r.Len())
	})
	result := nextEvent(t, sink).(event.OnBootstrapConnect).Result
	assert.ErrorIs(t, result.Err, ProtocolError{types.UDP})
}

func TestConnectTerminated(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	l, err := nettest.NewLocalListener("tcp4")
	require.NoError(t, err)
	defer l.Close()
	ep := localEndpoint(t, l)

	onReactor(t, r, func(r *core.Reactor) {
		s, ok := Connect(r, 11, ep, sink)
		assert.True(t, ok)
		r.Terminate(s)
		r.Terminate(s)
		assert.Nil(t, r.Cell(s))
	})
	result := nextEvent(t, sink).(event.OnBootstrapConnect).Result
	assert.Equal(t, uint32(11), result.Token)
	var closed core.ClosedError
	assert.ErrorAs(t, result.Err, &closed)
	noEvent(t, sink)
}

func TestAcceptor(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	var a *Acceptor
	onReactor(t, r, func(r *core.Reactor) {
		var err error
		a, err = Listen(r, netip.MustParseAddrPort("127.0.0.1:0"), sink)
		assert.NoError(t, err)
	})
	require.NotNil(t, a)
	ep := a.Endpoint()
	require.NotZero(t, ep.Addr.Port())

	conns := make([]net.Conn, 3)
	for idx := range conns {
		conn, err := net.Dial(ep.Network(), ep.Addr.String())
		require.NoError(t, err)
		defer conn.Close()
		conns[idx] = conn
	}
	seen := make(map[string]net.Conn)
	for range conns {
		ev := nextEvent(t, sink).(event.OnBootstrapAccept)
		assert.Equal(t, ep, ev.Connection.OurAddr)
		assert.Equal(t, ev.Endpoint, ev.Connection.TheirAddr)
		seen[ev.Endpoint.Addr.String()] = ev.Stream
		defer ev.Stream.Close()
	}
	for _, conn := range conns {
		stream := seen[conn.LocalAddr().String()]
		require.NotNil(t, stream, conn.LocalAddr())
		_, err := stream.Write([]byte("pong"))
		require.NoError(t, err)
		buf := make([]byte, 4)
		_, err = io.ReadFull(conn, buf)
		require.NoError(t, err)
		assert.Equal(t, "pong", string(buf))
	}

	onReactor(t, r, func(r *core.Reactor) {
		r.Terminate(a.Session())
		assert.Nil(t, r.Cell(a.Session()))
	})
	_, err := net.Dial(ep.Network(), ep.Addr.String())
	assert.Error(t, err)
	noEvent(t, sink)
}

func TestConnectToAcceptor(t *testing.T) {
	r := startReactor(t)
	sink := newSink(t)
	onReactor(t, r, func(r *core.Reactor) {
		a, err := Listen(r, netip.MustParseAddrPort("127.0.0.1:0"), sink)
		if !assert.NoError(t, err) {
			return
		}
		Connect(r, 1, a.Endpoint(), sink)
	})
	var connected event.ConnectResult
	var accepted event.OnBootstrapAccept
	for idx := 0; idx < 2; idx++ {
		switch ev := nextEvent(t, sink).(type) {
		case event.OnBootstrapConnect:
			connected = ev.Result
		case event.OnBootstrapAccept:
			accepted = ev
		default:
			t.Fatalf("unexpected event %#v", ev)
		}
	}
	require.True(t, connected.Ok())
	require.NotNil(t, accepted.Stream)
	defer connected.Stream.Close()
	defer accepted.Stream.Close()
	assert.Equal(t, connected.Connection.OurAddr, accepted.Connection.TheirAddr)
	assert.Equal(t, connected.Connection.TheirAddr, accepted.Connection.OurAddr)
}
