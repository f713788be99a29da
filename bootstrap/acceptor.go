package bootstrap

import (
	"net/netip"
	"time"

	"github.com/Fraser999/crust/core"
	"github.com/Fraser999/crust/event"
	"github.com/Fraser999/crust/types"
)

const (
	acceptBacklog = 128
	// acceptBackoff is how long the listener is left alone after an accept failure it survives,
	// such as running out of file descriptors.
	acceptBackoff = 100 * time.Millisecond
)

// Acceptor listens for bootstrap connections and reports each one as an OnBootstrapAccept.
type Acceptor struct {
	session core.SessionID
	handle  core.Handle
	socket  *types.Socket
	sink    event.Sink
}

// Listen binds a TCP listener to addr and attaches an Acceptor for it under a new session.
func Listen(r *core.Reactor, addr netip.AddrPort, sink event.Sink) (*Acceptor, error) {
	socket, err := types.ListenTCP(addr, acceptBacklog)
	if err != nil {
		return nil, err
	}
	a := &Acceptor{
		session: r.NewSession(),
		socket:  socket,
		sink:    sink,
	}
	if a.handle, err = r.Register(socket.Fd(), a.session, core.EventRead); err != nil {
		socket.Close()
		return nil, err
	}
	if prev := r.Attach(a.session, a); prev != nil {
		r.Logger().Warnln("bootstrap acceptor replaced state of session", a.session)
	}
	r.Logger().Infoln("bootstrap acceptor listening on", socket.LocalEndpoint())
	return a, nil
}

// Session returns the session the acceptor is attached under.
func (a *Acceptor) Session() core.SessionID {
	return a.session
}

// Endpoint returns the address the acceptor listens on.
func (a *Acceptor) Endpoint() types.Endpoint {
	return a.socket.LocalEndpoint()
}

func (a *Acceptor) Ready(r *core.Reactor, p core.Poller, h core.Handle, ev core.Events) {
	for {
		conn, peer, err := a.socket.Accept()
		if types.WouldBlock(err) {
			return
		}
		if err != nil {
			r.Logger().Warnln("bootstrap accept failed:", err)
			if ev.Failed() {
				a.Terminate(r, p)
			} else {
				a.pause(r, p)
			}
			return
		}
		a.accepted(r, conn, peer)
	}
}

// pause stops polling the listener for acceptBackoff. The pending connection stays queued, so
// polling straight away would only fail again.
func (a *Acceptor) pause(r *core.Reactor, p core.Poller) {
	if err := p.Reregister(a.socket.Fd(), a.handle, 0); err != nil {
		r.Logger().Debugln("bootstrap acceptor pause:", err)
		return
	}
	time.AfterFunc(acceptBackoff, func() {
		r.Send(func(r *core.Reactor, p core.Poller) {
			if a.socket.Fd() < 0 {
				return
			}
			if err := p.Reregister(a.socket.Fd(), a.handle, core.EventRead); err != nil {
				r.Logger().Warnln("bootstrap acceptor resume:", err)
			}
		})
	})
}

func (a *Acceptor) accepted(r *core.Reactor, conn *types.Socket, peer netip.AddrPort) {
	connection := types.Connection{
		Protocol:  types.TCP,
		OurAddr:   conn.LocalEndpoint(),
		TheirAddr: types.NewEndpoint(types.TCP, peer),
	}
	stream, err := conn.Conn()
	if err != nil {
		r.Logger().Warnln("bootstrap accept from", peer, "failed:", err)
		conn.Close()
		return
	}
	r.Logger().Debugln("bootstrap accepted", connection)
	ev := event.OnBootstrapAccept{
		Endpoint:   connection.Peer(),
		Connection: connection,
		Stream:     stream,
	}
	if !a.sink.Send(ev) {
		stream.Close()
	}
}

// Terminate stops listening and removes the acceptor from the reactor.
func (a *Acceptor) Terminate(r *core.Reactor, p core.Poller) {
	if a.socket.Fd() < 0 {
		return
	}
	if err := r.Deregister(a.socket.Fd(), a.handle); err != nil {
		r.Logger().Debugln("bootstrap acceptor deregister:", err)
	}
	r.Detach(a.session)
	a.socket.Close()
	r.Logger().Infoln("bootstrap acceptor stopped")
}
