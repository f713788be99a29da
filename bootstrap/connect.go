package bootstrap

import (
	"github.com/Fraser999/crust/core"
	"github.com/Fraser999/crust/event"
	"github.com/Fraser999/crust/types"
)

// connect is an outbound, non-blocking TCP connect waiting for its socket to become writable.
type connect struct {
	token    uint32
	session  core.SessionID
	handle   core.Handle
	endpoint types.Endpoint
	socket   *types.Socket
	sink     event.Sink
	done     bool
}

// Connect starts a bootstrap connection to ep and returns the session tracking it.
// Exactly one OnBootstrapConnect carrying token is sent to sink, whether the connect succeeds, fails,
// or the session is terminated first. If the connect fails before a session exists, the event is
// sent straight away and ok is false.
func Connect(r *core.Reactor, token uint32, ep types.Endpoint, sink event.Sink) (s core.SessionID, ok bool) {
	if ep.Protocol != types.TCP {
		sink.Send(event.OnBootstrapConnect{Result: event.ConnectErr(token, ProtocolError{ep.Protocol})})
		return 0, false
	}
	socket, err := types.DialTCP(ep.Addr)
	if err != nil {
		sink.Send(event.OnBootstrapConnect{Result: event.ConnectErr(token, err)})
		return 0, false
	}
	c := &connect{
		token:    token,
		session:  r.NewSession(),
		endpoint: ep,
		socket:   socket,
		sink:     sink,
	}
	if c.handle, err = r.Register(socket.Fd(), c.session, core.EventWrite); err != nil {
		socket.Close()
		sink.Send(event.OnBootstrapConnect{Result: event.ConnectErr(token, err)})
		return 0, false
	}
	if prev := r.Attach(c.session, c); prev != nil {
		r.Logger().Warnln("bootstrap connect replaced state of session", c.session)
	}
	r.Logger().Debugln("bootstrap connecting to", ep, "token", token, "session", c.session)
	return c.session, true
}

func (c *connect) Ready(r *core.Reactor, p core.Poller, h core.Handle, ev core.Events) {
	if !ev.Writable() && !ev.Failed() {
		return
	}
	err := c.socket.SockError()
	if err == nil {
		_, err = c.socket.PeerAddr()
	}
	c.release(r)
	if err != nil {
		c.socket.Close()
		c.finish(r, event.ConnectErr(c.token, err))
		return
	}
	connection := types.Connection{
		Protocol:  types.TCP,
		OurAddr:   c.socket.LocalEndpoint(),
		TheirAddr: c.endpoint,
	}
	stream, err := c.socket.Conn()
	if err != nil {
		c.socket.Close()
		c.finish(r, event.ConnectErr(c.token, err))
		return
	}
	c.finish(r, event.ConnectOk(c.token, c.endpoint, connection, stream))
}

func (c *connect) Terminate(r *core.Reactor, p core.Poller) {
	if c.done {
		return
	}
	c.release(r)
	c.socket.Close()
	c.finish(r, event.ConnectErr(c.token, core.ClosedError{}))
}

func (c *connect) release(r *core.Reactor) {
	if err := r.Deregister(c.socket.Fd(), c.handle); err != nil {
		r.Logger().Debugln("bootstrap connect deregister:", err)
	}
	r.Detach(c.session)
}

func (c *connect) finish(r *core.Reactor, result event.ConnectResult) {
	c.done = true
	if result.Ok() {
		r.Logger().Infoln("bootstrap connected to", c.endpoint)
	} else {
		r.Logger().Debugln("bootstrap connect to", c.endpoint, "failed:", result.Err)
	}
	if !c.sink.Send(event.OnBootstrapConnect{Result: result}) && result.Stream != nil {
		result.Stream.Close()
	}
}
