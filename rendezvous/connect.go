package rendezvous

import (
	"github.com/Fraser999/crust/bootstrap"
	"github.com/Fraser999/crust/core"
	"github.com/Fraser999/crust/event"
	"github.com/Fraser999/crust/types"
)

// connector is a connect request. Their static TCP endpoints are tried one after another, then a hole
// punch to their rendezvous addresses. Each attempt runs as its own session, the child.
type connector struct {
	reactor  *core.Reactor
	token    uint32
	session  core.SessionID
	our      *event.OurContactInfo
	their    event.TheirContactInfo
	statics  []types.Endpoint
	punched  bool
	child    core.SessionID
	inFlight bool
	starting bool
	lastErr  error
	sink     event.Sink
	done     bool
}

// Connect reaches the peer described by their and reports exactly one OnConnect carrying token. The
// socket of our is taken over: it is used for the hole punch, or closed if a static endpoint answers
// first. A punched UDP socket is connected to the peer and handed over as the stream.
// Connect must be called on the reactor; it returns the session of the request, or false if every
// attempt failed at once.
func Connect(r *core.Reactor, token uint32, our *event.OurContactInfo, their event.TheirContactInfo, sink event.Sink) (s core.SessionID, ok bool) {
	if our == nil {
		our = new(event.OurContactInfo)
	}
	c := &connector{
		reactor: r,
		token:   token,
		session: r.NewSession(),
		our:     our,
		their:   their,
		sink:    sink,
	}
	for _, ep := range their.StaticAddrs {
		if ep.Protocol == types.TCP {
			c.statics = append(c.statics, ep)
		}
	}
	if prev := r.Attach(c.session, c); prev != nil {
		r.Logger().Warnln("connect replaced state of session", c.session)
	}
	r.Logger().Debugln("connecting token", token, "session", c.session)
	c.advance(r)
	if c.done {
		return 0, false
	}
	return c.session, true
}

// advance starts the next attempt, skipping attempts that fail at once, and reports the failure once
// none is left.
func (c *connector) advance(r *core.Reactor) {
	for !c.done && !c.inFlight {
		c.starting = true
		more := c.startNext(r)
		c.starting = false
		if !more {
			if c.lastErr == nil {
				c.lastErr = UnreachableError{}
			}
			c.finish(r, event.ConnectErr(c.token, c.lastErr))
		}
	}
}

func (c *connector) startNext(r *core.Reactor) bool {
	if len(c.statics) > 0 {
		ep := c.statics[0]
		c.statics = c.statics[1:]
		if s, ok := bootstrap.Connect(r, c.token, ep, (*attemptSink)(c)); ok {
			c.child, c.inFlight = s, true
		}
		return true
	}
	if c.punched {
		return false
	}
	c.punched = true
	if s, ok := PunchHole(r, c.token, c.our, c.their, (*attemptSink)(c)); ok {
		c.child, c.inFlight = s, true
	}
	return true
}

func (c *connector) Ready(r *core.Reactor, p core.Poller, h core.Handle, ev core.Events) {}

// Terminate stops the attempt in flight and answers with a ClosedError.
func (c *connector) Terminate(r *core.Reactor, p core.Poller) {
	if c.done {
		return
	}
	c.done = true
	if c.inFlight {
		r.Terminate(c.child)
	}
	c.our.Close()
	r.Detach(c.session)
	c.report(r, event.ConnectErr(c.token, core.ClosedError{}))
}

func (c *connector) finish(r *core.Reactor, result event.ConnectResult) {
	c.done = true
	c.our.Close()
	r.Detach(c.session)
	c.report(r, result)
}

func (c *connector) report(r *core.Reactor, result event.ConnectResult) {
	if result.Ok() {
		r.Logger().Infoln("connected", result.Connection)
	} else {
		r.Logger().Debugln("connect for token", c.token, "failed:", result.Err)
	}
	if !c.sink.Send(event.OnConnect{Result: result}) && result.Stream != nil {
		result.Stream.Close()
	}
}

// attemptSink receives the outcome of the attempt in flight. Attempts report on the reactor.
type attemptSink connector

func (as *attemptSink) Send(ev event.Event) bool {
	c := (*connector)(as)
	r := c.reactor
	c.inFlight = false
	switch ev := ev.(type) {
	case event.OnBootstrapConnect:
		switch {
		case c.done:
			if ev.Result.Stream != nil {
				ev.Result.Stream.Close()
			}
		case ev.Result.Ok():
			c.finish(r, ev.Result)
		default:
			c.lastErr = ev.Result.Err
		}
	case event.OnHolePunched:
		switch {
		case c.done:
			ev.Result.Socket.Close()
		case ev.Result.Ok():
			c.punchedTo(r, ev.Result)
		default:
			ev.Result.Socket.Close()
			c.lastErr = ev.Result.Err
		}
	}
	if !c.starting {
		c.advance(r)
	}
	return true
}

// punchedTo hands the punched socket over as a stream connected to the peer.
func (c *connector) punchedTo(r *core.Reactor, result event.HolePunchResult) {
	socket := result.Socket
	connection := types.Connection{
		Protocol:  types.UDP,
		OurAddr:   socket.LocalEndpoint(),
		TheirAddr: types.NewEndpoint(types.UDP, result.PeerAddr),
	}
	if err := socket.ConnectTo(result.PeerAddr); err != nil {
		socket.Close()
		c.lastErr = err
		return
	}
	stream, err := socket.Conn()
	if err != nil {
		socket.Close()
		c.lastErr = err
		return
	}
	c.finish(r, event.ConnectOk(c.token, connection.TheirAddr, connection, stream))
}
