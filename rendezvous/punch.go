package rendezvous

import (
	"bytes"
	"net/netip"

	"github.com/Fraser999/crust/core"
	"github.com/Fraser999/crust/event"
	"github.com/Fraser999/crust/types"
)

const punchBufferSize = 64

// punch waits on our socket for a datagram carrying their secret.
type punch struct {
	token   uint32
	session core.SessionID
	handle  core.Handle
	socket  *types.Socket
	ours    []byte
	theirs  *[4]byte
	peers   []netip.AddrPort
	sink    event.Sink
	done    bool
}

// PunchHole takes over the socket of our contact info and tries to reach the peer described by
// their. Our secret is sent to each of their rendezvous addresses; the first datagram from any
// of those addresses that carries their secret completes the punch. A nil secret on their side
// accepts any datagram from their addresses, and a nil secret on ours is sent as an empty datagram.
//
// Exactly one OnHolePunched carrying token is sent to sink. The socket is handed back in it, punched
// or not. PunchHole must be called on the reactor; it returns the session of the punch, or false if it
// failed at once.
func PunchHole(r *core.Reactor, token uint32, our *event.OurContactInfo, their event.TheirContactInfo, sink event.Sink) (s core.SessionID, ok bool) {
	socket := our.Socket
	our.Socket = nil
	if socket == nil || socket.Fd() < 0 {
		sink.Send(event.OnHolePunched{Result: event.HolePunchErr(token, socket, types.ClosedError{})})
		return 0, false
	}
	pn := &punch{
		token:   token,
		session: r.NewSession(),
		socket:  socket,
		theirs:  their.Secret,
		peers:   their.RendezvousAddrs,
		sink:    sink,
	}
	if our.Secret != nil {
		pn.ours = our.Secret[:]
	}
	var err error
	if pn.handle, err = r.Register(socket.Fd(), pn.session, core.EventRead); err != nil {
		pn.finish(r, event.HolePunchErr(token, socket, err))
		return 0, false
	}
	if prev := r.Attach(pn.session, pn); prev != nil {
		r.Logger().Warnln("hole punch replaced state of session", pn.session)
	}
	var sent int
	for _, peer := range pn.peers {
		if _, err := socket.SendTo(pn.ours, peer); err != nil {
			r.Logger().Debugln("hole punch send to", peer, "failed:", err)
			continue
		}
		sent++
	}
	if sent == 0 {
		pn.release(r)
		pn.finish(r, event.HolePunchErr(token, socket, UnreachableError{}))
		return 0, false
	}
	r.Logger().Debugln("hole punching to", pn.peers, "token", token, "session", pn.session)
	return pn.session, true
}

func (pn *punch) Ready(r *core.Reactor, p core.Poller, h core.Handle, ev core.Events) {
	buf := make([]byte, punchBufferSize)
	for !pn.done {
		n, from, err := pn.socket.RecvFrom(buf)
		if types.WouldBlock(err) {
			return
		}
		if err != nil {
			// Usually an ICMP error from one of their addresses; the others may still answer.
			r.Logger().Debugln("hole punch receive failed:", err)
			return
		}
		if !pn.accepts(from, buf[:n]) {
			continue
		}
		// Answer once more so the peer completes even if our first datagrams were dropped by its NAT.
		if _, err := pn.socket.SendTo(pn.ours, from); err != nil {
			r.Logger().Debugln("hole punch reply to", from, "failed:", err)
		}
		pn.release(r)
		pn.finish(r, event.HolePunchOk(pn.token, pn.socket, from))
	}
}

func (pn *punch) accepts(from netip.AddrPort, payload []byte) bool {
	for _, peer := range pn.peers {
		if peer != from {
			continue
		}
		return pn.theirs == nil || bytes.Equal(payload, pn.theirs[:])
	}
	return false
}

func (pn *punch) Terminate(r *core.Reactor, p core.Poller) {
	if pn.done {
		return
	}
	pn.release(r)
	pn.finish(r, event.HolePunchErr(pn.token, pn.socket, core.ClosedError{}))
}

func (pn *punch) release(r *core.Reactor) {
	if err := r.Deregister(pn.socket.Fd(), pn.handle); err != nil {
		r.Logger().Debugln("hole punch deregister:", err)
	}
	r.Detach(pn.session)
}

func (pn *punch) finish(r *core.Reactor, result event.HolePunchResult) {
	pn.done = true
	if result.Ok() {
		r.Logger().Infoln("hole punched to", result.PeerAddr)
	} else {
		r.Logger().Debugln("hole punch for token", pn.token, "failed:", result.Err)
	}
	if !pn.sink.Send(event.OnHolePunched{Result: result}) {
		pn.socket.Close()
	}
}
