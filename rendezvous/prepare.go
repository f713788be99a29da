package rendezvous

import (
	"context"
	"crypto/rand"
	"net/netip"
	"slices"
	"sync/atomic"

	"github.com/Fraser999/crust/core"
	"github.com/Fraser999/crust/event"
	"github.com/Fraser999/crust/types"
)

// preparation is the session of a contact info request while STUN is queried on its own goroutine.
type preparation struct {
	token    uint32
	session  core.SessionID
	sink     event.Sink
	cancel   context.CancelFunc
	answered atomic.Bool
}

// PrepareContactInfo binds a UDP socket, draws a secret and learns the socket's public addresses from
// cfg.STUNServers. STUN is queried on a separate goroutine while the request is attached to the
// reactor under the returned session; the outcome is handed back through the reactor. Exactly one
// ContactInfoPrepared carrying token is sent to sink: the contact info, the failure, or a ClosedError
// if the session is terminated or the reactor closed first.
// It must be called on the reactor.
func PrepareContactInfo(r *core.Reactor, token uint32, cfg Config, sink event.Sink) core.SessionID {
	ctx, cancel := context.WithCancel(context.Background())
	pr := &preparation{
		token:   token,
		session: r.NewSession(),
		sink:    sink,
		cancel:  cancel,
	}
	if prev := r.Attach(pr.session, pr); prev != nil {
		r.Logger().Warnln("contact info preparation replaced state of session", pr.session)
	}
	logger := r.Logger()
	go func() {
		defer cancel()
		info, err := prepare(ctx, cfg, logger)
		result := event.ContactInfoOk(token, info)
		if err != nil {
			logger.Debugln("contact info for token", token, "failed:", err)
			result = event.ContactInfoErr(token, err)
		}
		err = r.Send(func(r *core.Reactor, p core.Poller) {
			if c := r.Cell(pr.session); c != nil && c.State() == core.State(pr) {
				r.Detach(pr.session)
			}
			pr.answer(result)
		})
		if err != nil {
			pr.answer(event.ContactInfoErr(token, err))
			if info != nil {
				info.Close()
			}
		}
	}()
	return pr.session
}

// answer sends result unless the request has been answered already, in which case the contact info
// in it is closed.
func (pr *preparation) answer(result event.ContactInfoResult) {
	if !pr.answered.CompareAndSwap(false, true) || !pr.sink.Send(event.ContactInfoPrepared{Result: result}) {
		if result.Info != nil {
			result.Info.Close()
		}
	}
}

func (pr *preparation) Ready(r *core.Reactor, p core.Poller, h core.Handle, ev core.Events) {}

// Terminate answers with a ClosedError and stops the STUN queries.
func (pr *preparation) Terminate(r *core.Reactor, p core.Poller) {
	r.Detach(pr.session)
	pr.cancel()
	pr.answer(event.ContactInfoErr(pr.token, core.ClosedError{}))
}

func prepare(ctx context.Context, cfg Config, logger core.Logger) (*event.OurContactInfo, error) {
	socket, err := types.ListenUDP(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	secret := new([4]byte)
	if _, err := rand.Read(secret[:]); err != nil {
		socket.Close()
		return nil, err
	}
	info := &event.OurContactInfo{
		Socket:      socket,
		Secret:      secret,
		StaticAddrs: slices.Clone(cfg.StaticAddrs),
	}
	if len(cfg.STUNServers) == 0 {
		info.RendezvousAddrs = []netip.AddrPort{}
		return info, nil
	}
	info.RendezvousAddrs = mappedAddrs(ctx, socket, cfg.STUNServers, cfg.timeout(), logger)
	if err := ctx.Err(); err != nil {
		socket.Close()
		return nil, err
	}
	if len(info.RendezvousAddrs) == 0 {
		socket.Close()
		return nil, NoMappingError{}
	}
	return info, nil
}
