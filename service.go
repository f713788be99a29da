package crust

import (
	"errors"
	"net/netip"
	"sync"

	"go.uber.org/multierr"

	"github.com/Fraser999/crust/bootstrap"
	"github.com/Fraser999/crust/core"
	"github.com/Fraser999/crust/event"
	"github.com/Fraser999/crust/rendezvous"
	"github.com/Fraser999/crust/types"
)

// Service owns a reactor, the goroutine polling for it and the event channel its states report to.
type Service struct {
	reactor    *core.Reactor
	events     *event.Channel
	config     config
	runErr     chan error
	closeMutex sync.Mutex
	closed     bool

	// owned by the reactor
	acceptor *bootstrap.Acceptor
	pending  int // bootstrap connects not yet answered
}

// NewService starts a Service. Nothing listens until Start is called.
func NewService(opts ...Option) (*Service, error) {
	s := new(Service)
	opts = append([]Option{configDefaults()}, opts...)
	for _, opt := range opts {
		opt(&s.config)
	}
	r, err := core.NewReactor(
		core.WithLogger(s.config.logger),
		core.WithSessionCounter(s.config.sessionCounter),
	)
	if err != nil {
		return nil, err
	}
	s.reactor = r
	s.events = event.NewChannel()
	s.runErr = make(chan error, 1)
	go func() {
		s.runErr <- r.Run()
	}()
	return s, nil
}

// Events returns the stream of events. It is closed once the Service is closed and every pending event
// has been received.
func (s *Service) Events() <-chan event.Event {
	return s.events.Recv()
}

// Start opens the bootstrap acceptor and returns the endpoint it listens on.
func (s *Service) Start() (types.Endpoint, error) {
	var ep types.Endpoint
	var err error
	if e := s.call(func(r *core.Reactor) {
		if s.acceptor != nil {
			err = StartedError{}
			return
		}
		var a *bootstrap.Acceptor
		if a, err = bootstrap.Listen(r, s.config.listenAddr, s.sink()); err != nil {
			return
		}
		s.acceptor = a
		ep = a.Endpoint()
	}); e != nil {
		return ep, e
	}
	return ep, err
}

// BootstrapConnect connects to ep. The outcome is reported as an OnBootstrapConnect carrying token.
// Once every bootstrap connect made so far has been answered, BootstrapFinished follows.
func (s *Service) BootstrapConnect(token uint32, ep types.Endpoint) error {
	return s.send(func(r *core.Reactor) {
		s.pending++
		bootstrap.Connect(r, token, ep, s.sink())
	})
}

// PrepareContactInfo prepares contact info for a hole punch. The outcome is reported as a
// ContactInfoPrepared carrying token. If STUN reported public addresses, ExternalEndpoints follows.
func (s *Service) PrepareContactInfo(token uint32) error {
	return s.send(func(r *core.Reactor) {
		cfg := rendezvous.Config{
			ListenAddr:  netip.AddrPortFrom(s.config.listenAddr.Addr(), 0),
			STUNServers: s.config.stunServers,
			STUNTimeout: s.config.stunTimeout,
		}
		if s.acceptor != nil {
			cfg.StaticAddrs = []types.Endpoint{s.acceptor.Endpoint()}
		}
		rendezvous.PrepareContactInfo(r, token, cfg, s.sink())
	})
}

// PunchHole punches a hole to the peer described by their, using the socket of our, which is taken
// over. The outcome is reported as an OnHolePunched carrying token.
func (s *Service) PunchHole(token uint32, our *event.OurContactInfo, their event.TheirContactInfo) error {
	return s.send(func(r *core.Reactor) {
		rendezvous.PunchHole(r, token, our, their, s.sink())
	})
}

// Connect reaches the peer described by their. Their static TCP endpoints are tried first, then a hole
// punch using the socket of our, which is taken over either way. The outcome is reported as exactly one
// OnConnect carrying token; a punched connection is a UDP socket connected to the peer.
func (s *Service) Connect(token uint32, our *event.OurContactInfo, their event.TheirContactInfo) error {
	return s.send(func(r *core.Reactor) {
		rendezvous.Connect(r, token, our, their, s.sink())
	})
}

// Close terminates every session, so each pending request is answered with a failure, then stops the
// reactor and closes the event channel.
func (s *Service) Close() error {
	s.closeMutex.Lock()
	defer s.closeMutex.Unlock()
	if s.closed {
		return ClosedError{}
	}
	s.closed = true
	err := s.reactor.Send(func(r *core.Reactor, p core.Poller) {
		for _, session := range r.Sessions() {
			r.Terminate(session)
		}
		s.acceptor = nil
	})
	err = multierr.Append(err, s.reactor.Close())
	// Run refuses with a ClosedError if Close got in before it started.
	if runErr := <-s.runErr; !errors.As(runErr, new(ClosedError)) {
		err = multierr.Append(err, runErr)
	}
	s.events.Close()
	if err != nil {
		s.config.logger.Warnln("service close:", err)
	}
	return err
}

// send queues fn on the reactor.
func (s *Service) send(fn func(r *core.Reactor)) error {
	s.closeMutex.Lock()
	defer s.closeMutex.Unlock()
	if s.closed {
		return ClosedError{}
	}
	return s.reactor.Send(func(r *core.Reactor, p core.Poller) {
		fn(r)
	})
}

// call runs fn on the reactor and waits for it.
func (s *Service) call(fn func(r *core.Reactor)) error {
	done := make(chan struct{})
	if err := s.send(func(r *core.Reactor) {
		defer close(done)
		fn(r)
	}); err != nil {
		return err
	}
	<-done
	return nil
}

func (s *Service) sink() event.Sink {
	return (*serviceSink)(s)
}

// serviceSink forwards events to the channel, adding the events the Service derives from them.
type serviceSink Service

func (ss *serviceSink) Send(ev event.Event) bool {
	ok := ss.events.Send(ev)
	switch ev := ev.(type) {
	case event.OnBootstrapConnect:
		// Always sent from the reactor.
		ss.pending--
		if ss.pending == 0 {
			ss.events.Send(event.BootstrapFinished{})
		}
	case event.ContactInfoPrepared:
		if ok && ev.Result.Ok() && len(ev.Result.Info.RendezvousAddrs) > 0 {
			eps := make([]types.Endpoint, 0, len(ev.Result.Info.RendezvousAddrs))
			for _, addr := range ev.Result.Info.RendezvousAddrs {
				eps = append(eps, types.NewEndpoint(types.UDP, addr))
			}
			ss.events.Send(event.ExternalEndpoints{Endpoints: eps})
		}
	}
	return ok
}
