package core

import (
	"sync"

	"github.com/Arceliar/phony"
)

// Reactor owns the identity registry and the poller.
// All registry access and every State callback happen on the reactor's inbox, one at a time:
// readiness batches are delivered to it by Run, and Closures by Send.
type Reactor struct {
	Registry
	actor   phony.Inbox
	config  config
	poller  *epoll
	mutex   sync.RWMutex
	closed  bool
	running bool
	done    chan struct{}
}

// NewReactor returns a Reactor with its poller open. Call Run to start polling.
func NewReactor(opts ...Option) (*Reactor, error) {
	r := new(Reactor)
	if err := r.init(opts...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reactor) init(opts ...Option) error {
	opts = append([]Option{configDefaults()}, opts...)
	for _, opt := range opts {
		opt(&r.config)
	}
	poller, err := newPoller(r.config.maxEvents)
	if err != nil {
		return err
	}
	r.poller = poller
	r.Registry.init(r.config.sessionCounter)
	r.done = make(chan struct{})
	return nil
}

// Poller returns the poller states register their resources with.
func (r *Reactor) Poller() Poller {
	return r.poller
}

func (r *Reactor) Logger() Logger {
	return r.config.logger
}

// Run polls for readiness and dispatches it until Close is called.
// It returns nil after Close, or the poller's error if polling fails.
func (r *Reactor) Run() error {
	r.mutex.Lock()
	switch {
	case r.closed:
		r.mutex.Unlock()
		return ClosedError{}
	case r.running:
		r.mutex.Unlock()
		return RunningError{}
	}
	r.running = true
	r.mutex.Unlock()
	defer close(r.done)
	r.config.logger.Debugln("reactor running")
	batch := make([]readiness, r.config.maxEvents)
	for {
		n, err := r.poller.wait(batch)
		if r.IsClosed() {
			r.config.logger.Debugln("reactor stopped")
			return nil
		}
		if err != nil {
			r.config.logger.Errorln("reactor poll failed:", err)
			return err
		}
		if n == 0 {
			continue
		}
		phony.Block(&r.actor, func() {
			for _, rd := range batch[:n] {
				r._ready(rd.handle, rd.events)
			}
		})
	}
}

// Close stops Run, waits for every Closure accepted so far to execute, and releases the poller.
// States are left as they are; terminating them is up to their owners.
// Close must not be called from the reactor itself.
func (r *Reactor) Close() error {
	r.mutex.Lock()
	if r.closed {
		r.mutex.Unlock()
		return ClosedError{}
	}
	r.closed = true
	running := r.running
	r.mutex.Unlock()
	if running {
		if err := r.poller.wake(); err != nil {
			r.config.logger.Warnln("reactor wakeup failed:", err)
		}
		<-r.done
	}
	phony.Block(&r.actor, func() {})
	return r.poller.close()
}

// IsClosed returns true if and only if Close has been called.
func (r *Reactor) IsClosed() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.closed
}

// Flush blocks until every Closure and readiness batch queued before the call has run.
// It must not be called from the reactor itself.
func (r *Reactor) Flush() {
	phony.Block(&r.actor, func() {})
}

// Terminate calls Terminate on the state of session s, if it has one.
// The state stays attached; detaching it is the state's own business.
func (r *Reactor) Terminate(s SessionID) {
	c := r.Cell(s)
	if c == nil {
		return
	}
	c.Borrow(func(st State) {
		st.Terminate(r, r.poller)
	})
}

// Register allocates a handle for fd, registers it with the poller and binds it to session s.
func (r *Reactor) Register(fd int, s SessionID, interest Events) (Handle, error) {
	h := r.NewHandle()
	if err := r.poller.Register(fd, h, interest); err != nil {
		return h, err
	}
	if prev, ok := r.Bind(h, s); ok {
		r.config.logger.Warnf("handle %d rebound from session %d to %d", h, prev, s)
	}
	return h, nil
}

// Deregister removes fd from the poller and unbinds h.
// The handle is unbound even if the poller refuses, so no further readiness reaches the session.
func (r *Reactor) Deregister(fd int, h Handle) error {
	r.Unbind(h)
	return r.poller.Deregister(fd)
}

func (r *Reactor) _ready(h Handle, ev Events) {
	c := r.Lookup(h)
	if c == nil {
		r.config.logger.Traceln("dropping readiness for unbound handle", h)
		return
	}
	c.Borrow(func(st State) {
		st.Ready(r, r.poller, h, ev)
	})
}
