package core

// Closure is a unit of work executed exactly once on the reactor, with the same privileges as a State handler.
// It may be built on any goroutine; whatever it captures must be safe to hand to the reactor.
type Closure func(r *Reactor, p Poller)

// Send queues c to run on the reactor. Closures run in the order they were accepted.
// If the reactor has been closed, c is dropped and a ClosedError is returned.
func (r *Reactor) Send(c Closure) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.closed {
		return ClosedError{}
	}
	r.actor.Act(nil, func() {
		c(r, r.poller)
	})
	return nil
}
