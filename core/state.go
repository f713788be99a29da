package core

import "sync/atomic"

// State is implemented by every session in flight (listeners, connectors, hole punchers, established streams).
// Both methods are only ever called on the reactor, and must not block.
type State interface {
	// Ready is called when the resource registered under h has the given readiness.
	Ready(r *Reactor, p Poller, h Handle, ev Events)
	// Terminate asks the state to tear itself down.
	// The state is responsible for deregistering its handles and detaching itself.
	Terminate(r *Reactor, p Poller)
}

// Cell holds a State that may be reached both from the registry and from a queued Closure.
// At most one borrow may be in flight; a second one panics with a BorrowError.
type Cell struct {
	session  SessionID
	state    State
	borrowed atomic.Bool
}

func newCell(session SessionID, state State) *Cell {
	return &Cell{session: session, state: state}
}

// Session returns the session the cell was attached under.
func (c *Cell) Session() SessionID {
	return c.session
}

// State returns the wrapped state without borrowing it.
func (c *Cell) State() State {
	if c == nil {
		return nil
	}
	return c.state
}

// Borrow runs fn with exclusive access to the wrapped state.
func (c *Cell) Borrow(fn func(State)) {
	if !c.borrowed.CompareAndSwap(false, true) {
		panic(BorrowError{Session: c.session})
	}
	defer c.borrowed.Store(false)
	fn(c.state)
}

// Borrowed reports whether a borrow is currently in flight.
func (c *Cell) Borrowed() bool {
	return c.borrowed.Load()
}
