package core

// Handle identifies a pollable resource registered with the reactor's poller.
// Handles are allocated from a wrapping counter and are only meaningful while registered.
type Handle uint32

// SessionID identifies one logical session, which may own any number of handles.
// Session ids come from their own wrapping counter.
type SessionID uint64

// Registry relates handles to sessions and sessions to their states.
// Counters wrap silently: a process that allocates more than 2^32 handles or 2^64 sessions without
// releasing them may see an id reused while the old one is still live.
// The zero value is ready to use. A Registry is not safe for concurrent use; the Reactor only
// touches it from its own inbox, so code holding a Reactor may only use these methods, reads
// included, inside a Closure or a State callback.
type Registry struct {
	handleCounter  Handle
	sessionCounter SessionID
	sessions       map[Handle]SessionID
	states         map[SessionID]*Cell
}

func (reg *Registry) init(sessionCounter SessionID) {
	reg.sessionCounter = sessionCounter
	reg.sessions = make(map[Handle]SessionID)
	reg.states = make(map[SessionID]*Cell)
}

// NewHandle allocates the next handle. On a Reactor, call it from the reactor only.
func (reg *Registry) NewHandle() Handle {
	next := reg.handleCounter
	reg.handleCounter++
	return next
}

// NewSession allocates the next session id. On a Reactor, call it from the reactor only.
func (reg *Registry) NewSession() SessionID {
	next := reg.sessionCounter
	reg.sessionCounter++
	return next
}

// Bind records that h belongs to session s.
// If h was already bound, the previous session is returned with ok set.
// On a Reactor, call it from the reactor only.
func (reg *Registry) Bind(h Handle, s SessionID) (prev SessionID, ok bool) {
	if reg.sessions == nil {
		reg.sessions = make(map[Handle]SessionID)
	}
	prev, ok = reg.sessions[h]
	reg.sessions[h] = s
	return
}

// Unbind forgets h, returning the session it was bound to.
// On a Reactor, call it from the reactor only.
func (reg *Registry) Unbind(h Handle) (SessionID, bool) {
	s, ok := reg.sessions[h]
	if ok {
		delete(reg.sessions, h)
	}
	return s, ok
}

// Attach installs state for session s and returns the cell it replaced, if any.
// The replaced state is not terminated; that is left to the caller.
// On a Reactor, call it from the reactor only.
func (reg *Registry) Attach(s SessionID, state State) (prev *Cell) {
	if reg.states == nil {
		reg.states = make(map[SessionID]*Cell)
	}
	prev = reg.states[s]
	reg.states[s] = newCell(s, state)
	return prev
}

// Detach removes and returns the cell for session s, or nil.
// On a Reactor, call it from the reactor only.
func (reg *Registry) Detach(s SessionID) *Cell {
	c := reg.states[s]
	if c != nil {
		delete(reg.states, s)
	}
	return c
}

// Session returns the session h is bound to.
func (reg *Registry) Session(h Handle) (SessionID, bool) {
	s, ok := reg.sessions[h]
	return s, ok
}

// Cell returns the cell attached for session s, or nil.
func (reg *Registry) Cell(s SessionID) *Cell {
	return reg.states[s]
}

// Lookup resolves h to the state of its session, or nil if either step misses.
func (reg *Registry) Lookup(h Handle) *Cell {
	s, ok := reg.sessions[h]
	if !ok {
		return nil
	}
	return reg.states[s]
}

// Sessions returns a snapshot of the sessions that currently have a state attached.
func (reg *Registry) Sessions() []SessionID {
	ss := make([]SessionID, 0, len(reg.states))
	for s := range reg.states {
		ss = append(ss, s)
	}
	return ss
}

// Len returns the number of attached states.
func (reg *Registry) Len() int {
	return len(reg.states)
}
