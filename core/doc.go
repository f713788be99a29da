// Package core implements the reactor at the centre of crust.
//
// A Reactor owns an epoll poller and a Registry relating poller Handles to SessionIDs and SessionIDs to
// States. Readiness reported by the poller is routed Handle -> SessionID -> State, and the State's Ready
// method is invoked on the reactor. Other goroutines never touch the registry or a State directly; they
// submit a Closure with Send, which runs on the reactor with the same privileges as a Ready handler.
//
// Stale identities are expected: readiness for a handle that has been unbound, or termination of a
// session without a state, is silently ignored.
package core
