package crust

import "github.com/Fraser999/crust/core"

// ClosedError is returned by every method of a closed Service.
type ClosedError = core.ClosedError

// StartedError is returned by Start when the acceptor is already running.
type StartedError struct{}

func (e StartedError) Error() string {
	return "StartedError"
}
