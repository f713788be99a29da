package core

// Events is a readiness mask, both as registration interest and as delivered readiness.
type Events uint32

const (
	EventRead Events = 1 << iota
	EventWrite
	EventError
	EventHangup
)

func (ev Events) Readable() bool { return ev&EventRead != 0 }
func (ev Events) Writable() bool { return ev&EventWrite != 0 }

// Failed reports an error or hangup condition on the resource.
func (ev Events) Failed() bool { return ev&(EventError|EventHangup) != 0 }

// Poller is the registration side of the OS poller.
// A file descriptor is registered under a Handle, and readiness for it is delivered to the Reactor as that Handle.
type Poller interface {
	Register(fd int, h Handle, interest Events) error
	Reregister(fd int, h Handle, interest Events) error
	Deregister(fd int) error
}

type readiness struct {
	handle Handle
	events Events
}
