package event

import (
	"net"

	"github.com/Fraser999/crust/types"
)

// Event is an asynchronous outcome reported to the owner of the engine.
// The set of events is closed: NewMessage, OnBootstrapConnect, OnConnect, OnBootstrapAccept,
// LostConnection, BootstrapFinished, ExternalEndpoints, ContactInfoPrepared and OnHolePunched.
type Event interface {
	isEvent()
}

// Correlated is implemented by events answering a request made with a result token.
type Correlated interface {
	Event
	Token() uint32
}

// NewMessage carries a payload received on an established connection.
type NewMessage struct {
	Connection types.Connection
	Payload    []byte
}

// OnBootstrapConnect reports the outcome of an outbound bootstrap connect.
type OnBootstrapConnect struct {
	Result ConnectResult
}

// OnConnect reports the outcome of a rendezvous connect.
type OnConnect struct {
	Result ConnectResult
}

// OnBootstrapAccept reports an inbound bootstrap connection.
// Stream is handed to the owner; framing on it is the owner's business.
type OnBootstrapAccept struct {
	Endpoint   types.Endpoint
	Connection types.Connection
	Stream     net.Conn
}

// LostConnection reports that an established connection failed or closed.
type LostConnection struct {
	Connection types.Connection
}

// BootstrapFinished reports that the bootstrap phase as a whole is over.
type BootstrapFinished struct{}

// ExternalEndpoints reports addresses we are reachable on from outside.
type ExternalEndpoints struct {
	Endpoints []types.Endpoint
}

// ContactInfoPrepared answers a contact info request.
type ContactInfoPrepared struct {
	Result ContactInfoResult
}

// OnHolePunched answers a hole punch request.
type OnHolePunched struct {
	Result HolePunchResult
}

func (NewMessage) isEvent()          {}
func (OnBootstrapConnect) isEvent()  {}
func (OnConnect) isEvent()           {}
func (OnBootstrapAccept) isEvent()   {}
func (LostConnection) isEvent()      {}
func (BootstrapFinished) isEvent()   {}
func (ExternalEndpoints) isEvent()   {}
func (ContactInfoPrepared) isEvent() {}
func (OnHolePunched) isEvent()       {}

func (e OnBootstrapConnect) Token() uint32  { return e.Result.Token }
func (e OnConnect) Token() uint32           { return e.Result.Token }
func (e ContactInfoPrepared) Token() uint32 { return e.Result.Token }
func (e OnHolePunched) Token() uint32       { return e.Result.Token }
