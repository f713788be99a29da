package event

import (
	"net"
	"net/netip"

	"github.com/Fraser999/crust/types"
)

// FailedError stands in when a failure is reported without a cause.
type FailedError struct{}

func (e FailedError) Error() string {
	return "FailedError"
}

func failure(err error) error {
	if err == nil {
		return FailedError{}
	}
	return err
}

// ConnectResult is the outcome of a bootstrap or rendezvous connect.
// Either Err is set, or Endpoint, Connection and Stream are.
type ConnectResult struct {
	Token      uint32
	Endpoint   types.Endpoint
	Connection types.Connection
	Stream     net.Conn
	Err        error
}

func ConnectOk(token uint32, ep types.Endpoint, conn types.Connection, stream net.Conn) ConnectResult {
	return ConnectResult{Token: token, Endpoint: ep, Connection: conn, Stream: stream}
}

func ConnectErr(token uint32, err error) ConnectResult {
	return ConnectResult{Token: token, Err: failure(err)}
}

func (r ConnectResult) Ok() bool {
	return r.Err == nil
}

// ContactInfoResult is the outcome of preparing contact info. Either Info or Err is set.
type ContactInfoResult struct {
	Token uint32
	Info  *OurContactInfo
	Err   error
}

func ContactInfoOk(token uint32, info *OurContactInfo) ContactInfoResult {
	return ContactInfoResult{Token: token, Info: info}
}

func ContactInfoErr(token uint32, err error) ContactInfoResult {
	return ContactInfoResult{Token: token, Err: failure(err)}
}

func (r ContactInfoResult) Ok() bool {
	return r.Err == nil
}

// HolePunchResult is the outcome of a hole punch.
// Socket is handed back whether or not the punch succeeded; PeerAddr is only set on success.
type HolePunchResult struct {
	Token    uint32
	Socket   *types.Socket
	PeerAddr netip.AddrPort
	Err      error
}

func HolePunchOk(token uint32, socket *types.Socket, peer netip.AddrPort) HolePunchResult {
	return HolePunchResult{Token: token, Socket: socket, PeerAddr: peer}
}

func HolePunchErr(token uint32, socket *types.Socket, err error) HolePunchResult {
	return HolePunchResult{Token: token, Socket: socket, Err: failure(err)}
}

func (r HolePunchResult) Ok() bool {
	return r.Err == nil
}
