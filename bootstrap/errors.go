package bootstrap

import "github.com/Fraser999/crust/types"

// ProtocolError is returned for an endpoint whose protocol cannot be used for bootstrapping.
type ProtocolError struct {
	Protocol types.Protocol
}

func (e ProtocolError) Error() string {
	return "ProtocolError: " + e.Protocol.String()
}
