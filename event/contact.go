package event

import (
	"net/netip"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/Fraser999/crust/types"
)

// OurContactInfo is generated locally by a contact info request.
type OurContactInfo struct {
	// Socket is the bound UDP socket the rendezvous addresses were mapped for.
	Socket *types.Socket
	// Secret is exchanged during a rendezvous connect, if set.
	Secret *[4]byte
	// StaticAddrs are our directly reachable listening endpoints.
	StaticAddrs []types.Endpoint
	// RendezvousAddrs are the externally mapped addresses of Socket.
	RendezvousAddrs []netip.AddrPort
}

// TheirContactInfo is the part of a peer's contact info that travels out of band.
type TheirContactInfo struct {
	Secret          *[4]byte         `cbor:"1,keyasint,omitempty"`
	StaticAddrs     []types.Endpoint `cbor:"2,keyasint"`
	RendezvousAddrs []netip.AddrPort `cbor:"3,keyasint"`
}

// TheirInfo projects our contact info onto what may be sent to a peer, leaving the socket behind.
func (info *OurContactInfo) TheirInfo() TheirContactInfo {
	their := TheirContactInfo{
		StaticAddrs:     slices.Clone(info.StaticAddrs),
		RendezvousAddrs: slices.Clone(info.RendezvousAddrs),
	}
	if info.Secret != nil {
		secret := *info.Secret
		their.Secret = &secret
	}
	return their
}

// Close closes the socket, for an owner that is not going to punch with it.
func (info *OurContactInfo) Close() error {
	return info.Socket.Close()
}

// theirContactInfo has no methods, so encoding it does not recurse into MarshalBinary.
type theirContactInfo TheirContactInfo

// MarshalBinary encodes the contact info as deterministic CBOR.
func (info TheirContactInfo) MarshalBinary() ([]byte, error) {
	return encMode.Marshal(theirContactInfo(info))
}

func (info *TheirContactInfo) UnmarshalBinary(data []byte) error {
	var tmp theirContactInfo
	if err := decMode.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*info = TheirContactInfo(tmp)
	return nil
}

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	// Endpoints travel as their "tcp://addr:port" text form.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	if encMode, err = encOptions.EncMode(); err != nil {
		panic("event: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("event: CBOR decoder initialization failed: " + err.Error())
	}
}
