package event

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Fraser999/crust/types"
)

func TestResultsAreSuccessOrFailure(t *testing.T) {
	ep := types.NewEndpoint(types.TCP, netip.MustParseAddrPort("192.0.2.1:1"))
	ok := ConnectOk(3, ep, types.Connection{Protocol: types.TCP}, nil)
	assert.True(t, ok.Ok())
	assert.Equal(t, uint32(3), ok.Token)

	cause := errors.New("refused")
	bad := ConnectErr(4, cause)
	assert.False(t, bad.Ok())
	assert.ErrorIs(t, bad.Err, cause)
	assert.Equal(t, types.Endpoint{}, bad.Endpoint)
	assert.Nil(t, bad.Stream)

	info := ContactInfoOk(5, &OurContactInfo{})
	assert.True(t, info.Ok())
	noInfo := ContactInfoErr(6, cause)
	assert.False(t, noInfo.Ok())
	assert.Nil(t, noInfo.Info)

	punched := HolePunchOk(7, nil, netip.MustParseAddrPort("198.51.100.1:9"))
	assert.True(t, punched.Ok())
	missed := HolePunchErr(9, nil, cause)
	assert.False(t, missed.Ok())
	assert.False(t, missed.PeerAddr.IsValid())
}

func TestFailureWithoutCause(t *testing.T) {
	var failed FailedError
	assert.ErrorAs(t, ConnectErr(1, nil).Err, &failed)
	assert.ErrorAs(t, ContactInfoErr(1, nil).Err, &failed)
	assert.ErrorAs(t, HolePunchErr(1, nil, nil).Err, &failed)
}

func TestCorrelatedTokens(t *testing.T) {
	events := []Event{
		OnBootstrapConnect{Result: ConnectErr(1, nil)},
		OnConnect{Result: ConnectErr(2, nil)},
		ContactInfoPrepared{Result: ContactInfoErr(3, nil)},
		OnHolePunched{Result: HolePunchErr(4, nil, nil)},
	}
	for idx, ev := range events {
		c, ok := ev.(Correlated)
		if assert.True(t, ok) {
			assert.Equal(t, uint32(idx+1), c.Token())
		}
	}
	for _, ev := range []Event{NewMessage{}, OnBootstrapAccept{}, LostConnection{}, BootstrapFinished{}, ExternalEndpoints{}} {
		_, ok := ev.(Correlated)
		assert.False(t, ok, "%T", ev)
	}
}
