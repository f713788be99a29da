package event

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fraser999/crust/types"
)

func testContactInfo() *OurContactInfo {
	return &OurContactInfo{
		Socket: new(types.Socket),
		Secret: &[4]byte{1, 2, 3, 4},
		StaticAddrs: []types.Endpoint{
			types.NewEndpoint(types.TCP, netip.MustParseAddrPort("192.0.2.10:5483")),
			types.NewEndpoint(types.TCP, netip.MustParseAddrPort("[2001:db8::10]:5483")),
		},
		RendezvousAddrs: []netip.AddrPort{
			netip.MustParseAddrPort("198.51.100.1:40001"),
			netip.MustParseAddrPort("198.51.100.1:40002"),
		},
	}
}

func TestTheirInfoProjection(t *testing.T) {
	ours := testContactInfo()
	their := ours.TheirInfo()
	assert.Equal(t, ours.Secret, their.Secret)
	assert.Equal(t, ours.StaticAddrs, their.StaticAddrs)
	assert.Equal(t, ours.RendezvousAddrs, their.RendezvousAddrs)

	// the projection shares no memory with ours
	ours.Secret[0] = 9
	ours.StaticAddrs[0] = types.Endpoint{}
	ours.RendezvousAddrs[0] = netip.AddrPort{}
	assert.Equal(t, byte(1), their.Secret[0])
	assert.True(t, their.StaticAddrs[0].IsValid())
	assert.True(t, their.RendezvousAddrs[0].IsValid())
}

func TestTheirInfoWithoutSecret(t *testing.T) {
	ours := testContactInfo()
	ours.Secret = nil
	ours.StaticAddrs = nil
	ours.RendezvousAddrs = []netip.AddrPort{}
	their := ours.TheirInfo()
	assert.Nil(t, their.Secret)
	assert.Nil(t, their.StaticAddrs)
	assert.NotNil(t, their.RendezvousAddrs)
	assert.Empty(t, their.RendezvousAddrs)
}

func TestTheirInfoEncoding(t *testing.T) {
	their := testContactInfo().TheirInfo()
	data, err := their.MarshalBinary()
	require.NoError(t, err)
	again, err := their.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding must be deterministic")

	var got TheirContactInfo
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, their, got)

	their.Secret = nil
	data, err = their.MarshalBinary()
	require.NoError(t, err)
	got = TheirContactInfo{}
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Nil(t, got.Secret)
	assert.Equal(t, their.StaticAddrs, got.StaticAddrs)
}

func TestTheirInfoDecodeGarbage(t *testing.T) {
	var got TheirContactInfo
	assert.Error(t, got.UnmarshalBinary([]byte{0xff, 0x00, 0x01}))
}
