package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopState struct {
	name string
}

func (s *nopState) Ready(r *Reactor, p Poller, h Handle, ev Events) {}
func (s *nopState) Terminate(r *Reactor, p Poller)                  {}

func TestRegistryIdsDistinct(t *testing.T) {
	var reg Registry
	handles := make(map[Handle]struct{})
	sessions := make(map[SessionID]struct{})
	for idx := 0; idx < 1000; idx++ {
		h := reg.NewHandle()
		s := reg.NewSession()
		_, dupH := handles[h]
		_, dupS := sessions[s]
		require.False(t, dupH, "handle %d issued twice", h)
		require.False(t, dupS, "session %d issued twice", s)
		handles[h] = struct{}{}
		sessions[s] = struct{}{}
	}
}

// Wraparound reuses ids; collisions after 2^N allocations are accepted.
func TestRegistryCountersWrap(t *testing.T) {
	var reg Registry
	reg.handleCounter = math.MaxUint32
	assert.Equal(t, Handle(math.MaxUint32), reg.NewHandle())
	assert.Equal(t, Handle(0), reg.NewHandle())

	reg.init(math.MaxUint64)
	assert.Equal(t, SessionID(math.MaxUint64), reg.NewSession())
	assert.Equal(t, SessionID(0), reg.NewSession())
}

func TestRegistrySessionCounterStart(t *testing.T) {
	var reg Registry
	reg.init(100)
	assert.Equal(t, SessionID(100), reg.NewSession())
	assert.Equal(t, SessionID(101), reg.NewSession())
	assert.Equal(t, Handle(0), reg.NewHandle())
}

func TestRegistryBind(t *testing.T) {
	var reg Registry
	h := reg.NewHandle()
	_, ok := reg.Bind(h, 1)
	assert.False(t, ok)
	prev, ok := reg.Bind(h, 2)
	assert.True(t, ok)
	assert.Equal(t, SessionID(1), prev)
	s, ok := reg.Session(h)
	assert.True(t, ok)
	assert.Equal(t, SessionID(2), s)
}

func TestRegistryAttachReturnsPrevious(t *testing.T) {
	var reg Registry
	a := &nopState{name: "a"}
	b := &nopState{name: "b"}
	assert.Nil(t, reg.Attach(7, a))
	prev := reg.Attach(7, b)
	require.NotNil(t, prev)
	assert.Same(t, a, prev.State())
	assert.Same(t, b, reg.Cell(7).State())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryLookup(t *testing.T) {
	var reg Registry
	st := &nopState{}
	h := reg.NewHandle()
	s := reg.NewSession()

	assert.Nil(t, reg.Lookup(h), "unbound handle")
	reg.Bind(h, s)
	assert.Nil(t, reg.Lookup(h), "bound handle without state")
	reg.Attach(s, st)
	require.NotNil(t, reg.Lookup(h))
	assert.Same(t, st, reg.Lookup(h).State())

	got, ok := reg.Unbind(h)
	assert.True(t, ok)
	assert.Equal(t, s, got)
	assert.Nil(t, reg.Lookup(h))

	reg.Bind(h, s)
	removed := reg.Detach(s)
	require.NotNil(t, removed)
	assert.Same(t, st, removed.State())
	assert.Nil(t, reg.Lookup(h))
}

func TestRegistryRemoveAbsent(t *testing.T) {
	var reg Registry
	_, ok := reg.Unbind(42)
	assert.False(t, ok)
	assert.Nil(t, reg.Detach(42))
	assert.Nil(t, reg.Cell(42))
	assert.Empty(t, reg.Sessions())
}

func TestRegistrySessions(t *testing.T) {
	var reg Registry
	reg.Attach(1, &nopState{})
	reg.Attach(2, &nopState{})
	reg.Attach(3, &nopState{})
	reg.Detach(2)
	assert.ElementsMatch(t, []SessionID{1, 3}, reg.Sessions())
}
