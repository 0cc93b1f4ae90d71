package canonical

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geo-atlas/atlas/internal/atlas/events"
	"github.com/geo-atlas/atlas/internal/atlas/graph"
	"github.com/geo-atlas/atlas/internal/atlas/transitive"
)

func id(b byte) events.SpaceId {
	var out events.SpaceId
	out[15] = b
	return out
}

func topic(b byte) events.TopicId {
	var out events.TopicId
	out[15] = b
	return out
}

func create(state *graph.State, space events.SpaceId, t events.TopicId) {
	state.Apply(events.NewSpaceCreatedEvent(events.BlockMetadata{}, space, t, events.SpaceType{}))
}

func verified(state *graph.State, source, target events.SpaceId) {
	state.Apply(events.NewTrustExtendedEvent(events.BlockMetadata{}, source, events.VerifiedExtension(target)))
}

// TestProcessor_LinearChain_EmitsOnEvents145 reproduces S1: emissions fire
// on events 1, 4 and 5 only.
func TestProcessor_LinearChain_EmitsOnEvents145(t *testing.T) {
	state := graph.NewState()
	tp := transitive.NewProcessor(nil)
	cp := NewProcessor(id(0x01))

	root := id(0x01)

	apply := func(event events.SpaceTopologyEvent) bool {
		tp.HandleEvent(event)
		state.Apply(event)
		_, changed := cp.Compute(state, tp)
		return changed
	}

	results := []bool{
		apply(events.NewSpaceCreatedEvent(events.BlockMetadata{}, root, topic(0xF1), events.SpaceType{})),
		apply(events.NewSpaceCreatedEvent(events.BlockMetadata{}, id(0x0A), topic(0xFA), events.SpaceType{})),
		apply(events.NewSpaceCreatedEvent(events.BlockMetadata{}, id(0x0B), topic(0xFB), events.SpaceType{})),
		apply(events.NewTrustExtendedEvent(events.BlockMetadata{}, root, events.VerifiedExtension(id(0x0A)))),
		apply(events.NewTrustExtendedEvent(events.BlockMetadata{}, id(0x0A), events.VerifiedExtension(id(0x0B)))),
	}

	require.Equal(t, []bool{true, false, false, true, true}, results)

	final := tp.GetFull(root, state)
	require.Equal(t, 3, final.NodeCount)
}

func TestProcessor_RootNotYetSeen_EmitsNothing(t *testing.T) {
	state := graph.NewState()
	tp := transitive.NewProcessor(nil)
	cp := NewProcessor(id(0x01))

	_, changed := cp.Compute(state, tp)
	require.False(t, changed)
}

func TestProcessor_IsolatedRoot_FiresOnceThenStaysQuiet(t *testing.T) {
	state := graph.NewState()
	tp := transitive.NewProcessor(nil)

	create(state, id(0x01), topic(0xF1))
	create(state, id(0x20), topic(0xF2))
	create(state, id(0x21), topic(0xF3))
	verified(state, id(0x20), id(0x21))

	cp := NewProcessor(id(0x01))
	_, changed := cp.Compute(state, tp)
	require.True(t, changed) // first observation of root 0x01 (empty tree) does emit once

	_, changedAgain := cp.Compute(state, tp)
	require.False(t, changedAgain, "no further change to root 0x01 means no further emission")
}
