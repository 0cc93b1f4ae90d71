package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geo-atlas/atlas/internal/atlas/events"
)

func applyCreate(s *State, space events.SpaceId, topic events.TopicId) {
	s.Apply(events.NewSpaceCreatedEvent(events.BlockMetadata{}, space, topic, events.SpaceType{}))
}

func applyVerified(s *State, source, target events.SpaceId) {
	s.Apply(events.NewTrustExtendedEvent(events.BlockMetadata{}, source, events.VerifiedExtension(target)))
}

func applySubtopic(s *State, source events.SpaceId, target events.TopicId) {
	s.Apply(events.NewTrustExtendedEvent(events.BlockMetadata{}, source, events.SubtopicExtension(target)))
}

func TestState_SpaceTopic_FirstWriterWins(t *testing.T) {
	s := NewState()
	space := makeID(0x01)
	applyCreate(s, space, makeTopic(0xA1))
	applyCreate(s, space, makeTopic(0xA2))

	topic, ok := s.SpaceTopicOf(space)
	require.True(t, ok)
	require.Equal(t, makeTopic(0xA1), topic)
	require.Equal(t, 1, s.SpaceCount())
}

func TestState_TopicSpaces_IsInverseOfSpaceTopic(t *testing.T) {
	s := NewState()
	topic := makeTopic(0xA1)
	applyCreate(s, makeID(0x0A), topic)
	applyCreate(s, makeID(0x0B), topic)
	applyCreate(s, makeID(0x0C), makeTopic(0xA2))

	members := s.TopicMembersOf(topic)
	require.ElementsMatch(t, []events.SpaceId{makeID(0x0A), makeID(0x0B)}, members)
}

func TestState_TopicEdgeSources_IsInverseOfTopicEdges(t *testing.T) {
	s := NewState()
	target := makeTopic(0xFF)
	applySubtopic(s, makeID(0x01), target)
	applySubtopic(s, makeID(0x02), target)

	sources := s.TopicEdgeSourcesOf(target)
	require.ElementsMatch(t, []events.SpaceId{makeID(0x01), makeID(0x02)}, sources)
}

func TestState_ExplicitEdges_NoDeduplication(t *testing.T) {
	s := NewState()
	source := makeID(0x01)
	applyVerified(s, source, makeID(0x0A))
	applyVerified(s, source, makeID(0x0A))

	require.Len(t, s.ExplicitEdgesOf(source), 2)
	require.Equal(t, 2, s.ExplicitEdgeCount())
}

func TestState_ExplicitEdges_PreserveInsertionOrder(t *testing.T) {
	s := NewState()
	source := makeID(0x01)
	applyVerified(s, source, makeID(0x0A))
	s.Apply(events.NewTrustExtendedEvent(events.BlockMetadata{}, source, events.RelatedExtension(makeID(0x0B))))
	applyVerified(s, source, makeID(0x0C))

	edges := s.ExplicitEdgesOf(source)
	require.Equal(t, []ExplicitEdge{
		{Target: makeID(0x0A), Kind: events.EdgeVerified},
		{Target: makeID(0x0B), Kind: events.EdgeRelated},
		{Target: makeID(0x0C), Kind: events.EdgeVerified},
	}, edges)
}

func TestState_ContainsSpace(t *testing.T) {
	s := NewState()
	require.False(t, s.ContainsSpace(makeID(0x01)))
	applyCreate(s, makeID(0x01), makeTopic(0x01))
	require.True(t, s.ContainsSpace(makeID(0x01)))
}
