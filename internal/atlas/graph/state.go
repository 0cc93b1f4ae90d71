package graph

import "github.com/geo-atlas/atlas/internal/atlas/events"

// ExplicitEdge is a stored (target, kind) pair in a space's explicit edge
// log. The log is append-only and keeps insertion order; duplicates are
// tolerated because the log is canonical, not a deduplicated set.
type ExplicitEdge struct {
	Target events.SpaceId
	Kind   events.EdgeKind
}

// State is the authoritative in-memory topology graph. It is mutated only
// by apply and is never shared across goroutines, so it carries no locks
// (contrast the teacher's StructuralMemory, which is mutex-guarded because
// it is read and written from concurrent rule evaluations — Atlas's
// pipeline driver is strictly serial, so the mutex would be dead weight).
type State struct {
	spaces     map[events.SpaceId]struct{}
	spaceTopic map[events.SpaceId]events.TopicId

	// topicSpaces is the reverse index over spaceTopic: topic -> spaces
	// that announced it.
	topicSpaces map[events.TopicId]map[events.SpaceId]struct{}

	explicitEdges map[events.SpaceId][]ExplicitEdge

	topicEdges map[events.SpaceId]map[events.TopicId]struct{}

	// topicEdgeSources is the reverse index over topicEdges: topic ->
	// spaces holding a topic edge to it.
	topicEdgeSources map[events.TopicId]map[events.SpaceId]struct{}
}

// NewState returns an empty graph.
func NewState() *State {
	return &State{
		spaces:           make(map[events.SpaceId]struct{}),
		spaceTopic:       make(map[events.SpaceId]events.TopicId),
		topicSpaces:      make(map[events.TopicId]map[events.SpaceId]struct{}),
		explicitEdges:    make(map[events.SpaceId][]ExplicitEdge),
		topicEdges:       make(map[events.SpaceId]map[events.TopicId]struct{}),
		topicEdgeSources: make(map[events.TopicId]map[events.SpaceId]struct{}),
	}
}

// Apply mutates the graph for one event. It never fails and never blocks.
func (s *State) Apply(event events.SpaceTopologyEvent) {
	switch event.PayloadKind {
	case events.PayloadSpaceCreated:
		s.applySpaceCreated(event.SpaceCreated)
	case events.PayloadTrustExtended:
		s.applyTrustExtended(event.TrustExtended)
	}
}

func (s *State) applySpaceCreated(created events.SpaceCreated) {
	s.spaces[created.SpaceId] = struct{}{}

	// First writer wins: a space's announced topic is set once. A
	// redundant SpaceCreated for an already-known space still lands
	// harmlessly in the spaces set but never overwrites spaceTopic.
	if _, exists := s.spaceTopic[created.SpaceId]; !exists {
		s.spaceTopic[created.SpaceId] = created.TopicId
	}

	members, ok := s.topicSpaces[created.TopicId]
	if !ok {
		members = make(map[events.SpaceId]struct{})
		s.topicSpaces[created.TopicId] = members
	}
	members[created.SpaceId] = struct{}{}
}

func (s *State) applyTrustExtended(extended events.TrustExtended) {
	source := extended.SourceSpaceId

	switch extended.Extension.Kind {
	case events.ExtensionVerified:
		s.explicitEdges[source] = append(s.explicitEdges[source], ExplicitEdge{
			Target: extended.Extension.TargetSpaceId,
			Kind:   events.EdgeVerified,
		})
	case events.ExtensionRelated:
		s.explicitEdges[source] = append(s.explicitEdges[source], ExplicitEdge{
			Target: extended.Extension.TargetSpaceId,
			Kind:   events.EdgeRelated,
		})
	case events.ExtensionSubtopic:
		target := extended.Extension.TargetTopicId

		edges, ok := s.topicEdges[source]
		if !ok {
			edges = make(map[events.TopicId]struct{})
			s.topicEdges[source] = edges
		}
		edges[target] = struct{}{}

		sources, ok := s.topicEdgeSources[target]
		if !ok {
			sources = make(map[events.SpaceId]struct{})
			s.topicEdgeSources[target] = sources
		}
		sources[source] = struct{}{}
	}
}

// ContainsSpace reports whether spaceId has been observed.
func (s *State) ContainsSpace(spaceId events.SpaceId) bool {
	_, ok := s.spaces[spaceId]
	return ok
}

// SpaceTopicOf returns the topic announced by spaceId, if known.
func (s *State) SpaceTopicOf(spaceId events.SpaceId) (events.TopicId, bool) {
	t, ok := s.spaceTopic[spaceId]
	return t, ok
}

// TopicMembersOf returns the spaces that announced topicId, in no
// particular order; callers that need determinism sort the result.
func (s *State) TopicMembersOf(topicId events.TopicId) []events.SpaceId {
	members := s.topicSpaces[topicId]
	out := make([]events.SpaceId, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	return out
}

// ExplicitEdgesOf returns the explicit edge log for spaceId in insertion order.
func (s *State) ExplicitEdgesOf(spaceId events.SpaceId) []ExplicitEdge {
	return s.explicitEdges[spaceId]
}

// TopicEdgesOf returns the topic-indirection edges spaceId holds, in no
// particular order.
func (s *State) TopicEdgesOf(spaceId events.SpaceId) []events.TopicId {
	edges := s.topicEdges[spaceId]
	out := make([]events.TopicId, 0, len(edges))
	for t := range edges {
		out = append(out, t)
	}
	return out
}

// TopicEdgeSourcesOf returns the spaces holding a topic edge to topicId.
func (s *State) TopicEdgeSourcesOf(topicId events.TopicId) []events.SpaceId {
	sources := s.topicEdgeSources[topicId]
	out := make([]events.SpaceId, 0, len(sources))
	for src := range sources {
		out = append(out, src)
	}
	return out
}

// SpaceCount returns the number of known spaces.
func (s *State) SpaceCount() int { return len(s.spaces) }

// ExplicitEdgeCount returns the total number of explicit edges across all spaces.
func (s *State) ExplicitEdgeCount() int {
	total := 0
	for _, edges := range s.explicitEdges {
		total += len(edges)
	}
	return total
}

// TopicEdgeCount returns the total number of topic-indirection edges across all spaces.
func (s *State) TopicEdgeCount() int {
	total := 0
	for _, edges := range s.topicEdges {
		total += len(edges)
	}
	return total
}
