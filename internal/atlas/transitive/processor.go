// Package transitive computes and caches the reachability tree of every
// space root, incrementally invalidating affected roots as topology events
// land instead of recomputing from scratch on every event.
package transitive

import (
	"sort"
	"time"

	"github.com/geo-atlas/atlas/internal/atlas/events"
	"github.com/geo-atlas/atlas/internal/atlas/graph"
)

// Metrics is the narrow set of counters and histograms the processor
// touches. A nil Metrics is valid; every method becomes a no-op.
type Metrics interface {
	CacheHit()
	CacheMiss()
	CacheInvalidation()
	ObserveTraversalDuration(d time.Duration)
}

// Processor holds the full and explicit-only caches plus the reverse
// indices that make invalidation proportional to the affected trees rather
// than to the whole cache.
type Processor struct {
	full         map[events.SpaceId]graph.TransitiveGraph
	explicitOnly map[events.SpaceId]graph.TransitiveGraph

	// reverseDeps maps a space to the set of cached roots whose tree
	// (full or explicit-only) contains it as a node.
	reverseDeps map[events.SpaceId]map[events.SpaceId]struct{}

	// topicReverseDeps maps a topic to the set of cached roots whose
	// full tree traversed it (via topic-indirection or self fan-out).
	topicReverseDeps map[events.TopicId]map[events.SpaceId]struct{}

	// rootNodes and rootTopics are the inverse of reverseDeps/
	// topicReverseDeps, kept per root so eviction can walk exactly the
	// entries that need cleaning up instead of scanning every index.
	rootNodes  map[events.SpaceId]map[events.SpaceId]struct{}
	rootTopics map[events.SpaceId]map[events.TopicId]struct{}

	metrics Metrics
}

// NewProcessor returns a processor with empty caches. metrics may be nil.
func NewProcessor(metrics Metrics) *Processor {
	return &Processor{
		full:             make(map[events.SpaceId]graph.TransitiveGraph),
		explicitOnly:     make(map[events.SpaceId]graph.TransitiveGraph),
		reverseDeps:      make(map[events.SpaceId]map[events.SpaceId]struct{}),
		topicReverseDeps: make(map[events.TopicId]map[events.SpaceId]struct{}),
		rootNodes:        make(map[events.SpaceId]map[events.SpaceId]struct{}),
		rootTopics:       make(map[events.SpaceId]map[events.TopicId]struct{}),
		metrics:          metrics,
	}
}

// GetFull returns the cached full traversal tree for root, computing and
// caching it on a miss.
func (p *Processor) GetFull(root events.SpaceId, state *graph.State) graph.TransitiveGraph {
	if g, ok := p.full[root]; ok {
		p.incCacheHit()
		return g
	}
	p.incCacheMiss()
	start := time.Now()
	tree, nodes, topics := traverse(root, state, true)
	p.observeTraversalDuration(time.Since(start))
	g := graph.NewTransitiveGraph(tree)
	p.full[root] = g
	p.recordDeps(root, nodes, topics)
	return g
}

// GetExplicitOnly returns the cached explicit-edges-only traversal tree for
// root, computing and caching it on a miss.
func (p *Processor) GetExplicitOnly(root events.SpaceId, state *graph.State) graph.TransitiveGraph {
	if g, ok := p.explicitOnly[root]; ok {
		p.incCacheHit()
		return g
	}
	p.incCacheMiss()
	start := time.Now()
	tree, nodes, topics := traverse(root, state, false)
	p.observeTraversalDuration(time.Since(start))
	g := graph.NewTransitiveGraph(tree)
	p.explicitOnly[root] = g
	p.recordDeps(root, nodes, topics)
	return g
}

func (p *Processor) incCacheHit() {
	if p.metrics != nil {
		p.metrics.CacheHit()
	}
}

func (p *Processor) incCacheMiss() {
	if p.metrics != nil {
		p.metrics.CacheMiss()
	}
}

func (p *Processor) observeTraversalDuration(d time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveTraversalDuration(d)
	}
}

func (p *Processor) recordDeps(root events.SpaceId, nodes map[events.SpaceId]struct{}, topics map[events.TopicId]struct{}) {
	if _, ok := p.rootNodes[root]; !ok {
		p.rootNodes[root] = make(map[events.SpaceId]struct{})
	}
	for n := range nodes {
		p.rootNodes[root][n] = struct{}{}
		if _, ok := p.reverseDeps[n]; !ok {
			p.reverseDeps[n] = make(map[events.SpaceId]struct{})
		}
		p.reverseDeps[n][root] = struct{}{}
	}

	if _, ok := p.rootTopics[root]; !ok {
		p.rootTopics[root] = make(map[events.TopicId]struct{})
	}
	for t := range topics {
		p.rootTopics[root][t] = struct{}{}
		if _, ok := p.topicReverseDeps[t]; !ok {
			p.topicReverseDeps[t] = make(map[events.SpaceId]struct{})
		}
		p.topicReverseDeps[t][root] = struct{}{}
	}
}

// HandleEvent evicts every cached root invalidated by event. It must be
// called against the graph state as it stood *before* event is applied,
// since reverse_deps describes the pre-event topology.
//
// SpaceCreated never invalidates anything. This leaves a staleness window:
// a cached tree computed before a space announced a topic that an existing
// topic-indirection edge already points at, or one that already holds the
// new space as the target of an explicit edge drawn before its creation,
// does not pick up the new space's topic membership until a TrustExtended
// event evicts that root.
func (p *Processor) HandleEvent(event events.SpaceTopologyEvent) {
	if event.PayloadKind != events.PayloadTrustExtended {
		return
	}

	src := event.TrustExtended.SourceSpaceId
	p.evictRoots(p.rootsContaining(src))

	if event.TrustExtended.Extension.Kind == events.ExtensionSubtopic {
		target := event.TrustExtended.Extension.TargetTopicId
		p.evictRoots(p.rootsForTopic(target))
	}
}

func (p *Processor) rootsContaining(node events.SpaceId) []events.SpaceId {
	deps := p.reverseDeps[node]
	out := make([]events.SpaceId, 0, len(deps))
	for r := range deps {
		out = append(out, r)
	}
	return out
}

func (p *Processor) rootsForTopic(topic events.TopicId) []events.SpaceId {
	deps := p.topicReverseDeps[topic]
	out := make([]events.SpaceId, 0, len(deps))
	for r := range deps {
		out = append(out, r)
	}
	return out
}

func (p *Processor) evictRoots(roots []events.SpaceId) {
	for _, root := range roots {
		delete(p.full, root)
		delete(p.explicitOnly, root)
		if p.metrics != nil {
			p.metrics.CacheInvalidation()
		}

		for n := range p.rootNodes[root] {
			delete(p.reverseDeps[n], root)
			if len(p.reverseDeps[n]) == 0 {
				delete(p.reverseDeps, n)
			}
		}
		delete(p.rootNodes, root)

		for t := range p.rootTopics[root] {
			delete(p.topicReverseDeps[t], root)
			if len(p.topicReverseDeps[t]) == 0 {
				delete(p.topicReverseDeps, t)
			}
		}
		delete(p.rootTopics, root)
	}
}

// transition is one outgoing hop discovered while expanding a node.
type transition struct {
	target   events.SpaceId
	edgeKind graph.EdgeKind
	topicId  events.TopicId
	hasTopic bool
}

// buildNode is the mutable tree under construction during a BFS. It is
// frozen into an immutable graph.TreeNode once traversal completes.
type buildNode struct {
	spaceId  events.SpaceId
	edgeKind graph.EdgeKind
	topicId  events.TopicId
	hasTopic bool
	children []*buildNode
}

func (b *buildNode) freeze() graph.TreeNode {
	children := make([]graph.TreeNode, len(b.children))
	for i, c := range b.children {
		children[i] = c.freeze()
	}
	return graph.TreeNode{
		SpaceId:  b.spaceId,
		EdgeKind: b.edgeKind,
		TopicId:  b.topicId,
		HasTopic: b.hasTopic,
		Children: children,
	}
}

// traverse runs a breadth-first expansion from root over state, returning
// the frozen tree plus the set of nodes and topics it visited (used to
// populate the reverse indices). When full is false, only explicit edges
// are followed; topic-indirection and self-announced-topic fan-out are
// skipped entirely.
func traverse(root events.SpaceId, state *graph.State, full bool) (graph.TreeNode, map[events.SpaceId]struct{}, map[events.TopicId]struct{}) {
	rootNode := &buildNode{spaceId: root, edgeKind: graph.EdgeRoot}
	visited := map[events.SpaceId]struct{}{root: {}}
	topicsTouched := make(map[events.TopicId]struct{})

	queue := []*buildNode{rootNode}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, tr := range outgoing(cur.spaceId, state, full, topicsTouched) {
			if _, seen := visited[tr.target]; seen {
				continue
			}
			visited[tr.target] = struct{}{}

			child := &buildNode{
				spaceId:  tr.target,
				edgeKind: tr.edgeKind,
				topicId:  tr.topicId,
				hasTopic: tr.hasTopic,
			}
			cur.children = append(cur.children, child)
			queue = append(queue, child)
		}
	}

	return rootNode.freeze(), visited, topicsTouched
}

// outgoing lists the transitions out of space s in deterministic order:
// explicit edges first (insertion order, as stored in the log), then — for
// full traversals only — topic-indirection edges sorted by topic bytes
// (each resolving to its members sorted by space bytes), then the
// self-announced-topic fan-out. Topics visited along the way are recorded
// into topicsTouched for reverse-index bookkeeping.
func outgoing(s events.SpaceId, state *graph.State, full bool, topicsTouched map[events.TopicId]struct{}) []transition {
	var out []transition

	for _, e := range state.ExplicitEdgesOf(s) {
		kind := graph.EdgeRelated
		if e.Kind == events.EdgeVerified {
			kind = graph.EdgeVerified
		}
		out = append(out, transition{target: e.Target, edgeKind: kind})
	}

	if !full {
		return out
	}

	topicEdges := state.TopicEdgesOf(s)
	sort.Slice(topicEdges, func(i, j int) bool { return topicEdges[i].Less(topicEdges[j]) })
	for _, topic := range topicEdges {
		topicsTouched[topic] = struct{}{}
		out = append(out, topicFanOut(s, topic, state)...)
	}

	if selfTopic, ok := state.SpaceTopicOf(s); ok {
		topicsTouched[selfTopic] = struct{}{}
		out = append(out, topicFanOut(s, selfTopic, state)...)
	}

	return out
}

// topicFanOut resolves topic to its member spaces, sorted by space bytes,
// excluding s itself.
func topicFanOut(s events.SpaceId, topic events.TopicId, state *graph.State) []transition {
	members := state.TopicMembersOf(topic)
	sort.Slice(members, func(i, j int) bool { return members[i].Less(members[j]) })

	out := make([]transition, 0, len(members))
	for _, m := range members {
		if m == s {
			continue
		}
		out = append(out, transition{target: m, edgeKind: graph.EdgeTopic, topicId: topic, hasTopic: true})
	}
	return out
}
