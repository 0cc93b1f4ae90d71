// Package graph holds the authoritative GraphState and the immutable
// TreeNode/hash types produced by traversals over it.
package graph

import "github.com/geo-atlas/atlas/internal/atlas/events"

// EdgeKind records how a TreeNode was reached from its parent.
type EdgeKind uint8

const (
	EdgeRoot EdgeKind = iota
	EdgeVerified
	EdgeRelated
	EdgeTopic
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeRoot:
		return "root"
	case EdgeVerified:
		return "verified"
	case EdgeRelated:
		return "related"
	case EdgeTopic:
		return "topic"
	default:
		return "unknown"
	}
}

// TreeNode is an immutable node in a traversal tree: it names the space it
// represents, how it was reached, and (for Topic edges) which topic was
// traversed. Children are ordered by traversal discovery order.
type TreeNode struct {
	SpaceId  events.SpaceId
	EdgeKind EdgeKind
	TopicId  events.TopicId // meaningful iff EdgeKind == EdgeTopic
	HasTopic bool
	Children []TreeNode
}

// NewRoot builds the root node of a traversal tree.
func NewRoot(spaceId events.SpaceId) TreeNode {
	return TreeNode{SpaceId: spaceId, EdgeKind: EdgeRoot}
}

// NewChild builds a non-topic child node (Verified or Related).
func NewChild(spaceId events.SpaceId, kind EdgeKind) TreeNode {
	return TreeNode{SpaceId: spaceId, EdgeKind: kind}
}

// NewTopicChild builds a child node reached via a topic-indirection edge.
func NewTopicChild(spaceId events.SpaceId, topicId events.TopicId) TreeNode {
	return TreeNode{SpaceId: spaceId, EdgeKind: EdgeTopic, TopicId: topicId, HasTopic: true}
}

// NodeCount returns the number of nodes in the subtree rooted at n, including n.
func (n TreeNode) NodeCount() int {
	count := 1
	for _, c := range n.Children {
		count += c.NodeCount()
	}
	return count
}

// TransitiveGraph is a cache entry: a traversal tree plus its precomputed
// structural hash and node count.
type TransitiveGraph struct {
	Tree      TreeNode
	Hash      uint64
	NodeCount int
}

// NewTransitiveGraph wraps a tree with its hash and node count.
func NewTransitiveGraph(tree TreeNode) TransitiveGraph {
	return TransitiveGraph{Tree: tree, Hash: HashTree(tree), NodeCount: tree.NodeCount()}
}

// Equal reports whether two trees are structurally identical: same shape,
// same fields at every node, same child order. Used as the fallback when a
// hash collision needs confirming.
func (n TreeNode) Equal(other TreeNode) bool {
	if n.SpaceId != other.SpaceId || n.EdgeKind != other.EdgeKind {
		return false
	}
	if n.HasTopic != other.HasTopic || (n.HasTopic && n.TopicId != other.TopicId) {
		return false
	}
	if len(n.Children) != len(other.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}
