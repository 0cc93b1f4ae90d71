package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashTree_DeterministicAcrossClones(t *testing.T) {
	tree := NewRoot(makeID(0x01))
	tree.Children = []TreeNode{
		NewChild(makeID(0x0A), EdgeVerified),
		NewTopicChild(makeID(0x0B), makeTopic(0xAA)),
	}

	clone := NewRoot(makeID(0x01))
	clone.Children = []TreeNode{
		NewChild(makeID(0x0A), EdgeVerified),
		NewTopicChild(makeID(0x0B), makeTopic(0xAA)),
	}

	require.Equal(t, HashTree(tree), HashTree(clone))
}

func TestHashTree_DistinctForDifferentEdgeKind(t *testing.T) {
	a := NewRoot(makeID(0x01))
	a.Children = []TreeNode{NewChild(makeID(0x0A), EdgeVerified)}

	b := NewRoot(makeID(0x01))
	b.Children = []TreeNode{NewChild(makeID(0x0A), EdgeRelated)}

	require.NotEqual(t, HashTree(a), HashTree(b))
}

func TestHashTree_DistinctForDifferentChildOrder(t *testing.T) {
	a := NewRoot(makeID(0x01))
	a.Children = []TreeNode{NewChild(makeID(0x0A), EdgeVerified), NewChild(makeID(0x0B), EdgeVerified)}

	b := NewRoot(makeID(0x01))
	b.Children = []TreeNode{NewChild(makeID(0x0B), EdgeVerified), NewChild(makeID(0x0A), EdgeVerified)}

	require.NotEqual(t, HashTree(a), HashTree(b))
}

func TestHashTree_DistinctForDifferentTopic(t *testing.T) {
	a := NewTopicChild(makeID(0x0A), makeTopic(0x01))
	b := NewTopicChild(makeID(0x0A), makeTopic(0x02))
	require.NotEqual(t, HashTree(a), HashTree(b))
}
