package graph

import (
	"hash"
	"hash/fnv"
)

// HashTree computes a structural 64-bit hash of a tree: two trees hash
// equal iff they have identical shape and identical fields at every node,
// including child order. The hash is for cheap change detection, not
// collision resistance; TreeNode.Equal is the exact fallback.
//
// fnv64a is used rather than hash/maphash because it needs no per-process
// seed — the hash must be stable across restarts (the sink payload and the
// canonical emission law both depend on that).
func HashTree(root TreeNode) uint64 {
	h := fnv.New64a()
	hashNode(h, root)
	return h.Sum64()
}

func hashNode(h hash.Hash64, n TreeNode) {
	h.Write(n.SpaceId[:])
	writeByte(h, byte(n.EdgeKind))
	if n.HasTopic {
		writeByte(h, 1)
		h.Write(n.TopicId[:])
	} else {
		writeByte(h, 0)
	}
	writeInt(h, len(n.Children))
	for _, c := range n.Children {
		hashNode(h, c)
	}
}

func writeByte(h hash.Hash64, b byte) {
	h.Write([]byte{b})
}

func writeInt(h hash.Hash64, v int) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
}
