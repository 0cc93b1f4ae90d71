package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/geo-atlas/atlas/internal/atlas/graph"
)

// treeNodeJSON mirrors graph.TreeNode for stable wire serialization,
// independent of any future field additions to the in-memory type.
type treeNodeJSON struct {
	SpaceId  string         `json:"space_id"`
	EdgeKind string         `json:"edge_kind"`
	TopicId  string         `json:"topic_id,omitempty"`
	Children []treeNodeJSON `json:"children"`
}

type changeJSON struct {
	BlockNumber    uint64       `json:"block_number"`
	BlockTimestamp int64        `json:"block_timestamp"`
	TxHash         string       `json:"tx_hash"`
	Cursor         string       `json:"cursor"`
	Hash           uint64       `json:"hash"`
	NodeCount      int          `json:"node_count"`
	Tree           treeNodeJSON `json:"tree"`
}

// JSONSink serializes each Change as one newline-delimited JSON object and
// writes it to w. It is safe for concurrent Publish calls even though the
// driver itself is serial, so the same sink can back multiple canonical
// processors (one per root) without extra synchronization at the caller.
type JSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONSink wraps w. A typical deployment wraps a message-bus producer
// writer instead of a file, but the wire format is the same either way.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w}
}

// Publish writes change as one JSON line. It ignores ctx cancellation
// mid-write: the in-flight emission is atomic, per the no-partial-emission
// requirement on the core's cancellation model.
func (s *JSONSink) Publish(_ context.Context, change Change) error {
	payload := changeJSON{
		BlockNumber:    change.Meta.BlockNumber,
		BlockTimestamp: change.Meta.BlockTimestamp,
		TxHash:         change.Meta.TxHash,
		Cursor:         change.Meta.Cursor,
		Hash:           change.Tree.Hash,
		NodeCount:      change.Tree.NodeCount,
		Tree:           toTreeJSON(change.Tree.Tree),
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pipeline: marshal change: %w", err)
	}
	encoded = append(encoded, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(encoded); err != nil {
		return fmt.Errorf("pipeline: write change: %w", err)
	}
	return nil
}

func toTreeJSON(n graph.TreeNode) treeNodeJSON {
	out := treeNodeJSON{
		SpaceId:  n.SpaceId.String(),
		EdgeKind: n.EdgeKind.String(),
		Children: make([]treeNodeJSON, len(n.Children)),
	}
	if n.HasTopic {
		out.TopicId = n.TopicId.String()
	}
	for i, c := range n.Children {
		out.Children[i] = toTreeJSON(c)
	}
	return out
}
