// Package canonical decides, after each event, whether the canonical
// reachability tree for a fixed root space has actually changed and is
// therefore worth publishing.
package canonical

import (
	"github.com/geo-atlas/atlas/internal/atlas/events"
	"github.com/geo-atlas/atlas/internal/atlas/graph"
	"github.com/geo-atlas/atlas/internal/atlas/transitive"
)

// Processor gates emission on change for one fixed root space. The base
// variant canonicalizes the full traversal (explicit + topic-resolved +
// self-announced-topic fan-out), matching the sole change-detection
// boundary described for the topology sink; ExplicitOnly switches it to
// canonicalize the explicit-edges-only traversal for a second sink that
// wants trust edges without topic indirection.
type Processor struct {
	rootSpaceId  events.SpaceId
	explicitOnly bool
	lastEmitted  *uint64
}

// NewProcessor returns a processor canonicalizing the full traversal of
// rootSpaceId.
func NewProcessor(rootSpaceId events.SpaceId) *Processor {
	return &Processor{rootSpaceId: rootSpaceId}
}

// NewExplicitOnlyProcessor returns a processor canonicalizing the
// explicit-edges-only traversal of rootSpaceId.
func NewExplicitOnlyProcessor(rootSpaceId events.SpaceId) *Processor {
	return &Processor{rootSpaceId: rootSpaceId, explicitOnly: true}
}

// Compute implements the four-step emission law: if the root has never
// been seen, emit nothing; otherwise fetch its current tree, and emit it
// (remembering the new hash) only if the hash differs from the last one
// emitted.
func (p *Processor) Compute(state *graph.State, tp *transitive.Processor) (graph.TransitiveGraph, bool) {
	if !state.ContainsSpace(p.rootSpaceId) {
		return graph.TransitiveGraph{}, false
	}

	var g graph.TransitiveGraph
	if p.explicitOnly {
		g = tp.GetExplicitOnly(p.rootSpaceId, state)
	} else {
		g = tp.GetFull(p.rootSpaceId, state)
	}

	if p.lastEmitted != nil && *p.lastEmitted == g.Hash {
		return graph.TransitiveGraph{}, false
	}

	hash := g.Hash
	p.lastEmitted = &hash
	return g, true
}

// RootSpaceId returns the space this processor canonicalizes.
func (p *Processor) RootSpaceId() events.SpaceId { return p.rootSpaceId }
