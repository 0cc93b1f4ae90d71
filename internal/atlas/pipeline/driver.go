// Package pipeline drives the Atlas core loop: for each inbound event,
// invalidate caches against the pre-event state, apply the event, recompute
// the canonical tree, and publish it to a sink on change.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/geo-atlas/atlas/internal/atlas/canonical"
	"github.com/geo-atlas/atlas/internal/atlas/events"
	"github.com/geo-atlas/atlas/internal/atlas/graph"
	"github.com/geo-atlas/atlas/internal/atlas/source"
	"github.com/geo-atlas/atlas/internal/atlas/transitive"
)

// Change is a canonical tree ready to publish, paired with the
// BlockMetadata of the event that triggered it.
type Change struct {
	Tree graph.TransitiveGraph
	Meta events.BlockMetadata
}

// Sink receives canonical changes. Implementations own their own
// serialization and transport; Publish must not block past ctx.
type Sink interface {
	Publish(ctx context.Context, change Change) error
}

// Metrics is the narrow set of counters the driver touches. A nil Metrics
// is valid; every method becomes a no-op.
type Metrics interface {
	EventsProcessed()
	ChangesEmitted()
	SinkErrors()
}

// Driver wires GraphState, TransitiveProcessor and one or more
// CanonicalProcessors into a strictly serial event loop.
type Driver struct {
	state      *graph.State
	transitive *transitive.Processor
	canonical  []*canonical.Processor
	source     source.EventSource
	sink       Sink
	metrics    Metrics
	logger     *zap.Logger
}

// New builds a driver. canonicalProcessors must be non-empty; most
// deployments run exactly one, rooted at ROOT_SPACE_ID.
func New(state *graph.State, tp *transitive.Processor, canonicalProcessors []*canonical.Processor, src source.EventSource, sink Sink, metrics Metrics, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		state:      state,
		transitive: tp,
		canonical:  canonicalProcessors,
		source:     src,
		sink:       sink,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run pulls events from the source until it is exhausted or ctx is
// cancelled, and applies the four-step cycle to each. It returns nil on a
// clean exhaustion of the source, ctx.Err() on cancellation, or a
// transport error surfaced by the source or sink.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, ok, err := d.source.Next(ctx)
		if err != nil {
			d.logger.Error("event source transport error", zap.Error(err))
			return fmt.Errorf("pipeline: source error: %w", err)
		}
		if !ok {
			return nil
		}

		if err := d.handle(ctx, event); err != nil {
			return err
		}
	}
}

func (d *Driver) handle(ctx context.Context, event events.SpaceTopologyEvent) error {
	d.transitive.HandleEvent(event)
	d.state.Apply(event)
	d.incEventsProcessed()

	for _, cp := range d.canonical {
		g, changed := cp.Compute(d.state, d.transitive)
		if !changed {
			continue
		}

		d.incChangesEmitted()
		if err := d.sink.Publish(ctx, Change{Tree: g, Meta: event.Meta}); err != nil {
			d.incSinkErrors()
			d.logger.Error("sink publish failed",
				zap.String("root_space_id", cp.RootSpaceId().String()),
				zap.String("cursor", event.Meta.Cursor),
				zap.Error(err),
			)
			return fmt.Errorf("pipeline: sink error: %w", err)
		}
	}
	return nil
}

func (d *Driver) incEventsProcessed() {
	if d.metrics != nil {
		d.metrics.EventsProcessed()
	}
}

func (d *Driver) incChangesEmitted() {
	if d.metrics != nil {
		d.metrics.ChangesEmitted()
	}
}

func (d *Driver) incSinkErrors() {
	if d.metrics != nil {
		d.metrics.SinkErrors()
	}
}
