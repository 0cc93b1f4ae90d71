// Package source defines the Atlas event-source collaborator contract and
// two implementations: a fixture-backed source for tests and local runs,
// and a substream gRPC client shape for a live backing service.
package source

import (
	"context"

	"github.com/geo-atlas/atlas/internal/atlas/events"
)

// EventSource yields SpaceTopologyEvents in block order. Next returns
// ok=false once the source is exhausted (a fixture reaching its end, or a
// live stream closing cleanly); it returns a non-nil error only on a
// transport failure, never to signal normal exhaustion.
type EventSource interface {
	Next(ctx context.Context) (event events.SpaceTopologyEvent, ok bool, err error)
}

// FixtureSource replays a fixed, in-memory slice of events. It is the
// EventSource used by tests and by local fixture runs of cmd/atlas.
type FixtureSource struct {
	events []events.SpaceTopologyEvent
	pos    int
}

// NewFixtureSource wraps events for sequential replay.
func NewFixtureSource(events []events.SpaceTopologyEvent) *FixtureSource {
	return &FixtureSource{events: events}
}

// Next returns the next event in the fixture, or ok=false once exhausted.
// It respects ctx cancellation even though it never actually blocks on I/O,
// so tests exercising the driver's cancellation path behave the same
// against a fixture as against a live source.
func (f *FixtureSource) Next(ctx context.Context) (events.SpaceTopologyEvent, bool, error) {
	select {
	case <-ctx.Done():
		return events.SpaceTopologyEvent{}, false, ctx.Err()
	default:
	}

	if f.pos >= len(f.events) {
		return events.SpaceTopologyEvent{}, false, nil
	}
	event := f.events[f.pos]
	f.pos++
	return event, true, nil
}

// Remaining reports how many events have not yet been replayed.
func (f *FixtureSource) Remaining() int {
	return len(f.events) - f.pos
}
