package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geo-atlas/atlas/internal/atlas/canonical"
	"github.com/geo-atlas/atlas/internal/atlas/events"
	"github.com/geo-atlas/atlas/internal/atlas/graph"
	"github.com/geo-atlas/atlas/internal/atlas/source"
	"github.com/geo-atlas/atlas/internal/atlas/transitive"
)

func driverID(b byte) events.SpaceId {
	var out events.SpaceId
	out[15] = b
	return out
}

func driverTopic(b byte) events.TopicId {
	var out events.TopicId
	out[15] = b
	return out
}

func TestDriver_Run_PublishesOnlyOnChange(t *testing.T) {
	root := driverID(0x01)
	fixture := []events.SpaceTopologyEvent{
		events.NewSpaceCreatedEvent(events.BlockMetadata{Cursor: "c1"}, root, driverTopic(0xF1), events.SpaceType{}),
		events.NewSpaceCreatedEvent(events.BlockMetadata{Cursor: "c2"}, driverID(0x0A), driverTopic(0xFA), events.SpaceType{}),
		events.NewTrustExtendedEvent(events.BlockMetadata{Cursor: "c3"}, root, events.VerifiedExtension(driverID(0x0A))),
	}

	state := graph.NewState()
	tp := transitive.NewProcessor(nil)
	cp := canonical.NewProcessor(root)
	src := source.NewFixtureSource(fixture)

	var buf bytes.Buffer
	sink := NewJSONSink(&buf)

	driver := New(state, tp, []*canonical.Processor{cp}, src, sink, nil, nil)

	err := driver.Run(context.Background())
	require.NoError(t, err)

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	require.Equal(t, 2, lines, "expected emissions on event 1 and event 3, not event 2")
}

func TestDriver_Run_RespectsCancellation(t *testing.T) {
	root := driverID(0x01)
	fixture := []events.SpaceTopologyEvent{
		events.NewSpaceCreatedEvent(events.BlockMetadata{}, root, driverTopic(0xF1), events.SpaceType{}),
	}

	state := graph.NewState()
	tp := transitive.NewProcessor(nil)
	cp := canonical.NewProcessor(root)
	src := source.NewFixtureSource(fixture)

	var buf bytes.Buffer
	sink := NewJSONSink(&buf)

	driver := New(state, tp, []*canonical.Processor{cp}, src, sink, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := driver.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
