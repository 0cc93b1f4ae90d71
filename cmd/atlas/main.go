// Command atlas runs the Atlas topology processor: it consumes a stream of
// SpaceTopologyEvents, maintains the graph state, and publishes the
// canonical reachability tree rooted at ROOT_SPACE_ID whenever it changes.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/geo-atlas/atlas/internal/atlas/canonical"
	"github.com/geo-atlas/atlas/internal/atlas/events"
	"github.com/geo-atlas/atlas/internal/atlas/graph"
	"github.com/geo-atlas/atlas/internal/atlas/pipeline"
	"github.com/geo-atlas/atlas/internal/atlas/source"
	"github.com/geo-atlas/atlas/internal/atlas/transitive"
	"github.com/geo-atlas/atlas/internal/config"
	"github.com/geo-atlas/atlas/internal/telemetry"
)

func main() {
	app := &cli.App{
		Name:   "atlas",
		Usage:  "maintain the canonical knowledge-graph reachability tree",
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "atlas:", err)
		os.Exit(2)
	}
}

func run(_ *cli.Context) error {
	logger, err := telemetry.NewLogger()
	if err != nil {
		return fmt.Errorf("atlas: logger init: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadAtlasConfig()
	if err != nil {
		logger.Error("configuration error", zap.Error(err))
		return err
	}

	rootSpaceID, err := parseSpaceID(cfg.RootSpaceIDHex)
	if err != nil {
		logger.Error("invalid ROOT_SPACE_ID", zap.Error(err))
		return err
	}

	metrics := telemetry.NewAtlasMetrics(prometheus.DefaultRegisterer)

	state := graph.NewState()
	tp := transitive.NewProcessor(metrics)
	cp := canonical.NewProcessor(rootSpaceID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := buildEventSource(ctx, cfg.SourceEndpoint)
	if err != nil {
		logger.Error("event source init failed", zap.Error(err))
		return err
	}
	defer closeSrc()

	sink := pipeline.NewJSONSink(os.Stdout)

	driver := pipeline.New(state, tp, []*canonical.Processor{cp}, src, sink, metrics, logger)

	logger.Info("atlas starting", zap.String("root_space_id", rootSpaceID.String()), zap.String("source_endpoint", cfg.SourceEndpoint))
	if err := driver.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("pipeline terminated with error", zap.Error(err))
		return err
	}
	logger.Info("atlas shut down cleanly")
	return nil
}

// buildEventSource picks the EventSource implementation for endpoint:
// "fixture" (the default for local runs and tests not wired to a live
// backing service) selects an empty FixtureSource; anything else is dialed
// as a substream gRPC endpoint. The returned close func is always safe to
// call and defer.
func buildEventSource(ctx context.Context, endpoint string) (source.EventSource, func(), error) {
	if endpoint == "" || endpoint == "fixture" {
		return source.NewFixtureSource(nil), func() {}, nil
	}

	sub, err := source.DialSubstreamSource(ctx, endpoint)
	if err != nil {
		return nil, func() {}, fmt.Errorf("atlas: connect event source: %w", err)
	}
	return sub, func() { sub.Close() }, nil
}

func parseSpaceID(hexStr string) (events.SpaceId, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return events.SpaceId{}, fmt.Errorf("decode hex: %w", err)
	}
	if len(raw) != 16 {
		return events.SpaceId{}, fmt.Errorf("expected 16 bytes, got %d", len(raw))
	}
	var id events.SpaceId
	copy(id[:], raw)
	return id, nil
}
