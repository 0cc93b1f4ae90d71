// Command search-indexer consumes knowledge.edits from the message bus and
// keeps the search backend's entity documents up to date.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafka "github.com/segmentio/kafka-go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/geo-atlas/atlas/internal/config"
	"github.com/geo-atlas/atlas/internal/ingest/consumer"
	"github.com/geo-atlas/atlas/internal/ingest/loader"
	"github.com/geo-atlas/atlas/internal/ingest/orchestrator"
	"github.com/geo-atlas/atlas/internal/ingest/search"
	"github.com/geo-atlas/atlas/internal/telemetry"
)

const editsTopic = "knowledge.edits"

func main() {
	app := &cli.App{
		Name:   "search-indexer",
		Usage:  "project knowledge-graph edits into the search backend",
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "search-indexer:", err)
		os.Exit(2)
	}
}

func run(_ *cli.Context) error {
	logger, err := telemetry.NewLogger()
	if err != nil {
		return fmt.Errorf("search-indexer: logger init: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadIngestConfig()
	if err != nil {
		logger.Error("configuration error", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	searchClient, err := connectSearchBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("could not reach search backend", zap.Error(err))
		return err
	}

	if err := searchClient.EnsureIndex(ctx, cfg.IndexName); err != nil {
		logger.Error("index bootstrap failed", zap.Error(err))
		return err
	}

	loaderCfg := loader.Config{
		BatchSize:        cfg.BatchSize,
		FlushInterval:    cfg.FlushInterval(),
		MaxRetries:       cfg.MaxRetries,
		InitialRetryWait: cfg.InitialRetryDelay(),
		MaxRetryWait:     cfg.MaxRetryDelay(),
		Index:            cfg.IndexName,
	}

	metrics := telemetry.NewIngestMetrics(prometheus.DefaultRegisterer)
	l := loader.New(searchClient, loaderCfg, metrics, logger)

	readerFactory := func(out chan<- consumer.Edit, log *zap.Logger) *consumer.Consumer {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.MessageBusBrokers,
			GroupID:     cfg.ConsumerGroup,
			Topic:       editsTopic,
			StartOffset: kafka.FirstOffset,
		})
		return consumer.New(reader, out, log)
	}

	orch := orchestrator.New(readerFactory, l, metrics, logger)

	logger.Info("search-indexer starting",
		zap.Strings("brokers", cfg.MessageBusBrokers),
		zap.String("consumer_group", cfg.ConsumerGroup),
		zap.String("index", cfg.IndexName),
	)

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("orchestrator terminated with error", zap.Error(err))
		return err
	}
	logger.Info("search-indexer shut down cleanly")
	return nil
}

// connectSearchBackend builds the client and polls HealthCheck once before
// the orchestrator is allowed to start, respecting CONNECTION_MODE:
// fail-fast returns the first health-check error, retry polls at
// RETRY_INTERVAL_SECS until the backend answers or ctx is cancelled.
func connectSearchBackend(ctx context.Context, cfg config.IngestConfig, logger *zap.Logger) (*search.OpenSearchClient, error) {
	client, err := search.NewOpenSearchClient([]string{cfg.SearchBackendURL}, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("search-indexer: build client: %w", err)
	}

	for {
		err := client.HealthCheck(ctx)
		if err == nil {
			return client, nil
		}

		if cfg.ConnectionMode == config.ConnectionModeFailFast {
			return nil, fmt.Errorf("search-indexer: health check (fail-fast): %w", err)
		}

		logger.Warn("search backend unreachable, retrying", zap.Error(err), zap.Duration("retry_interval", cfg.RetryInterval()))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryInterval()):
		}
	}
}
