// Package config binds the enumerated environment variables for both
// binaries via envconfig, the same configuration approach the upstream
// substream tooling uses.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ConnectionMode selects how the ingest binary behaves when it cannot
// reach the search backend at startup.
type ConnectionMode string

const (
	ConnectionModeFailFast ConnectionMode = "fail-fast"
	ConnectionModeRetry    ConnectionMode = "retry"
)

// AtlasConfig configures cmd/atlas.
type AtlasConfig struct {
	RootSpaceIDHex string `envconfig:"ROOT_SPACE_ID" required:"true"`
	// SourceEndpoint is a substream gRPC address, or the literal "fixture"
	// to run against an empty in-memory FixtureSource (local runs, tests).
	SourceEndpoint string `envconfig:"SOURCE_ENDPOINT" required:"true"`
	SinkEndpoint   string `envconfig:"SINK_ENDPOINT" required:"true"`
	SinkTopic      string `envconfig:"SINK_TOPIC" default:"canonical.graph"`
}

// LoadAtlasConfig reads AtlasConfig from the environment.
func LoadAtlasConfig() (AtlasConfig, error) {
	var cfg AtlasConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AtlasConfig{}, fmt.Errorf("config: atlas: %w", err)
	}
	return cfg, nil
}

// IngestConfig configures cmd/search-indexer.
type IngestConfig struct {
	MessageBusBrokers   []string       `envconfig:"MESSAGE_BUS_BROKERS" required:"true"`
	ConsumerGroup       string         `envconfig:"CONSUMER_GROUP" required:"true"`
	SearchBackendURL    string         `envconfig:"SEARCH_BACKEND_URL" required:"true"`
	IndexName           string         `envconfig:"INDEX_NAME" required:"true"`
	BatchSize           int            `envconfig:"BATCH_SIZE" default:"100"`
	FlushIntervalMs     int            `envconfig:"FLUSH_INTERVAL_MS" default:"5000"`
	MaxRetries          int            `envconfig:"MAX_RETRIES" default:"3"`
	InitialRetryDelayMs int            `envconfig:"INITIAL_RETRY_DELAY_MS" default:"100"`
	MaxRetryDelayMs     int            `envconfig:"MAX_RETRY_DELAY_MS" default:"5000"`
	ConnectionMode      ConnectionMode `envconfig:"CONNECTION_MODE" default:"fail-fast"`
	RetryIntervalSecs   int            `envconfig:"RETRY_INTERVAL_SECS" default:"5"`
}

// LoadIngestConfig reads IngestConfig from the environment.
func LoadIngestConfig() (IngestConfig, error) {
	var cfg IngestConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return IngestConfig{}, fmt.Errorf("config: ingest: %w", err)
	}
	if cfg.ConnectionMode != ConnectionModeFailFast && cfg.ConnectionMode != ConnectionModeRetry {
		return IngestConfig{}, fmt.Errorf("config: ingest: CONNECTION_MODE must be %q or %q, got %q", ConnectionModeFailFast, ConnectionModeRetry, cfg.ConnectionMode)
	}
	return cfg, nil
}

// FlushInterval returns the configured flush interval as a time.Duration.
func (c IngestConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// InitialRetryDelay returns the configured initial retry delay as a time.Duration.
func (c IngestConfig) InitialRetryDelay() time.Duration {
	return time.Duration(c.InitialRetryDelayMs) * time.Millisecond
}

// MaxRetryDelay returns the configured max retry delay as a time.Duration.
func (c IngestConfig) MaxRetryDelay() time.Duration {
	return time.Duration(c.MaxRetryDelayMs) * time.Millisecond
}

// RetryInterval returns the configured connection-retry interval as a time.Duration.
func (c IngestConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSecs) * time.Second
}
