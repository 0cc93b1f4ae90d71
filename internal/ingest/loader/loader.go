// Package loader batches Upserts and applies them to the search backend
// with retry, falling back to per-document writes when a bulk request
// fails outright.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/geo-atlas/atlas/internal/ingest/processor"
	"github.com/geo-atlas/atlas/internal/ingest/search"
	"github.com/geo-atlas/atlas/pkg/idutil"
)

// Config tunes batching and retry behavior. NewConfig returns one seeded
// with the documented defaults; New uses the fields as given, so zero
// values are not replaced.
type Config struct {
	BatchSize        int
	FlushInterval    time.Duration
	MaxRetries       int
	InitialRetryWait time.Duration
	MaxRetryWait     time.Duration
	Index            string
}

// NewConfig returns a Config seeded with the documented defaults.
func NewConfig(index string) Config {
	return Config{
		BatchSize:        100,
		FlushInterval:    5 * time.Second,
		MaxRetries:       3,
		InitialRetryWait: 100 * time.Millisecond,
		MaxRetryWait:     5 * time.Second,
		Index:            index,
	}
}

// Error bubbles up to the orchestrator after retries are exhausted.
type Error struct {
	Err error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Metrics is the narrow set of counters and histograms the loader touches.
// A nil Metrics is valid; every method becomes a no-op.
type Metrics interface {
	BatchesFlushed()
	Retries()
	BackendError(kind string)
	ObserveFlushDuration(d time.Duration)
}

// Loader buffers Upserts up to BatchSize or FlushInterval, whichever comes
// first, then issues one bulk upsert. Deletes are applied individually
// since they are low frequency.
type Loader struct {
	client  search.Client
	cfg     Config
	metrics Metrics
	logger  *zap.Logger

	buffer map[string]processor.Upsert
}

// New wires a search.Client with cfg. metrics may be nil.
func New(client search.Client, cfg Config, metrics Metrics, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{client: client, cfg: cfg, metrics: metrics, logger: logger, buffer: make(map[string]processor.Upsert)}
}

// Add buffers an upsert, flushing immediately if the batch is now full.
func (l *Loader) Add(ctx context.Context, u processor.Upsert) error {
	key := idutil.DocumentKey(u.EntityID, u.SpaceID)
	l.buffer[key] = u
	if len(l.buffer) >= l.cfg.BatchSize {
		return l.Flush(ctx)
	}
	return nil
}

// Delete applies a single document removal immediately, retrying
// transient failures the same way Flush does.
func (l *Loader) Delete(ctx context.Context, d processor.Delete) error {
	key := idutil.DocumentKey(d.EntityID, d.SpaceID)
	return l.retry(ctx, "delete", func() error {
		return l.client.Delete(ctx, l.cfg.Index, key)
	})
}

// Flush issues one bulk upsert covering every buffered document. On
// outright bulk failure it falls back to applying each document
// individually so a single malformed document cannot poison the whole
// batch.
func (l *Loader) Flush(ctx context.Context) error {
	if len(l.buffer) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		l.observeFlushDuration(time.Since(start))
		l.incBatchesFlushed()
	}()

	docs := make(map[string]search.EntityDocument, len(l.buffer))
	for key, u := range l.buffer {
		docs[key] = toDocument(u)
	}

	bulkErr := l.retry(ctx, "bulk_upsert", func() error {
		return l.client.BulkUpsert(ctx, l.cfg.Index, docs)
	})
	if bulkErr == nil {
		l.buffer = make(map[string]processor.Upsert)
		return nil
	}

	l.logger.Warn("bulk upsert failed, falling back to individual upserts", zap.Error(bulkErr), zap.Int("batch_size", len(docs)))

	var firstErr error
	for key, doc := range docs {
		if err := l.retry(ctx, "upsert", func() error {
			return l.client.Upsert(ctx, l.cfg.Index, key, doc)
		}); err != nil {
			l.logger.Error("individual upsert failed", zap.String("key", key), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
	}

	l.buffer = make(map[string]processor.Upsert)
	if firstErr != nil {
		return &Error{Err: fmt.Errorf("loader: flush: %w", firstErr)}
	}
	return nil
}

// Pending reports how many upserts are currently buffered.
func (l *Loader) Pending() int { return len(l.buffer) }

// FlushInterval returns the configured flush interval, for callers
// (the orchestrator's scheduled-flush ticker) that need to mirror it.
func (l *Loader) FlushInterval() time.Duration { return l.cfg.FlushInterval }

// retry wraps op with exponential backoff, retrying only errors the
// search backend reports as retryable.
func (l *Loader) retry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.cfg.InitialRetryWait
	policy.MaxInterval = l.cfg.MaxRetryWait
	policy.MaxElapsedTime = 0
	bctx := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(l.cfg.MaxRetries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		var sErr *search.Error
		if !errors.As(err, &sErr) {
			return backoff.Permanent(err)
		}
		l.incBackendError(sErr.Kind.String())
		if !sErr.Retryable() {
			return backoff.Permanent(err)
		}
		l.incRetries()
		l.logger.Warn("retrying search operation", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, bctx)

	if err != nil {
		return fmt.Errorf("loader: %s: %w", op, err)
	}
	return nil
}

func (l *Loader) incBatchesFlushed() {
	if l.metrics != nil {
		l.metrics.BatchesFlushed()
	}
}

func (l *Loader) incRetries() {
	if l.metrics != nil {
		l.metrics.Retries()
	}
}

func (l *Loader) incBackendError(kind string) {
	if l.metrics != nil {
		l.metrics.BackendError(kind)
	}
}

func (l *Loader) observeFlushDuration(d time.Duration) {
	if l.metrics != nil {
		l.metrics.ObserveFlushDuration(d)
	}
}

func toDocument(u processor.Upsert) search.EntityDocument {
	name := u.Name
	return search.EntityDocument{
		EntityID:    u.EntityID.String(),
		SpaceID:     u.SpaceID.String(),
		Name:        &name,
		Description: u.Description,
		IndexedAt:   time.Now().UTC(),
	}
}
