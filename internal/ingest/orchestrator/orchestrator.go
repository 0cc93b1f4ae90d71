// Package orchestrator bridges the consumer and loader tasks over a
// bounded channel, running the stateless processor inline on the loader
// side, and coordinates shutdown between the two.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/geo-atlas/atlas/internal/ingest/consumer"
	"github.com/geo-atlas/atlas/internal/ingest/loader"
	"github.com/geo-atlas/atlas/internal/ingest/processor"
)

// Metrics is the narrow set of counters the orchestrator touches. A nil
// Metrics is valid; every method becomes a no-op.
type Metrics interface {
	EditsConsumed()
	UpsertsLoaded(n int)
	DeletesLoaded(n int)
	LoaderErrors()
}

// Orchestrator owns the bounded channel between the consumer and the
// loader and drives the loader side of the pipeline: decode is already
// done by the consumer, so here we only run the stateless processor and
// hand its output to the loader.
type Orchestrator struct {
	consumer  *consumer.Consumer
	processor *processor.EntityProcessor
	loader    *loader.Loader
	edits     chan consumer.Edit
	metrics   Metrics
	logger    *zap.Logger
}

// ChannelCapacity is the default bound on the edits channel between the
// consumer and loader tasks.
const ChannelCapacity = 1000

// New wires a consumer reading into a freshly created bounded channel, a
// stateless processor, and a loader applying its output.
func New(readerFactory func(out chan<- consumer.Edit, logger *zap.Logger) *consumer.Consumer, l *loader.Loader, metrics Metrics, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	edits := make(chan consumer.Edit, ChannelCapacity)
	return &Orchestrator{
		consumer:  readerFactory(edits, logger),
		processor: processor.New(),
		loader:    l,
		edits:     edits,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run starts the consumer task and drains the edits channel on the loader
// side until ctx is cancelled, flushing pending upserts on a best-effort
// basis on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- o.consumer.Run(ctx)
	}()

	flushTicker := time.NewTicker(o.loader.FlushInterval())
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.bestEffortFlush(context.Background())
			<-consumerDone
			return ctx.Err()

		case err := <-consumerDone:
			o.bestEffortFlush(context.Background())
			return err

		case edit := <-o.edits:
			o.handleEdit(ctx, edit)

		case <-flushTicker.C:
			if err := o.loader.Flush(ctx); err != nil {
				o.incLoaderErrors()
				o.logger.Error("scheduled flush failed", zap.Error(err))
			}
			if err := o.consumer.Ack(ctx); err != nil {
				o.logger.Error("offset commit failed", zap.Error(err))
			}
		}
	}
}

func (o *Orchestrator) handleEdit(ctx context.Context, edit consumer.Edit) {
	o.incEditsConsumed()

	upserts, deletes, errs := o.processor.Process(edit)
	for _, err := range errs {
		o.logger.Warn("skipping malformed op", zap.Error(err), zap.String("space_id", edit.SpaceID))
	}

	for _, u := range upserts {
		if err := o.loader.Add(ctx, u); err != nil {
			o.incLoaderErrors()
			o.logger.Error("loader add failed", zap.Error(err), zap.String("space_id", edit.SpaceID))
		}
	}
	o.incUpsertsLoaded(len(upserts))

	for _, d := range deletes {
		if err := o.loader.Delete(ctx, d); err != nil {
			o.incLoaderErrors()
			o.logger.Error("loader delete failed", zap.Error(err), zap.String("space_id", edit.SpaceID))
		}
	}
	o.incDeletesLoaded(len(deletes))

	if err := o.consumer.Ack(ctx); err != nil {
		o.logger.Error("offset commit failed", zap.Error(err))
	}
}

func (o *Orchestrator) bestEffortFlush(ctx context.Context) {
	if err := o.loader.Flush(ctx); err != nil {
		o.logger.Warn("best-effort shutdown flush failed", zap.Error(err))
		return
	}
	if err := o.consumer.Ack(ctx); err != nil {
		o.logger.Warn("best-effort shutdown offset commit failed", zap.Error(err))
	}
}

func (o *Orchestrator) incEditsConsumed() {
	if o.metrics != nil {
		o.metrics.EditsConsumed()
	}
}

func (o *Orchestrator) incUpsertsLoaded(n int) {
	if o.metrics != nil && n > 0 {
		o.metrics.UpsertsLoaded(n)
	}
}

func (o *Orchestrator) incDeletesLoaded(n int) {
	if o.metrics != nil && n > 0 {
		o.metrics.DeletesLoaded(n)
	}
}

func (o *Orchestrator) incLoaderErrors() {
	if o.metrics != nil {
		o.metrics.LoaderErrors()
	}
}
