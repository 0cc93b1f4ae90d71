// Package telemetry constructs the structured logger and Prometheus
// metrics registries shared by both binaries.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// NewLogger builds a production zap.Logger. Callers should defer
// logger.Sync() in main.
func NewLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

// AtlasMetrics implements pipeline.Metrics and transitive.Metrics against
// Prometheus counters and histograms.
type AtlasMetrics struct {
	eventsProcessed   prometheus.Counter
	changesEmitted    prometheus.Counter
	sinkErrors        prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	cacheInvalidation prometheus.Counter
	traversalDuration prometheus.Histogram
}

// NewAtlasMetrics registers the Atlas pipeline's counters and histograms on reg.
func NewAtlasMetrics(reg prometheus.Registerer) *AtlasMetrics {
	m := &AtlasMetrics{
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_events_processed_total",
			Help: "Total number of SpaceTopologyEvents applied to the graph.",
		}),
		changesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_changes_emitted_total",
			Help: "Total number of canonical tree changes published to the sink.",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_sink_errors_total",
			Help: "Total number of sink publish failures.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_transitive_cache_hits_total",
			Help: "Total number of transitive cache lookups served without recomputation.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_transitive_cache_misses_total",
			Help: "Total number of transitive cache lookups that required a traversal.",
		}),
		cacheInvalidation: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_transitive_cache_invalidations_total",
			Help: "Total number of cached roots evicted in response to topology events.",
		}),
		traversalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "atlas_traversal_duration_seconds",
			Help:    "Time spent traversing a root's reachability tree on a cache miss.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.eventsProcessed, m.changesEmitted, m.sinkErrors,
		m.cacheHits, m.cacheMisses, m.cacheInvalidation, m.traversalDuration,
	)
	return m
}

func (m *AtlasMetrics) EventsProcessed() { m.eventsProcessed.Inc() }
func (m *AtlasMetrics) ChangesEmitted()  { m.changesEmitted.Inc() }
func (m *AtlasMetrics) SinkErrors()      { m.sinkErrors.Inc() }

func (m *AtlasMetrics) CacheHit()          { m.cacheHits.Inc() }
func (m *AtlasMetrics) CacheMiss()         { m.cacheMisses.Inc() }
func (m *AtlasMetrics) CacheInvalidation() { m.cacheInvalidation.Inc() }

func (m *AtlasMetrics) ObserveTraversalDuration(d time.Duration) {
	m.traversalDuration.Observe(d.Seconds())
}

// IngestMetrics implements orchestrator.Metrics and loader.Metrics against
// Prometheus counters and histograms.
type IngestMetrics struct {
	editsConsumed  prometheus.Counter
	upsertsLoaded  prometheus.Counter
	deletesLoaded  prometheus.Counter
	loaderErrors   prometheus.Counter
	batchesFlushed prometheus.Counter
	retries        prometheus.Counter
	backendErrors  *prometheus.CounterVec
	flushDuration  prometheus.Histogram
}

// NewIngestMetrics registers the ingest pipeline's counters and histograms on reg.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		editsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_edits_consumed_total",
			Help: "Total number of Edits decoded from the message bus.",
		}),
		upsertsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_upserts_loaded_total",
			Help: "Total number of entity documents upserted into the search backend.",
		}),
		deletesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_deletes_loaded_total",
			Help: "Total number of entity documents deleted from the search backend.",
		}),
		loaderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_loader_errors_total",
			Help: "Total number of loader operations that failed after exhausting retries.",
		}),
		batchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_batches_flushed_total",
			Help: "Total number of bulk upsert batches flushed to the search backend.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_search_retries_total",
			Help: "Total number of search backend operations retried after a transient failure.",
		}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_search_backend_errors_total",
			Help: "Total number of search backend errors by kind.",
		}, []string{"kind"}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_loader_flush_duration_seconds",
			Help:    "Time spent flushing one batch of buffered upserts to the search backend.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.editsConsumed, m.upsertsLoaded, m.deletesLoaded, m.loaderErrors,
		m.batchesFlushed, m.retries, m.backendErrors, m.flushDuration,
	)
	return m
}

func (m *IngestMetrics) EditsConsumed()      { m.editsConsumed.Inc() }
func (m *IngestMetrics) UpsertsLoaded(n int) { m.upsertsLoaded.Add(float64(n)) }
func (m *IngestMetrics) DeletesLoaded(n int) { m.deletesLoaded.Add(float64(n)) }
func (m *IngestMetrics) LoaderErrors()       { m.loaderErrors.Inc() }

func (m *IngestMetrics) BatchesFlushed()          { m.batchesFlushed.Inc() }
func (m *IngestMetrics) Retries()                 { m.retries.Inc() }
func (m *IngestMetrics) BackendError(kind string) { m.backendErrors.WithLabelValues(kind).Inc() }

func (m *IngestMetrics) ObserveFlushDuration(d time.Duration) {
	m.flushDuration.Observe(d.Seconds())
}
