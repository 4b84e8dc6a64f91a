// Package metrics defines the optional Prometheus collectors an embedding
// application can wire into the engine, scaled down from the reference
// platform's pkg/metrics (an HTTP service's request/latency/cache counters)
// to the handful of signals an embedded indexing core can usefully report.
// Registration and exposition (a scrape endpoint, a Registerer) are the
// caller's responsibility — this package only builds the collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors holds every Prometheus collector the engine will update when
// present. A nil *Collectors (the default) makes every engine metrics call
// a no-op.
type Collectors struct {
	DocsAdded        prometheus.Counter
	DocsRemoved      prometheus.Counter
	SegmentsFlushed  *prometheus.CounterVec
	SearchLatency    prometheus.Histogram
	SearchResultSize prometheus.Histogram
}

// New creates a Collectors ready to be registered with a
// prometheus.Registerer of the caller's choosing.
func New() *Collectors {
	return &Collectors{
		DocsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ftindex_documents_added_total",
			Help: "Total documents accepted by AddDocument(s) / AddDocumentIfMissing(s).",
		}),
		DocsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ftindex_documents_removed_total",
			Help: "Total documents tombstoned by RemoveDocument.",
		}),
		SegmentsFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftindex_segments_flushed_total",
			Help: "Total segment files materialized to storage, by index type.",
		}, []string{"type"}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ftindex_search_duration_seconds",
			Help:    "Search() latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		SearchResultSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ftindex_search_results",
			Help:    "Number of documents returned per Search() call.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
		}),
	}
}

// Collect reports every metric to register with a prometheus.Registerer.
func (c *Collectors) Collect() []prometheus.Collector {
	return []prometheus.Collector{
		c.DocsAdded,
		c.DocsRemoved,
		c.SegmentsFlushed,
		c.SearchLatency,
		c.SearchResultSize,
	}
}

// DocsAddedInc records n documents accepted by an intake call. Safe to call
// on a nil *Collectors.
func (c *Collectors) DocsAddedInc(n int) {
	if c == nil {
		return
	}
	c.DocsAdded.Add(float64(n))
}

// DocRemovedInc records one tombstoned document. Safe to call on a nil
// *Collectors.
func (c *Collectors) DocRemovedInc() {
	if c == nil {
		return
	}
	c.DocsRemoved.Inc()
}

// SegmentFlushedInc records one segment materialization for indexType
// ("word" or "char"). Safe to call on a nil *Collectors.
func (c *Collectors) SegmentFlushedInc(indexType string) {
	if c == nil {
		return
	}
	c.SegmentsFlushed.WithLabelValues(indexType).Inc()
}

// ObserveSearch records a Search() call's latency and result count. Safe to
// call on a nil *Collectors.
func (c *Collectors) ObserveSearch(seconds float64, resultCount int) {
	if c == nil {
		return
	}
	c.SearchLatency.Observe(seconds)
	c.SearchResultSize.Observe(float64(resultCount))
}
