// Package metrics exposes the process-local Prometheus registry and the
// collectors shared by the ingestion, deletion, and query layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry collects every lineagecore metric. The API layer decides how to
// expose it.
var Registry = prometheus.NewRegistry()

var (
	// BundlesIngested counts bundle versions written by the ingestion
	// pipeline, by outcome (inserted or duplicate).
	BundlesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineagecore",
		Name:      "bundles_ingested_total",
		Help:      "Bundle versions processed by the ingestion pipeline.",
	}, []string{"outcome"})

	// FilesUpserted counts file version upserts, by outcome.
	FilesUpserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineagecore",
		Name:      "files_upserted_total",
		Help:      "File versions processed by the ingestion pipeline.",
	}, []string{"outcome"})

	// BundlesDropped counts bundles removed by the deletion pipeline.
	BundlesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lineagecore",
		Name:      "bundles_dropped_total",
		Help:      "Bundles removed by the deletion pipeline.",
	})

	// EdgesDerived counts process adjacency edges recorded during link
	// decoding.
	EdgesDerived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lineagecore",
		Name:      "process_edges_derived_total",
		Help:      "Derived process-process edges recorded.",
	})

	// MalformedLinkRecords counts link records skipped during ingestion.
	MalformedLinkRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lineagecore",
		Name:      "malformed_link_records_total",
		Help:      "Link records skipped because required fields were missing.",
	})

	// QueryTimeouts counts gateway queries that exceeded their budget and
	// fell back to asynchronous execution.
	QueryTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lineagecore",
		Name:      "query_timeouts_total",
		Help:      "Synchronous queries that exceeded the execution budget.",
	})

	// JobsFinished counts async query jobs reaching a terminal state.
	JobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineagecore",
		Name:      "async_jobs_finished_total",
		Help:      "Async query jobs reaching a terminal state.",
	}, []string{"status"})

	// IngestDuration observes end-to-end bundle ingestion latency.
	IngestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lineagecore",
		Name:      "ingest_duration_seconds",
		Help:      "End-to-end bundle ingestion latency.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	Registry.MustRegister(
		BundlesIngested,
		FilesUpserted,
		BundlesDropped,
		EdgesDerived,
		MalformedLinkRecords,
		QueryTimeouts,
		JobsFinished,
		IngestDuration,
	)
}
