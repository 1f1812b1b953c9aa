// Package metrics exposes prometheus collectors for view indexing and view queries
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IndexGenerations counts index generations by view and whether the sorted projections were rebuilt
	IndexGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewkit_index_generations_total",
			Help: "Total number of index generations",
		},
		[]string{"view", "resorted"},
	)
	// IndexedDocuments counts documents seen by the index builder by outcome (mapped, reused, failed)
	IndexedDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewkit_indexed_documents_total",
			Help: "Total number of documents processed by index generations",
		},
		[]string{"view", "outcome"},
	)
	// IndexRows is the row count of the latest generation of a view
	IndexRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "viewkit_index_rows",
			Help: "Number of rows in the latest index generation",
		},
		[]string{"view"},
	)
	// QueryTotal counts view queries by outcome
	QueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewkit_queries_total",
			Help: "Total number of view queries",
		},
		[]string{"view", "status"},
	)
	// QueryDuration is the latency of view queries, including the index refresh
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viewkit_query_duration_seconds",
			Help:    "View query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)
	// RequestTotal counts HTTP requests by route and status
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewkit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)
