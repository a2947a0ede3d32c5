package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store metrics. op is the DocumentStore method; status is the outcome
// class returned by outcome().
var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_store_operations_total",
		Help: "Document store operations by method and outcome.",
	}, []string{"op", "status"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docvault_store_operation_duration_seconds",
		Help:    "Document store operation latency.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})

	bytesSealedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docvault_bytes_sealed_total",
		Help: "Plaintext bytes encrypted and written to blob storage.",
	})

	orphanBlobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_orphan_blobs_total",
		Help: "Blobs left behind by failed metadata transactions, by cleanup result.",
	}, []string{"result"})

	integrityFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docvault_integrity_failures_total",
		Help: "Hash chain audits that found a broken chain.",
	})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docvault_version_cache_hits_total",
		Help: "Version row cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docvault_version_cache_misses_total",
		Help: "Version row cache misses.",
	})
)
