// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package metrics exposes Prometheus instrumentation for the
// recommendation service: API throughput and latency, retrieval source
// health, enrichment outcomes, and index sizes.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Recommendation pipeline metrics
	RecommendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"}, // "ok", "empty_query", "no_results", "error"
	)

	RecommendCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_candidates_per_query",
			Help:    "Number of candidates scored per query",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	RecommendSourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_source_failures_total",
			Help: "Total number of retrieval source failures",
		},
		[]string{"source"},
	)

	RecommendEnrichmentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_enrichment_failures_total",
			Help: "Total number of per-candidate enrichment failures",
		},
	)

	// Index metrics
	IndexDocuments = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "index_documents",
			Help: "Current number of documents per index",
		},
		[]string{"index"}, // "sparse", "dense", "catalog"
	)

	IndexSnapshotAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "index_snapshot_age_seconds",
			Help: "Seconds since the last successful index snapshot",
		},
	)

	MoviesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movies_ingested_total",
			Help: "Total number of movies ingested",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRecommendation records one recommendation outcome with its
// candidate count and per-source diagnostics.
func RecordRecommendation(outcome string, candidates int, sourcesFailed []string, enrichmentFailures int) {
	RecommendRequestsTotal.WithLabelValues(outcome).Inc()
	RecommendCandidates.Observe(float64(candidates))
	for _, source := range sourcesFailed {
		RecommendSourceFailures.WithLabelValues(source).Inc()
	}
	if enrichmentFailures > 0 {
		RecommendEnrichmentFailures.Add(float64(enrichmentFailures))
	}
}

// SetIndexSizes updates the per-index document gauges.
func SetIndexSizes(sparseLen, denseLen, catalogLen int) {
	IndexDocuments.WithLabelValues("sparse").Set(float64(sparseLen))
	IndexDocuments.WithLabelValues("dense").Set(float64(denseLen))
	IndexDocuments.WithLabelValues("catalog").Set(float64(catalogLen))
}

// MarkSnapshotSaved resets the snapshot age gauge.
func MarkSnapshotSaved() {
	IndexSnapshotAge.Set(0)
}
