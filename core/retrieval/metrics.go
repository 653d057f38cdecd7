package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// retrievalRequests counts Retrieve calls.
	// Labels: mode, status (ok, rejected)
	retrievalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "retrieval",
		Name:      "requests_total",
		Help:      "Total retrieval requests by mode and status",
	}, []string{"mode", "status"})

	// channelLatency measures the time a channel took to answer or fail.
	// Labels: channel (vector, fuzzy, graph), status (ok, error, timeout)
	channelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nexus",
		Subsystem: "retrieval",
		Name:      "channel_latency_seconds",
		Help:      "Retrieval channel latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"channel", "status"})

	// channelDegraded counts channels that were replaced by an empty result set.
	// Labels: channel, reason (error, timeout, panic)
	channelDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "retrieval",
		Name:      "channel_degraded_total",
		Help:      "Total degraded retrieval channels by reason",
	}, []string{"channel", "reason"})

	// fusedResults tracks how many results the fusion step returned.
	fusedResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nexus",
		Subsystem: "retrieval",
		Name:      "fused_results",
		Help:      "Number of fused results per retrieval",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})
)
