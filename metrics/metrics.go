// Package metrics exposes the Prometheus collectors for the mask search
// engine and a small standalone metrics server consumed by api/httpserver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// masksExpanded counts source masks fed through the round expander.
	masksExpanded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptagraph",
		Subsystem: "search",
		Name:      "masks_expanded_total",
		Help:      "Source masks expanded through the substitution layer",
	})

	// masksAccepted counts candidates accepted into the collector.
	masksAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptagraph",
		Subsystem: "search",
		Name:      "masks_accepted_total",
		Help:      "Candidate masks accepted by the bounded collector",
	})

	// masksRejected counts candidates rejected by the collector
	// (duplicates or below the current worst at capacity).
	masksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptagraph",
		Subsystem: "search",
		Name:      "masks_rejected_total",
		Help:      "Candidate masks rejected by the bounded collector",
	})

	// collectorSize tracks the local collector size at round end.
	collectorSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cryptagraph",
		Subsystem: "search",
		Name:      "collector_size",
		Help:      "Entries held by the local collector after expansion",
	})

	// roundCurrent tracks the round the node is working on.
	roundCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cryptagraph",
		Subsystem: "cluster",
		Name:      "round_current",
		Help:      "Round currently being processed",
	})

	// roundDuration measures full round wall time (expand through broadcast).
	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cryptagraph",
		Subsystem: "cluster",
		Name:      "round_duration_seconds",
		Help:      "Wall time of one full search round",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	})

	// expandDuration measures the local expansion phase.
	expandDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cryptagraph",
		Subsystem: "search",
		Name:      "expand_duration_seconds",
		Help:      "Wall time of the local expansion phase",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	})

	// framesSent counts transport frames sent, by collective kind.
	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptagraph",
		Subsystem: "cluster",
		Name:      "frames_sent_total",
		Help:      "Transport frames sent, by collective kind",
	}, []string{"kind"})

	// framesReceived counts transport frames received, by collective kind.
	framesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptagraph",
		Subsystem: "cluster",
		Name:      "frames_received_total",
		Help:      "Transport frames received, by collective kind",
	}, []string{"kind"})

	// protocolViolations counts fatal frame validation failures.
	protocolViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptagraph",
		Subsystem: "cluster",
		Name:      "protocol_violations_total",
		Help:      "Fatal protocol violations observed (oversized or corrupt frames)",
	})
)

// AddMasksExpanded accounts source masks fed through the expander.
func AddMasksExpanded(n uint64) {
	masksExpanded.Add(float64(n))
}

// AddMasksAccepted accounts candidates admitted by the collector.
func AddMasksAccepted(n uint64) {
	masksAccepted.Add(float64(n))
}

// AddMasksRejected accounts candidates the collector turned away.
func AddMasksRejected(n uint64) {
	masksRejected.Add(float64(n))
}

// RecordCollectorSize records the collector size after local expansion.
func RecordCollectorSize(n int) {
	collectorSize.Set(float64(n))
}

// RecordRound records the round number and its total duration.
func RecordRound(round int, seconds float64) {
	roundCurrent.Set(float64(round))
	roundDuration.Observe(seconds)
}

// RecordExpandDuration records the duration of the local expansion phase.
func RecordExpandDuration(seconds float64) {
	expandDuration.Observe(seconds)
}

// RecordFrameSent accounts one sent transport frame.
func RecordFrameSent(kind string) {
	framesSent.WithLabelValues(kind).Inc()
}

// RecordFrameReceived accounts one received transport frame.
func RecordFrameReceived(kind string) {
	framesReceived.WithLabelValues(kind).Inc()
}

// RecordProtocolViolation accounts one fatal frame validation failure.
func RecordProtocolViolation() {
	protocolViolations.Inc()
}
