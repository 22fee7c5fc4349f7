// Package metrics exposes Prometheus collectors for the ingest pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slopesentry",
		Name:      "readings_total",
		Help:      "Readings accepted, by ingest source.",
	}, []string{"source"})

	RejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slopesentry",
		Name:      "readings_rejected_total",
		Help:      "Readings rejected at the ingest boundary, by reason.",
	}, []string{"reason"})

	VerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slopesentry",
		Name:      "verdicts_total",
		Help:      "Verdicts produced, by risk state.",
	}, []string{"state"})

	RiskPercentage = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "slopesentry",
		Name:      "risk_percentage",
		Help:      "Risk percentage of the most recent verdict.",
	})

	ZScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "slopesentry",
		Name:      "zscore",
		Help:      "Z-score of the most recent reading, by sensor.",
	}, []string{"sensor"})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slopesentry",
		Name:      "sink_errors_total",
		Help:      "Failed deliveries to downstream sinks.",
	}, []string{"sink"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "slopesentry",
		Name:      "remote_poll_duration_seconds",
		Help:      "Duration of one remote backend poll cycle.",
		Buckets:   prometheus.DefBuckets,
	})
)
