package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_publishes_total",
		Help: "Total number of publish attempts, labelled by outcome (published, degraded, failed).",
	}, []string{"outcome"})

	PublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamgate_publish_duration_ms",
		Help:    "End-to-end publish latency (compile, persist, notify) in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	SubscribersNotified = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamgate_subscribers_notified",
		Help: "Listeners that received the reload signal on the most recent publish.",
	})

	RulesConfigured = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamgate_rules_configured",
		Help: "Processor rules currently held in the rule store.",
	})

	OutputsConfigured = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamgate_outputs_configured",
		Help: "Output targets currently held in the output store.",
	})

	BatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamgate_batch_size",
		Help: "Current batch size setting.",
	})

	SeedReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_seed_reloads_total",
		Help: "Seed file applications, labelled by status.",
	}, []string{"status"})

	ManifestReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_agent_manifest_reloads_total",
		Help: "Manifests fetched by a subscriber after a reload signal, labelled by status.",
	}, []string{"status"})
)
