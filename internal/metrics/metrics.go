// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus instrumentation for the evaluation
// engine: per-verdict counters, evaluation latency, and rate-limit/
// penalty-box gauges (SPEC_FULL §4.3, §4.5 added).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/ruletypes"
)

// Collector holds every metric this package registers. Observations come
// from the flat engine once the Collector is attached with
// engine.SetRecorder; the graph interpreter does not report to it.
type Collector struct {
	evaluations      *prometheus.CounterVec
	evaluationLatency prometheus.Histogram
	rateLimitHits    *prometheus.CounterVec
	penaltyBoxActive prometheus.GaugeFunc
}

// NewCollector builds and registers the collector's metrics against reg. A
// nil reg registers against the default global registry.
func NewCollector(reg prometheus.Registerer, registry *ratelimit.Registry) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgesentry",
			Name:      "evaluations_total",
			Help:      "Total number of request evaluations, labeled by verdict.",
		}, []string{"verdict", "form"}),
		evaluationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edgesentry",
			Name:      "evaluation_duration_seconds",
			Help:      "Per-request rule evaluation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgesentry",
			Name:      "rate_limit_hits_total",
			Help:      "Total number of rate-limit threshold crossings, labeled by cell name.",
		}, []string{"cell"}),
	}
	c.penaltyBoxActive = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "edgesentry",
		Name:      "penalty_box_active_entries",
		Help:      "Current number of non-expired penalty-box entries across all cells.",
	}, func() float64 {
		return float64(registry.ActivePenaltyBoxEntries(time.Now()))
	})

	reg.MustRegister(c.evaluations, c.evaluationLatency, c.rateLimitHits, c.penaltyBoxActive)
	return c
}

// Evaluation is one observation the flat engine reports after producing a
// verdict.
type Evaluation struct {
	Verdict  ruletypes.VerdictKind
	Form     string // "flat" or "graph"
	Duration time.Duration
}

// Observe records one evaluation's verdict and latency.
func (c *Collector) Observe(e Evaluation) {
	c.evaluations.WithLabelValues(string(e.Verdict), e.Form).Inc()
	c.evaluationLatency.Observe(e.Duration.Seconds())
}

// RateLimitHit records one rate-limit threshold crossing for the named
// cell, called by the flat engine whenever a RateLimit leaf transitions a
// client into penalized state. Graph RateLimit nodes do not call it.
func (c *Collector) RateLimitHit(cellName string) {
	c.rateLimitHits.WithLabelValues(cellName).Inc()
}
