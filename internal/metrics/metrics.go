// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rewrite outcomes used as the result label.
const (
	ResultOK    = "ok"
	ResultRaw   = "raw"
	ResultError = "error"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	rewrites        *prometheus.CounterVec
	rewriteDuration prometheus.Histogram
	actionsMatched  prometheus.Histogram
	rulesApplied    prometheus.Histogram
	reloads         *prometheus.CounterVec
	rulesLoaded     prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rewrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_rewrites_total",
			Help: "Rewrite requests by result",
		}, []string{"result"}),
		rewriteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_rewrite_duration_seconds",
			Help:    "Rewrite latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us to ~400ms
		}),
		actionsMatched: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_actions_matched",
			Help:    "Actions matched per rewrite before selection",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		rulesApplied: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_rules_applied",
			Help:    "Rules applied per rewrite after selection",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_rule_reloads_total",
			Help: "Rule set reloads by result",
		}, []string{"result"}),
		rulesLoaded: f.NewGauge(prometheus.GaugeOpts{
			Name: "quill_rules_loaded",
			Help: "Rules in the active rule set",
		}),
	}
}

// ObserveRewrite records one rewrite.
func (m *Metrics) ObserveRewrite(result string, d time.Duration, matched, applied int) {
	if m == nil {
		return
	}
	m.rewrites.WithLabelValues(result).Inc()
	m.rewriteDuration.Observe(d.Seconds())
	if result == ResultOK {
		m.actionsMatched.Observe(float64(matched))
		m.rulesApplied.Observe(float64(applied))
	}
}

// ObserveReload records a reload attempt; rules is the active count afterwards.
func (m *Metrics) ObserveReload(err error, rules int) {
	if m == nil {
		return
	}
	if err != nil {
		m.reloads.WithLabelValues(ResultError).Inc()
		return
	}
	m.reloads.WithLabelValues(ResultOK).Inc()
	m.rulesLoaded.Set(float64(rules))
}

// Handler serves the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
