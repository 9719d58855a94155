// Package metrics holds the Prometheus collectors exported by the fuel service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smfs18/desafio-backend/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RefillsCreated    *prometheus.CounterVec
	RefillTransitions *prometheus.CounterVec
	AnomalyScore      prometheus.Histogram
	Backlog           *prometheus.GaugeVec
	Anomalies         prometheus.Gauge
	DriversRegistered prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg uses a
// private registry, which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		RefillsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fuel_refills_created_total",
			Help: "Refills created, by initial status",
		}, []string{"status"}),
		RefillTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fuel_refill_transitions_total",
			Help: "Approve/reject transitions applied, by resulting status",
		}, []string{"status"}),
		AnomalyScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fuel_refill_anomaly_score",
			Help:    "Anomaly score of created refills",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		Backlog: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fuel_refill_backlog",
			Help: "Refills per status at the last report run",
		}, []string{"status"}),
		Anomalies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fuel_refill_anomalies",
			Help: "Refills flagged as anomalous at the last report run",
		}),
		DriversRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "fuel_drivers_registered_total",
			Help: "Drivers registered",
		}),
	}
}

// ObserveCreated records a new refill's initial status and score.
func (m *Metrics) ObserveCreated(status domain.RefillStatus, score float64) {
	if m == nil {
		return
	}
	m.RefillsCreated.WithLabelValues(string(status)).Inc()
	m.AnomalyScore.Observe(score)
}

// ObserveTransition records an approve/reject outcome.
func (m *Metrics) ObserveTransition(status domain.RefillStatus) {
	if m == nil {
		return
	}
	m.RefillTransitions.WithLabelValues(string(status)).Inc()
}

// ObserveSummary publishes a backlog summary into the gauges.
func (m *Metrics) ObserveSummary(summary domain.RefillSummary) {
	if m == nil {
		return
	}
	for status, count := range summary.ByStatus {
		m.Backlog.WithLabelValues(string(status)).Set(float64(count))
	}
	m.Anomalies.Set(float64(summary.Anomalies))
}

// IncrementDriversRegistered increments the registered drivers counter by 1.
func (m *Metrics) IncrementDriversRegistered() {
	if m == nil {
		return
	}
	m.DriversRegistered.Inc()
}
