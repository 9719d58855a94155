package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smfs18/desafio-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveCreatedAndTransition(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCreated(domain.StatusPending, 0.38)
	m.ObserveCreated(domain.StatusAnomaly, 1.0)
	m.ObserveCreated(domain.StatusAnomaly, 0.9)
	m.ObserveTransition(domain.StatusApproved)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefillsCreated.WithLabelValues("pendente")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RefillsCreated.WithLabelValues("anomalia")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefillTransitions.WithLabelValues("aprovado")))
}

func TestMetrics_ObserveSummary(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSummary(domain.RefillSummary{
		ByStatus:  map[domain.RefillStatus]int{domain.StatusPending: 4, domain.StatusRejected: 1},
		Anomalies: 3,
	})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Backlog.WithLabelValues("pendente")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Backlog.WithLabelValues("recusado")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Anomalies))
}

func TestMetrics_RegistersOnProvidedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IncrementDriversRegistered()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "fuel_drivers_registered_total")
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCreated(domain.StatusPending, 0.1)
		m.ObserveTransition(domain.StatusRejected)
		m.ObserveSummary(domain.RefillSummary{})
		m.IncrementDriversRegistered()
	})
}
