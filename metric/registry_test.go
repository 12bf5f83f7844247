package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_mappings_total",
		Help: "Total mappings",
	})

	err := registry.RegisterCounter("engine", "test_mappings_total", counter)
	require.NoError(t, err)

	// Duplicate registration under the same component is rejected
	err = registry.RegisterCounter("engine", "test_mappings_total", counter)
	assert.Error(t, err)
}

func TestRegisterGaugeAndVec(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_records",
		Help: "Current record count",
	})
	require.NoError(t, registry.RegisterGauge("memory", "test_records", gauge))

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_outcomes_total",
		Help: "Outcomes by method",
	}, []string{"method"})
	require.NoError(t, registry.RegisterCounterVec("engine", "test_outcomes_total", vec))

	vec.WithLabelValues("oracle").Inc()
	gauge.Set(42)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_records"])
	assert.True(t, names["test_outcomes_total"])
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_unregister_total",
		Help: "test",
	})
	require.NoError(t, registry.RegisterCounter("engine", "test_unregister_total", counter))

	assert.True(t, registry.Unregister("engine", "test_unregister_total"))
	assert.False(t, registry.Unregister("engine", "test_unregister_total"))

	// Re-registration after unregister succeeds
	assert.NoError(t, registry.RegisterCounter("engine", "test_unregister_total", counter))
}

func TestHandler(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_handler_total",
		Help: "test",
	})
	require.NoError(t, registry.RegisterCounter("engine", "test_handler_total", counter))
	counter.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_handler_total 1")
}
