package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/pointmap/metric"
)

type engineMetrics struct {
	mappings        *prometheus.CounterVec
	mappingDuration *prometheus.HistogramVec
	oracleCalls     prometheus.Counter
	qualityScore    prometheus.Histogram
	batches         prometheus.Counter
	batchPoints     prometheus.Histogram
}

func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	m := &engineMetrics{
		mappings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pointmap_mappings_total",
			Help: "Completed point mappings by method",
		}, []string{"method"}),
		mappingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pointmap_mapping_duration_seconds",
			Help:    "Time spent mapping a single point",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 15.0, 30.0, 60.0},
		}, []string{"method"}),
		oracleCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pointmap_oracle_calls_total",
			Help: "Oracle queries issued, including retries",
		}),
		qualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pointmap_quality_score",
			Help:    "Overall quality score per mapping",
			Buckets: []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1.0},
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pointmap_batches_total",
			Help: "Batches processed",
		}),
		batchPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pointmap_batch_points",
			Help:    "Points per batch",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		}),
	}

	component := "engine"
	if err := registry.RegisterCounterVec(component, "pointmap_mappings_total", m.mappings); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(component, "pointmap_mapping_duration_seconds", m.mappingDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "pointmap_oracle_calls_total", m.oracleCalls); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(component, "pointmap_quality_score", m.qualityScore); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "pointmap_batches_total", m.batches); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(component, "pointmap_batch_points", m.batchPoints); err != nil {
		return nil, err
	}

	return m, nil
}
