// Package metrics holds the prometheus collectors for conversions and
// remote evaluations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "exprrepr"
	subsystem = "bridge"
)

// Direction labels a conversion.
type Direction string

const (
	ToRepresentation   Direction = "to_representation"
	FromRepresentation Direction = "from_representation"
)

// Metrics holds prometheus metrics for conversions and evaluations. A nil
// *Metrics records nothing.
type Metrics struct {
	conversions     *prometheus.CounterVec
	conversionTime  *prometheus.HistogramVec
	conversionNodes *prometheus.HistogramVec
	evaluationTime  *prometheus.HistogramVec
}

// New creates unregistered metrics.
func New() *Metrics {
	return &Metrics{
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "conversions_total",
				Help:      "Number of conversions by direction and result.",
			},
			[]string{"direction", "result"},
		),
		conversionTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "conversion_duration_seconds",
				Help:      "Conversion time in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 12),
			},
			[]string{"direction"},
		),
		conversionNodes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "conversion_nodes",
				Help:      "Number of nodes produced per successful conversion.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"direction"},
		),
		evaluationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Remote evaluation time in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 12),
			},
			[]string{"result"},
		),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveConversion records one conversion. nodes is ignored on error.
func (m *Metrics) ObserveConversion(dir Direction, elapsed time.Duration, nodes int, err error) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(string(dir), result(err)).Inc()
	m.conversionTime.WithLabelValues(string(dir)).Observe(elapsed.Seconds())
	if err == nil {
		m.conversionNodes.WithLabelValues(string(dir)).Observe(float64(nodes))
	}
}

// ObserveEvaluation records one evaluation.
func (m *Metrics) ObserveEvaluation(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.evaluationTime.WithLabelValues(result(err)).Observe(elapsed.Seconds())
}

// MustRegister registers the metrics with registry.
func (m *Metrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(m.conversions, m.conversionTime, m.conversionNodes, m.evaluationTime)
}
