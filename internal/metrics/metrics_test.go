package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveConversion(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New()
	m.MustRegister(registry)

	m.ObserveConversion(ToRepresentation, time.Millisecond, 12, nil)
	m.ObserveConversion(ToRepresentation, time.Millisecond, 0, errors.New("boom"))
	m.ObserveConversion(FromRepresentation, 2*time.Millisecond, 12, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.conversions.WithLabelValues("to_representation", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conversions.WithLabelValues("to_representation", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conversions.WithLabelValues("from_representation", "success")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.conversionNodes))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "exprrepr_bridge_conversions_total")
	assert.Contains(t, names, "exprrepr_bridge_conversion_duration_seconds")
}

func TestObserveEvaluation(t *testing.T) {
	m := New()
	m.ObserveEvaluation(time.Microsecond, nil)
	m.ObserveEvaluation(time.Microsecond, errors.New("eval"))
	assert.Equal(t, 2, testutil.CollectAndCount(m.evaluationTime))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveConversion(ToRepresentation, time.Second, 1, nil)
		m.ObserveEvaluation(time.Second, nil)
	})
}
