package apikey

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	require.NotNil(t, m.Registry())

	m.Init()
	// 2 checkpoints x 3 outcomes.
	assert.Equal(t, 6, testutil.CollectAndCount(m.evaluationsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(m.lookupErrors))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.True(t, strings.HasPrefix(f.GetName(), "keygate_apikey_"), f.GetName())
	}
}

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")
	m.RecordEvaluation("route", OutcomeAuthorized, 2*time.Millisecond)
	m.RecordEvaluation("route", OutcomeAuthorized, time.Millisecond)
	m.RecordEvaluation("spec", OutcomeUnauthenticated, time.Millisecond)
	m.RecordLookupError("spec")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("route", "authorized")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("spec", "unauthenticated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.lookupErrors.WithLabelValues("spec")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.evaluationDuration))
}

func TestMetrics_MustRegister(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")
	registry := prometheus.NewRegistry()

	assert.NotPanics(t, func() { m.MustRegister(registry) })
	// Registering the same collectors again is tolerated.
	assert.NotPanics(t, func() { m.MustRegister(registry) })

	m.RecordLookupError("route")
	count, err := testutil.GatherAndCount(registry, "test_apikey_lookup_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetSharedMetrics(t *testing.T) {
	t.Parallel()

	assert.Same(t, GetSharedMetrics(), GetSharedMetrics())
}
