package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewEngineMetrics(reg)
	require.NoError(t, err)

	m.EntitySaved("dynamic")
	m.EntitySaved("dynamic")
	m.EntityRestored("blank")
	m.EntitySpawned("motile")
	m.EntitySkipped("restore", "template_not_found")
	m.ObserveDuration("save", 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.saved.WithLabelValues("dynamic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restored.WithLabelValues("blank")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.spawned.WithLabelValues("motile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("restore", "template_not_found")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestEngineMetrics_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewEngineMetrics(reg)
	require.NoError(t, err)
	_, err = NewEngineMetrics(reg)
	assert.Error(t, err)
}

func TestEngineMetrics_NilSafe(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.EntitySaved("blank")
		m.EntitySkipped("save", "panic")
		m.ObserveDuration("restore", time.Second)
	})
}
