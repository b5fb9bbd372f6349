package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

func TestManagersAreIndependent(t *testing.T) {
	first := NewManager()
	second := NewManager()

	first.GetPrometheusMetrics().RecordReconciliation("removed")
	first.GetPrometheusMetrics().RecordReconciliation("removed")
	second.GetPrometheusMetrics().RecordReconciliation("no_match")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.GetPrometheusMetrics().ReconciliationsTotal.WithLabelValues("removed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.GetPrometheusMetrics().ReconciliationsTotal.WithLabelValues("removed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(second.GetPrometheusMetrics().ReconciliationsTotal.WithLabelValues("no_match")))
}

func TestRecordStorageOperationAndHealth(t *testing.T) {
	m := NewManager()
	pm := m.GetPrometheusMetrics()

	pm.RecordStorageOperation("append", "memory", "success", 5*time.Millisecond)
	pm.UpdateComponentHealth("storage", false)
	m.UpdateSystemMetrics()

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.StorageOperationsTotal.WithLabelValues("append", "memory", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.ComponentHealth.WithLabelValues("storage")))
	assert.Greater(t, testutil.ToFloat64(pm.GoroutineCount), 0.0)

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "relay_storage_operations_total")
	assert.Contains(t, names, "relay_component_health")
}

func TestManagerLogsThroughConfiguredLogger(t *testing.T) {
	require.NoError(t, utils.InitLogger("debug", "json", "discard", ""))

	m := NewManager()
	assert.Same(t, utils.GetLogger(), m.logger.Logger)
	assert.Equal(t, "metrics", m.logger.Data["component"])

	m.UpdateSystemMetrics()
	assert.Positive(t, testutil.ToFloat64(m.GetPrometheusMetrics().GoroutineCount))
}
