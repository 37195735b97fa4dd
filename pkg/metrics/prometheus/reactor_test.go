package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestReactorMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReactorMetricsWith(reg).(*reactorMetrics)

	m.RecordConnectionAccepted()
	m.RecordConnectionAccepted()
	m.RecordConnectionClosed()
	m.RecordConnectionRejected("max_connections")
	m.SetActiveConnections(1)
	m.RecordItemEnqueued()
	m.RecordItemDropped("queue_full")
	m.SetQueueDepth(3)
	m.SetBusyWorkers(2)
	m.RecordBytes("read", 5)
	m.RecordBytes("read", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsClosed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsRejected.WithLabelValues("max_connections")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemsEnqueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemsDropped.WithLabelValues("queue_full")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.busyWorkers))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("read")))
}

func TestReactorMetrics_RecordItemProcessed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReactorMetricsWith(reg).(*reactorMetrics)

	m.RecordItemProcessed("echo", time.Millisecond, 2*time.Millisecond, nil)
	m.RecordItemProcessed("echo", time.Millisecond, 2*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemsProcessed.WithLabelValues("echo", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemsProcessed.WithLabelValues("echo", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.processDuration))
}

func TestReactorMetrics_RegisteredNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReactorMetricsWith(reg)
	m.RecordConnectionAccepted()

	count, err := testutil.GatherAndCount(reg, "hsha_connections_accepted_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
