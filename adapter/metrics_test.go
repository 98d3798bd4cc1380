package adapter

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnirt/shmq/pkg/queue"
)

func TestMeteredQueueCounts(t *testing.T) {
	q := queue.NewLocalQueue[int](2, true)
	require.NotNil(t, q)

	reg := prometheus.NewRegistry()
	m := NewMeteredQueue[int](q, "test", reg)

	require.True(t, m.Enqueue(1))
	require.True(t, m.Enqueue(2))
	require.False(t, m.Enqueue(3))
	require.True(t, m.EnqueueOverwrite(3)) // discards 1

	var v int
	require.True(t, m.Dequeue(&v))
	assert.Equal(t, 2, v)
	require.True(t, m.Dequeue(&v))
	assert.Equal(t, 3, v)
	require.False(t, m.Dequeue(&v))

	assert.Equal(t, float64(3), testutil.ToFloat64(m.enqueues))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.enqueueFull))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.dequeues))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dequeueEmpty))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.discards))
}

func TestMeteredQueueLatestDiscards(t *testing.T) {
	q := queue.NewLocalQueue[int](8, true)
	require.NotNil(t, q)

	reg := prometheus.NewRegistry()
	m := NewMeteredQueue[int](q, "latest", reg)

	for i := 1; i <= 5; i++ {
		require.True(t, m.Enqueue(i))
	}
	var v int
	require.True(t, m.DequeueLatest(&v))
	assert.Equal(t, 5, v)
	assert.Equal(t, float64(4), testutil.ToFloat64(m.discards))
	assert.True(t, m.Empty())
	assert.Equal(t, uint64(8), m.Capacity())
}

func TestMeteredQueueSizeGauge(t *testing.T) {
	q := queue.NewLocalQueue[int](4, true)
	require.NotNil(t, q)

	reg := prometheus.NewRegistry()
	m := NewMeteredQueue[int](q, "gauge", reg)
	require.True(t, m.Enqueue(1))
	require.True(t, m.Enqueue(2))

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "shmq_size" {
			found = true
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, float64(2), f.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found, "shmq_size gauge not gathered")
}
