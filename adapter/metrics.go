// Package adapter integrates the shmq queue family with external
// observability systems: Prometheus, OpenTelemetry and healthcheck
// endpoints. The queue itself stays dependency-free on its hot path;
// callers opt in by wrapping.
package adapter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/omnirt/shmq/api"
)

// MeteredQueue wraps an api.Queue and counts operation outcomes in
// Prometheus metrics. The wrapper preserves the queue contract exactly;
// metric updates happen after the wrapped call.
type MeteredQueue[T any] struct {
	q api.Queue[T]

	enqueues     prometheus.Counter
	enqueueFull  prometheus.Counter
	dequeues     prometheus.Counter
	dequeueEmpty prometheus.Counter
	discards     prometheus.Counter
}

var _ api.Queue[int] = (*MeteredQueue[int])(nil)

// NewMeteredQueue registers per-queue counters and a size gauge on reg
// and returns the wrapping queue. queueName becomes the "queue" label.
func NewMeteredQueue[T any](q api.Queue[T], queueName string, reg prometheus.Registerer) *MeteredQueue[T] {
	labels := prometheus.Labels{"queue": queueName}
	factory := promauto.With(reg)

	m := &MeteredQueue[T]{
		q: q,
		enqueues: factory.NewCounter(prometheus.CounterOpts{
			Name:        "shmq_enqueue_total",
			Help:        "Elements successfully enqueued.",
			ConstLabels: labels,
		}),
		enqueueFull: factory.NewCounter(prometheus.CounterOpts{
			Name:        "shmq_enqueue_full_total",
			Help:        "Enqueue attempts rejected because the queue was full.",
			ConstLabels: labels,
		}),
		dequeues: factory.NewCounter(prometheus.CounterOpts{
			Name:        "shmq_dequeue_total",
			Help:        "Elements successfully dequeued.",
			ConstLabels: labels,
		}),
		dequeueEmpty: factory.NewCounter(prometheus.CounterOpts{
			Name:        "shmq_dequeue_empty_total",
			Help:        "Dequeue attempts finding the queue empty.",
			ConstLabels: labels,
		}),
		discards: factory.NewCounter(prometheus.CounterOpts{
			Name:        "shmq_overwrite_discard_total",
			Help:        "Unread elements discarded by EnqueueOverwrite or DequeueLatest.",
			ConstLabels: labels,
		}),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "shmq_size",
		Help:        "Current queue occupancy.",
		ConstLabels: labels,
	}, func() float64 { return float64(q.Size()) })

	return m
}

// Enqueue counts full-queue rejections alongside successes.
func (m *MeteredQueue[T]) Enqueue(v T) bool {
	ok := m.q.Enqueue(v)
	if ok {
		m.enqueues.Inc()
	} else {
		m.enqueueFull.Inc()
	}
	return ok
}

// EnqueueOverwrite counts a discard whenever it displaced an unread
// element to make room.
func (m *MeteredQueue[T]) EnqueueOverwrite(v T) bool {
	wasFull := m.q.Size() >= m.q.Capacity() && m.q.Capacity() > 0
	ok := m.q.EnqueueOverwrite(v)
	if ok {
		m.enqueues.Inc()
		if wasFull {
			m.discards.Inc()
		}
	}
	return ok
}

// Dequeue counts empty-queue misses alongside successes.
func (m *MeteredQueue[T]) Dequeue(out *T) bool {
	ok := m.q.Dequeue(out)
	if ok {
		m.dequeues.Inc()
	} else {
		m.dequeueEmpty.Inc()
	}
	return ok
}

// DequeueLatest counts every skipped-over element as a discard.
func (m *MeteredQueue[T]) DequeueLatest(out *T) bool {
	before := m.q.Size()
	ok := m.q.DequeueLatest(out)
	if ok {
		m.dequeues.Inc()
		if before > 1 {
			m.discards.Add(float64(before - 1))
		}
	} else {
		m.dequeueEmpty.Inc()
	}
	return ok
}

// Size delegates to the wrapped queue.
func (m *MeteredQueue[T]) Size() uint64 { return m.q.Size() }

// Empty delegates to the wrapped queue.
func (m *MeteredQueue[T]) Empty() bool { return m.q.Empty() }

// Capacity delegates to the wrapped queue.
func (m *MeteredQueue[T]) Capacity() uint64 { return m.q.Capacity() }
