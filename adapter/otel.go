package adapter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/omnirt/shmq/api"
)

// InstrumentedQueue wraps an api.Queue and reports operation outcomes
// through an OpenTelemetry Meter. The queue name travels as the
// "shmq.queue" attribute on every instrument.
type InstrumentedQueue[T any] struct {
	q api.Queue[T]

	enqueues     metric.Int64Counter
	enqueueFull  metric.Int64Counter
	dequeues     metric.Int64Counter
	dequeueEmpty metric.Int64Counter
	discards     metric.Int64Counter
	attrs        metric.MeasurementOption
}

var _ api.Queue[int] = (*InstrumentedQueue[int])(nil)

// InstrumentQueue creates the instruments on meter and returns the
// wrapping queue. A registration failure of any single instrument fails
// the whole call; nothing is half-instrumented.
func InstrumentQueue[T any](q api.Queue[T], queueName string, meter metric.Meter) (*InstrumentedQueue[T], error) {
	iq := &InstrumentedQueue[T]{
		q:     q,
		attrs: metric.WithAttributes(attribute.String("shmq.queue", queueName)),
	}

	var err error
	if iq.enqueues, err = meter.Int64Counter("shmq.enqueue",
		metric.WithDescription("Elements successfully enqueued.")); err != nil {
		return nil, err
	}
	if iq.enqueueFull, err = meter.Int64Counter("shmq.enqueue.full",
		metric.WithDescription("Enqueue attempts rejected because the queue was full.")); err != nil {
		return nil, err
	}
	if iq.dequeues, err = meter.Int64Counter("shmq.dequeue",
		metric.WithDescription("Elements successfully dequeued.")); err != nil {
		return nil, err
	}
	if iq.dequeueEmpty, err = meter.Int64Counter("shmq.dequeue.empty",
		metric.WithDescription("Dequeue attempts finding the queue empty.")); err != nil {
		return nil, err
	}
	if iq.discards, err = meter.Int64Counter("shmq.discard",
		metric.WithDescription("Unread elements discarded by overwrite or latest-wins reads.")); err != nil {
		return nil, err
	}

	size, err := meter.Int64ObservableGauge("shmq.size",
		metric.WithDescription("Current queue occupancy."))
	if err != nil {
		return nil, err
	}
	if _, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(size, int64(q.Size()), iq.attrs)
		return nil
	}, size); err != nil {
		return nil, err
	}

	return iq, nil
}

// Enqueue counts full-queue rejections alongside successes.
func (iq *InstrumentedQueue[T]) Enqueue(v T) bool {
	ok := iq.q.Enqueue(v)
	if ok {
		iq.enqueues.Add(context.Background(), 1, iq.attrs)
	} else {
		iq.enqueueFull.Add(context.Background(), 1, iq.attrs)
	}
	return ok
}

// EnqueueOverwrite counts a discard whenever it displaced an unread
// element to make room.
func (iq *InstrumentedQueue[T]) EnqueueOverwrite(v T) bool {
	wasFull := iq.q.Size() >= iq.q.Capacity() && iq.q.Capacity() > 0
	ok := iq.q.EnqueueOverwrite(v)
	if ok {
		iq.enqueues.Add(context.Background(), 1, iq.attrs)
		if wasFull {
			iq.discards.Add(context.Background(), 1, iq.attrs)
		}
	}
	return ok
}

// Dequeue counts empty-queue misses alongside successes.
func (iq *InstrumentedQueue[T]) Dequeue(out *T) bool {
	ok := iq.q.Dequeue(out)
	if ok {
		iq.dequeues.Add(context.Background(), 1, iq.attrs)
	} else {
		iq.dequeueEmpty.Add(context.Background(), 1, iq.attrs)
	}
	return ok
}

// DequeueLatest counts every skipped-over element as a discard.
func (iq *InstrumentedQueue[T]) DequeueLatest(out *T) bool {
	before := iq.q.Size()
	ok := iq.q.DequeueLatest(out)
	if ok {
		iq.dequeues.Add(context.Background(), 1, iq.attrs)
		if before > 1 {
			iq.discards.Add(context.Background(), int64(before-1), iq.attrs)
		}
	} else {
		iq.dequeueEmpty.Add(context.Background(), 1, iq.attrs)
	}
	return ok
}

// Size delegates to the wrapped queue.
func (iq *InstrumentedQueue[T]) Size() uint64 { return iq.q.Size() }

// Empty delegates to the wrapped queue.
func (iq *InstrumentedQueue[T]) Empty() bool { return iq.q.Empty() }

// Capacity delegates to the wrapped queue.
func (iq *InstrumentedQueue[T]) Capacity() uint64 { return iq.q.Capacity() }
