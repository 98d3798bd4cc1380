package queue

import (
	"unsafe"

	"github.com/omnirt/shmq/api"
	"github.com/omnirt/shmq/internal/logx"
)

// LocalQueue is the in-process flavor: one header and one element array on
// the Go heap. Zero value is usable; call Init before anything else.
type LocalQueue[T any] struct {
	hdr  QueueHeader
	pool []T // keeps the element array reachable for the GC
	r    ring[T]
}

var _ api.Queue[int] = (*LocalQueue[int])(nil)

// NewLocalQueue allocates and initializes a queue in one step, returning
// nil when Init would have returned false.
func NewLocalQueue[T any](size uint64, forcePowerOfTwo bool) *LocalQueue[T] {
	q := &LocalQueue[T]{}
	if !q.Init(size, forcePowerOfTwo) {
		return nil
	}
	return q
}

// Init allocates the element pool and fixes the indexing strategy. It
// returns false, leaving no partial state, when size is zero or exceeds
// MaxQueueSize, when the queue is already initialized, or when
// forcePowerOfTwo is set and size is not a power of two. The capacity is
// exactly size; it is never rounded up.
func (q *LocalQueue[T]) Init(size uint64, forcePowerOfTwo bool) bool {
	if q.pool != nil {
		logx.Warnf("local queue: double initialization rejected")
		return false
	}
	if size == 0 || size > MaxQueueSize {
		logx.Warnf("local queue: invalid size %d", size)
		return false
	}
	pow2 := IsPowerOfTwo(size)
	if forcePowerOfTwo && !pow2 {
		logx.Warnf("local queue: size %d is not a power of two", size)
		return false
	}

	var zero T
	q.pool = make([]T, size)
	q.hdr.initHeader(size, uint64(unsafe.Sizeof(zero)), pow2, 0)
	q.r = ring[T]{
		hdr:      &q.hdr,
		base:     unsafe.Pointer(&q.pool[0]),
		elemSize: unsafe.Sizeof(zero),
	}
	return true
}

// Enqueue appends v; false when full or uninitialized.
func (q *LocalQueue[T]) Enqueue(v T) bool { return q.r.enqueue(v, false) }

// EnqueueOverwrite appends v, discarding the oldest unread element when
// full; false only when uninitialized.
func (q *LocalQueue[T]) EnqueueOverwrite(v T) bool { return q.r.enqueue(v, true) }

// Dequeue moves the oldest element into *out.
func (q *LocalQueue[T]) Dequeue(out *T) bool { return q.r.dequeue(out) }

// DequeueLatest moves the newest element into *out and discards the rest.
func (q *LocalQueue[T]) DequeueLatest(out *T) bool { return q.r.dequeueLatest(out) }

// Size returns the current occupancy, clamped to Capacity.
func (q *LocalQueue[T]) Size() uint64 { return q.r.size() }

// Empty reports whether the queue holds no unread elements.
func (q *LocalQueue[T]) Empty() bool { return q.r.empty() }

// Capacity returns the pool size fixed at Init, 0 before Init.
func (q *LocalQueue[T]) Capacity() uint64 { return q.r.capacity() }

// Close releases the pool. Idempotent; the queue can be re-Init'ed after.
func (q *LocalQueue[T]) Close() {
	q.r = ring[T]{}
	q.pool = nil
}
