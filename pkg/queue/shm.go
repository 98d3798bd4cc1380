package queue

import (
	"os"
	"reflect"
	"unsafe"

	"github.com/omnirt/shmq/api"
	"github.com/omnirt/shmq/internal/logx"
	"github.com/omnirt/shmq/internal/shm"
)

// ShmQueue is the cross-process flavor: the header and the element array
// live inside one POSIX shared-memory mapping, laid out as
// [QueueHeader][T; poolSize]. The ring algorithm is the same one
// LocalQueue runs; only the memory it operates on differs.
//
// T must be trivially copyable (no pointers, slices, maps, strings,
// channels, interfaces or funcs anywhere in it); Init rejects anything
// else, since a pointer value copied into shared memory is meaningless in
// another process's address space.
type ShmQueue[T any] struct {
	seg   *shm.Segment
	state api.ShmState
	r     ring[T]
}

var _ api.Queue[int] = (*ShmQueue[int])(nil)

// Init creates or attaches the named shared-memory queue.
//
// With asCreator set it attempts exclusive creation; a name collision
// falls back to attach semantics rather than failing. A true creation
// sizes the object to HeaderSize + size*sizeof(T), zero-initializes the
// pool (fresh shared pages are zero-filled) and publishes the header. An
// attacher never re-initializes anything; it validates that the creator's
// recorded capacity and element size match the locally requested ones and
// tears the mapping down on any mismatch.
//
// Init returns false with no partial state on invalid parameters, OS
// resource failures, or attach-time mismatches. A failed creation never
// leaves an orphan name behind.
func (q *ShmQueue[T]) Init(name string, size uint64, forcePowerOfTwo, asCreator bool) bool {
	if q.state != api.ShmNotInitialized {
		logx.Warnf("shm queue %s: double initialization rejected", name)
		return false
	}
	if size == 0 || size > MaxQueueSize {
		logx.Warnf("shm queue %s: invalid size %d", name, size)
		return false
	}
	pow2 := IsPowerOfTwo(size)
	if forcePowerOfTwo && !pow2 {
		logx.Warnf("shm queue %s: size %d is not a power of two", name, size)
		return false
	}
	elemType := reflect.TypeFor[T]()
	if !isTriviallyCopyable(elemType) {
		logx.Errorf("shm queue %s: element type %s is not trivially copyable", name, elemType)
		return false
	}

	var zero T
	elemSize := uint64(unsafe.Sizeof(zero))
	if elemSize != 0 && size > (^uint64(0)-HeaderSize)/elemSize {
		logx.Warnf("shm queue %s: size %d with %d-byte elements overflows the object size",
			name, size, elemSize)
		return false
	}
	total := TotalShmSize(size, elemSize)

	seg, err := shm.Map(shm.Options{Name: name, Size: total, AsCreator: asCreator})
	if err != nil {
		logx.Warnf("shm queue %s: %v", name, err)
		return false
	}

	mem := seg.Bytes()
	if uint64(len(mem)) < HeaderSize {
		logx.Warnf("shm queue %s: object too small for header (%d bytes)", name, len(mem))
		_ = seg.Close()
		return false
	}
	hdr := (*QueueHeader)(unsafe.Pointer(&mem[0]))

	if seg.Created() {
		// ftruncate on a fresh object guarantees zero pages, which is
		// exactly the default-constructed pool the contract asks for.
		hdr.initHeader(size, elemSize, pow2, uint32(os.Getpid()))
		q.state = api.ShmCreator
	} else {
		switch {
		case !hdr.Initialized():
			logx.Warnf("shm queue %s: creator has not finished initialization", name)
		case hdr.PoolSize() != size:
			logx.Errorf("shm queue %s: pool size mismatch: requested %d, segment holds %d",
				name, size, hdr.PoolSize())
		case hdr.ElemSize() != elemSize:
			logx.Errorf("shm queue %s: element size mismatch: requested %d, segment holds %d",
				name, elemSize, hdr.ElemSize())
		case seg.Size() < TotalShmSize(hdr.PoolSize(), hdr.ElemSize()):
			logx.Errorf("shm queue %s: object truncated: %d bytes for %d elements",
				name, seg.Size(), hdr.PoolSize())
		default:
			q.state = api.ShmAttacher
		}
		if q.state != api.ShmAttacher {
			_ = seg.Close()
			return false
		}
	}

	q.seg = seg
	q.r = ring[T]{
		hdr:      hdr,
		base:     unsafe.Add(unsafe.Pointer(&mem[0]), HeaderSize),
		elemSize: uintptr(elemSize),
	}
	logx.Infof("shm queue %s: initialized as %s, capacity %d, %d-byte elements",
		name, q.state, size, elemSize)
	return true
}

// Enqueue appends v; false when full or uninitialized.
func (q *ShmQueue[T]) Enqueue(v T) bool { return q.r.enqueue(v, false) }

// EnqueueOverwrite appends v, discarding the oldest unread element when
// full; false only when uninitialized.
func (q *ShmQueue[T]) EnqueueOverwrite(v T) bool { return q.r.enqueue(v, true) }

// Dequeue moves the oldest element into *out.
func (q *ShmQueue[T]) Dequeue(out *T) bool { return q.r.dequeue(out) }

// DequeueLatest moves the newest element into *out and discards the rest.
func (q *ShmQueue[T]) DequeueLatest(out *T) bool { return q.r.dequeueLatest(out) }

// Size returns the current occupancy, clamped to Capacity.
func (q *ShmQueue[T]) Size() uint64 { return q.r.size() }

// Empty reports whether the queue holds no unread elements.
func (q *ShmQueue[T]) Empty() bool { return q.r.empty() }

// Capacity returns the pool size fixed at Init, 0 before Init.
func (q *ShmQueue[T]) Capacity() uint64 { return q.r.capacity() }

// GetShmState reports whether this instance created the OS object,
// attached to an existing one, or is not initialized.
func (q *ShmQueue[T]) GetShmState() api.ShmState { return q.state }

// CreatorPID returns the pid recorded by the creating process, 0 before
// Init. Health probes use it to detect a dead peer.
func (q *ShmQueue[T]) CreatorPID() uint32 {
	if q.r.hdr == nil {
		return 0
	}
	return q.r.hdr.CreatorPID()
}

// Name returns the POSIX object name, "" before Init.
func (q *ShmQueue[T]) Name() string {
	if q.seg == nil {
		return ""
	}
	return q.seg.Name()
}

// Close always unmaps; only a Creator also unlinks the OS object.
// Calling it twice, or on a never-initialized queue, is a no-op.
func (q *ShmQueue[T]) Close() {
	if q.state == api.ShmNotInitialized || q.seg == nil {
		return
	}
	created := q.seg.Created()
	q.r = ring[T]{}
	if err := q.seg.Close(); err != nil {
		logx.Warnf("shm queue %s: %v", q.seg.Name(), err)
	}
	if created {
		if err := q.seg.Unlink(); err != nil {
			logx.Warnf("shm queue %s: %v", q.seg.Name(), err)
		}
	}
	q.seg = nil
	q.state = api.ShmNotInitialized
}
