// Package queue implements the bounded lock-free single-producer/
// single-consumer ring-buffer queue family: LocalQueue lives in process
// heap, ShmQueue lives in a POSIX shared-memory segment and is durable
// across process boundaries. Both share one ring algorithm.
package queue

import (
	"sync/atomic"
	"unsafe"
)

const (
	// CacheLineSize is the padding granularity separating the
	// producer-owned and consumer-owned counters.
	CacheLineSize = 64

	// HeaderSize is the exact byte size of QueueHeader: three cache
	// lines. The shared-memory layout is [QueueHeader][T; poolSize],
	// so this value is part of the cross-process wire contract.
	HeaderSize = 3 * CacheLineSize

	// MaxQueueSize is the largest accepted capacity, 2^63-1 elements.
	MaxQueueSize = uint64(1)<<63 - 1

	// headerMagic is "OMNIRTSQ"; written last by the creator so an
	// attacher observing it also observes an initialized header.
	headerMagic = uint64(0x4F4D4E4952545351)
)

// QueueHeader is the POD at the front of every queue, heap or mapped.
// head and tail are monotonically increasing; each sits alone on its own
// cache line to avoid false sharing between producer and consumer.
// The trailing scalars are written once by the creator before magic is
// published and are read-only afterwards, so they need no synchronization.
type QueueHeader struct {
	head uint64                      // 0x00: consumer-owned read index
	_    [CacheLineSize - 8]byte     // pad to 0x40
	tail uint64                      // 0x40: producer-owned write index
	_    [CacheLineSize - 8]byte     // pad to 0x80
	magic        uint64              // 0x80: headerMagic once initialized
	poolSize     uint64              // 0x88: capacity in elements
	poolSizeMask uint64              // 0x90: poolSize-1, valid iff useMask
	elemSize     uint64              // 0x98: sizeof(T) of the creator
	useMask      uint32              // 0xA0: 1 iff poolSize is a power of two
	creatorPID   uint32              // 0xA4: pid of the creating process
	_            [CacheLineSize - 40]byte // pad to 0xC0
}

// LoadHead atomically reads the consumer index.
func (h *QueueHeader) LoadHead() uint64 { return atomic.LoadUint64(&h.head) }

// StoreHead atomically publishes a new consumer index.
func (h *QueueHeader) StoreHead(v uint64) { atomic.StoreUint64(&h.head, v) }

// LoadTail atomically reads the producer index.
func (h *QueueHeader) LoadTail() uint64 { return atomic.LoadUint64(&h.tail) }

// StoreTail atomically publishes a new producer index.
func (h *QueueHeader) StoreTail(v uint64) { atomic.StoreUint64(&h.tail, v) }

// PoolSize returns the fixed element capacity.
func (h *QueueHeader) PoolSize() uint64 { return h.poolSize }

// ElemSize returns the element byte size recorded by the creator.
func (h *QueueHeader) ElemSize() uint64 { return h.elemSize }

// CreatorPID returns the pid of the process that initialized the header.
func (h *QueueHeader) CreatorPID() uint32 { return h.creatorPID }

// Initialized reports whether the creator finished publishing the header.
func (h *QueueHeader) Initialized() bool {
	return atomic.LoadUint64(&h.magic) == headerMagic
}

// initHeader fills in the immutable scalars, zeroes the counters and
// publishes magic last. Only the creating side may call it, before the
// producer or consumer starts operating.
func (h *QueueHeader) initHeader(poolSize, elemSize uint64, useMask bool, pid uint32) {
	h.poolSize = poolSize
	h.poolSizeMask = poolSize - 1
	h.elemSize = elemSize
	h.useMask = 0
	if useMask {
		h.useMask = 1
	}
	h.creatorPID = pid
	h.StoreHead(0)
	h.StoreTail(0)
	atomic.StoreUint64(&h.magic, headerMagic)
}

// Index maps a monotonic position onto [0, poolSize). Power-of-two
// capacities take the single-AND fast path fixed at Init; other
// capacities pay a division.
func (h *QueueHeader) Index(n uint64) uint64 {
	if h.useMask != 0 {
		return n & h.poolSizeMask
	}
	return n - (n/h.poolSize)*h.poolSize
}

// IsPowerOfTwo reports whether n is a power of two.
func IsPowerOfTwo(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}

// TotalShmSize returns the shared-memory object size for a queue of the
// given capacity and element size: header plus trailing element array.
func TotalShmSize(poolSize, elemSize uint64) uint64 {
	return HeaderSize + poolSize*elemSize
}

// compile-time layout guard; the cross-process contract depends on it.
var _ [HeaderSize]byte = [unsafe.Sizeof(QueueHeader{})]byte{}
