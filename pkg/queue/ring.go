package queue

import "unsafe"

// ring is the one SPSC algorithm both queue flavors run. It operates on a
// QueueHeader plus a contiguous element array, wherever those happen to
// live: LocalQueue points it at heap memory, ShmQueue at a mapped segment.
//
// Ordering protocol: the producer writes the slot, then release-stores
// tail; the consumer acquire-loads tail, reads the slot, then
// release-stores head. Go's sync/atomic gives at least acquire/release
// semantics on Load/Store, which is what the happens-before argument
// needs, in-process and across shared pages alike.
type ring[T any] struct {
	hdr      *QueueHeader
	base     unsafe.Pointer
	elemSize uintptr
}

func (r *ring[T]) slot(i uint64) *T {
	return (*T)(unsafe.Pointer(uintptr(r.base) + uintptr(i)*r.elemSize))
}

// enqueue publishes one element. With overwrite set, a full queue drops
// its oldest unread element instead of rejecting the write.
func (r *ring[T]) enqueue(v T, overwrite bool) bool {
	if r.hdr == nil {
		return false
	}
	curTail := r.hdr.LoadTail() // producer-owned
	curHead := r.hdr.LoadHead()

	if curTail-curHead >= r.hdr.poolSize {
		if !overwrite {
			return false
		}
		// Discard the oldest slot. This is the one sanctioned breach
		// of the single-writer rule on head; the consumer tolerates
		// head moving under it because it re-reads head per call.
		r.hdr.StoreHead(curHead + 1)
	}

	*r.slot(r.hdr.Index(curTail)) = v
	r.hdr.StoreTail(curTail + 1)
	return true
}

// dequeue moves the oldest unread element into *out.
func (r *ring[T]) dequeue(out *T) bool {
	if r.hdr == nil || out == nil {
		return false
	}
	curHead := r.hdr.LoadHead() // consumer-owned
	curTail := r.hdr.LoadTail()

	if curHead == curTail {
		return false
	}

	*out = *r.slot(r.hdr.Index(curHead))
	r.hdr.StoreHead(curHead + 1)
	return true
}

// dequeueLatest moves the most recently published element into *out and
// jumps head to tail, discarding everything older in one step. Meant for
// state-style payloads where staleness, not loss, is the failure mode.
func (r *ring[T]) dequeueLatest(out *T) bool {
	if r.hdr == nil || out == nil {
		return false
	}
	curHead := r.hdr.LoadHead()
	curTail := r.hdr.LoadTail()

	if curHead == curTail {
		return false
	}

	*out = *r.slot(r.hdr.Index(curTail - 1))
	r.hdr.StoreHead(curTail)
	return true
}

// size is a snapshot, clamped to capacity so a read straddling an
// overwrite-induced head move never reports an impossible occupancy.
func (r *ring[T]) size() uint64 {
	if r.hdr == nil {
		return 0
	}
	n := r.hdr.LoadTail() - r.hdr.LoadHead()
	if n > r.hdr.poolSize {
		return r.hdr.poolSize
	}
	return n
}

func (r *ring[T]) empty() bool { return r.size() == 0 }

func (r *ring[T]) capacity() uint64 {
	if r.hdr == nil {
		return 0
	}
	return r.hdr.poolSize
}
