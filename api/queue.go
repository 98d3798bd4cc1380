// Package api defines the public contracts of the shmq queue family.
package api

// Queue is the operation surface shared by the in-process and the
// shared-memory SPSC queues. All operations are non-blocking and report
// success through their boolean result; a caller that needs to wait must
// re-poll outside the queue.
//
// Exactly one producer may call Enqueue/EnqueueOverwrite and exactly one
// consumer may call Dequeue/DequeueLatest. Size, Empty and Capacity are
// read-only snapshots and safe from either side.
type Queue[T any] interface {
	// Enqueue appends v. It returns false when the queue is full or
	// was never initialized.
	Enqueue(v T) bool
	// EnqueueOverwrite appends v, discarding the oldest unread element
	// when the queue is full. It returns false only when the queue was
	// never initialized.
	EnqueueOverwrite(v T) bool
	// Dequeue moves the oldest element into *out. It returns false when
	// out is nil, the queue is empty, or it was never initialized.
	Dequeue(out *T) bool
	// DequeueLatest moves the most recently published element into *out
	// and discards every older unread element. Same failure conditions
	// as Dequeue.
	DequeueLatest(out *T) bool
	// Size returns the number of unread elements, clamped to Capacity.
	Size() uint64
	// Empty reports whether Size() == 0.
	Empty() bool
	// Capacity returns the fixed pool size chosen at Init.
	Capacity() uint64
}

// ShmState describes a shared-memory queue's relationship to the
// underlying OS object.
type ShmState int

const (
	// ShmNotInitialized means Init has not succeeded (or Close ran).
	ShmNotInitialized ShmState = iota
	// ShmCreator means this instance created the OS object and owns its
	// lifecycle; Close will unlink the name.
	ShmCreator
	// ShmAttacher means this instance mapped an object created by
	// another process and only owns its own mapping.
	ShmAttacher
)

func (s ShmState) String() string {
	switch s {
	case ShmCreator:
		return "creator"
	case ShmAttacher:
		return "attacher"
	default:
		return "not-initialized"
	}
}
