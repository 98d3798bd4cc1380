package queue

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestHeaderLayout(t *testing.T) {
	var h QueueHeader
	assert.Equal(t, uintptr(HeaderSize), unsafe.Sizeof(h))
	assert.Equal(t, uintptr(0x00), unsafe.Offsetof(h.head))
	assert.Equal(t, uintptr(0x40), unsafe.Offsetof(h.tail))
	assert.Equal(t, uintptr(0x80), unsafe.Offsetof(h.magic))
	assert.Equal(t, uintptr(0x88), unsafe.Offsetof(h.poolSize))
	assert.Equal(t, uintptr(0x90), unsafe.Offsetof(h.poolSizeMask))
	assert.Equal(t, uintptr(0x98), unsafe.Offsetof(h.elemSize))
	assert.Equal(t, uintptr(0xA0), unsafe.Offsetof(h.useMask))
	assert.Equal(t, uintptr(0xA4), unsafe.Offsetof(h.creatorPID))
}

func TestHeaderInit(t *testing.T) {
	var h QueueHeader
	assert.False(t, h.Initialized())

	h.initHeader(16, 8, true, 1234)
	assert.True(t, h.Initialized())
	assert.Equal(t, uint64(16), h.PoolSize())
	assert.Equal(t, uint64(8), h.ElemSize())
	assert.Equal(t, uint32(1234), h.CreatorPID())
	assert.Equal(t, uint64(0), h.LoadHead())
	assert.Equal(t, uint64(0), h.LoadTail())
}

func TestIndexMaskAndModulo(t *testing.T) {
	var masked QueueHeader
	masked.initHeader(16, 4, true, 0)

	var plain QueueHeader
	plain.initHeader(10, 4, false, 0)

	for _, n := range []uint64{0, 1, 15, 16, 17, 159, 1 << 40, ^uint64(0)} {
		assert.Equal(t, n%16, masked.Index(n), "mask index of %d", n)
		assert.Equal(t, n%10, plain.Index(n), "modulo index of %d", n)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []uint64{1, 2, 4, 1024, 1 << 62} {
		assert.True(t, IsPowerOfTwo(n), "%d", n)
	}
	for _, n := range []uint64{0, 3, 6, 10, 1<<62 + 1} {
		assert.False(t, IsPowerOfTwo(n), "%d", n)
	}
}

func TestTotalShmSize(t *testing.T) {
	assert.Equal(t, uint64(HeaderSize), TotalShmSize(0, 8))
	assert.Equal(t, uint64(HeaderSize)+16*8, TotalShmSize(16, 8))
}
