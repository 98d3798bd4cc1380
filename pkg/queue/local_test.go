package queue

import (
	"sync"
	"testing"

	wqueue "github.com/Workiva/go-datastructures/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalInit(t *testing.T) {
	tests := []struct {
		name      string
		size      uint64
		forcePow2 bool
		want      bool
	}{
		{"zero size", 0, false, false},
		{"too large", MaxQueueSize + 1, false, false},
		{"non-pow2 allowed", 10, false, true},
		{"non-pow2 forced", 10, true, false},
		{"pow2 forced", 16, true, true},
		{"size one", 1, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q LocalQueue[int]
			got := q.Init(tt.size, tt.forcePow2)
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.Equal(t, tt.size, q.Capacity())
				assert.True(t, q.Empty())
				assert.Equal(t, uint64(0), q.Size())
			} else {
				assert.Equal(t, uint64(0), q.Capacity())
			}
		})
	}
}

func TestLocalDoubleInit(t *testing.T) {
	var q LocalQueue[int]
	require.True(t, q.Init(8, false))
	assert.False(t, q.Init(8, false))
	// Capacity is exact, never rounded up.
	require.True(t, NewLocalQueue[int](10, false).Capacity() == 10)
}

func TestLocalUninitializedOps(t *testing.T) {
	var q LocalQueue[int]
	var v int
	assert.False(t, q.Enqueue(1))
	assert.False(t, q.EnqueueOverwrite(1))
	assert.False(t, q.Dequeue(&v))
	assert.False(t, q.DequeueLatest(&v))
	assert.True(t, q.Empty())
	q.Close() // must be safe before Init
}

func TestLocalFIFO(t *testing.T) {
	q := NewLocalQueue[int](64, true)
	require.NotNil(t, q)

	for i := 0; i < 64; i++ {
		require.True(t, q.Enqueue(i))
	}
	for i := 0; i < 64; i++ {
		var v int
		require.True(t, q.Dequeue(&v))
		assert.Equal(t, i, v)
	}
	assert.True(t, q.Empty())
}

func TestLocalCapacityBound(t *testing.T) {
	q := NewLocalQueue[int](4, true)
	require.NotNil(t, q)
	assert.Equal(t, uint64(4), q.Capacity())

	for i := 0; i < 4; i++ {
		assert.True(t, q.Enqueue(i))
	}
	assert.False(t, q.Enqueue(4))
	assert.Equal(t, uint64(4), q.Size())
}

func TestLocalOverwrite(t *testing.T) {
	q := NewLocalQueue[int](2, false)
	require.NotNil(t, q)

	require.True(t, q.Enqueue(1))
	require.True(t, q.Enqueue(2))
	require.False(t, q.Enqueue(3))
	require.True(t, q.EnqueueOverwrite(3))

	var v int
	require.True(t, q.Dequeue(&v))
	assert.Equal(t, 2, v)
	require.True(t, q.Dequeue(&v))
	assert.Equal(t, 3, v)
	assert.False(t, q.Dequeue(&v))
}

func TestLocalDequeueLatest(t *testing.T) {
	q := NewLocalQueue[int](4, false)
	require.NotNil(t, q)

	for _, v := range []int{1, 2, 3} {
		require.True(t, q.Enqueue(v))
	}
	var v int
	require.True(t, q.DequeueLatest(&v))
	assert.Equal(t, 3, v)
	assert.True(t, q.Empty())
	assert.False(t, q.DequeueLatest(&v))
}

func TestLocalNilOut(t *testing.T) {
	q := NewLocalQueue[int](4, false)
	require.NotNil(t, q)
	require.True(t, q.Enqueue(7))
	assert.False(t, q.Dequeue(nil))
	assert.False(t, q.DequeueLatest(nil))
	assert.Equal(t, uint64(1), q.Size())
}

func TestLocalNonPowerOfTwoWrap(t *testing.T) {
	// Capacity 10 exercises the division-based indexing across several
	// full wraparounds.
	q := NewLocalQueue[int](10, false)
	require.NotNil(t, q)

	next := 0
	for round := 0; round < 7; round++ {
		for i := 0; i < 10; i++ {
			require.True(t, q.Enqueue(next+i))
		}
		require.False(t, q.Enqueue(-1))
		for i := 0; i < 10; i++ {
			var v int
			require.True(t, q.Dequeue(&v))
			require.Equal(t, next+i, v)
		}
		next += 10
	}
}

func TestLocalCloseAndReinit(t *testing.T) {
	var q LocalQueue[int]
	require.True(t, q.Init(4, false))
	require.True(t, q.Enqueue(1))
	q.Close()
	q.Close() // idempotent

	var v int
	assert.False(t, q.Dequeue(&v))
	require.True(t, q.Init(8, false))
	assert.Equal(t, uint64(8), q.Capacity())
	assert.True(t, q.Empty())
}

func TestLocalStructElements(t *testing.T) {
	type sample struct {
		Seq uint64
		Val [3]float64
	}
	q := NewLocalQueue[sample](8, true)
	require.NotNil(t, q)

	in := sample{Seq: 42, Val: [3]float64{1.5, -2.5, 3.5}}
	require.True(t, q.Enqueue(in))
	var out sample
	require.True(t, q.Dequeue(&out))
	assert.Equal(t, in, out)
}

func TestLocalConcurrentStress(t *testing.T) {
	const n = 100000
	q := NewLocalQueue[int](1024, true)
	require.NotNil(t, q)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if q.Enqueue(i) {
				i++
			}
		}
	}()

	var got []int
	go func() {
		defer wg.Done()
		for len(got) < n {
			var v int
			if q.Dequeue(&v) {
				got = append(got, v)
			}
		}
	}()

	wg.Wait()
	require.Len(t, got, n)
	for i, v := range got {
		// In-order, no duplicates, no gaps.
		require.Equal(t, i, v)
	}
	assert.True(t, q.Empty())
}

func TestLocalConcurrentOverwriteLatest(t *testing.T) {
	// Producer overwrites freely; consumer only ever wants the newest
	// sample. Mid-race observations may legitimately jump around as
	// in-flight slots are overwritten; only the range and the final
	// quiescent value are exact.
	const n = 50000
	q := NewLocalQueue[uint64](8, true)
	require.NotNil(t, q)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := uint64(1); i <= n; i++ {
			require.True(t, q.EnqueueOverwrite(i))
		}
	}()

	var last uint64
	for {
		var v uint64
		if q.DequeueLatest(&v) {
			require.LessOrEqual(t, v, uint64(n))
			require.NotZero(t, v)
			last = v
		}
		select {
		case <-done:
			// With the producer quiescent the newest sample is exact.
			var tail uint64
			if q.DequeueLatest(&tail) {
				require.Equal(t, uint64(n), tail)
			} else {
				require.Equal(t, uint64(n), last)
			}
			return
		default:
		}
	}
}

func BenchmarkLocalEnqueueDequeueMask(b *testing.B) {
	q := NewLocalQueue[uint64](1024, true)
	var v uint64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Enqueue(uint64(i))
		q.Dequeue(&v)
	}
}

func BenchmarkLocalEnqueueDequeueModulo(b *testing.B) {
	q := NewLocalQueue[uint64](1000, false)
	var v uint64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Enqueue(uint64(i))
		q.Dequeue(&v)
	}
}

// Baseline against a general-purpose lock-free ring with interface{}
// elements and MPMC synchronization.
func BenchmarkWorkivaRingBuffer(b *testing.B) {
	rb := wqueue.NewRingBuffer(1024)
	defer rb.Dispose()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if ok, _ := rb.Offer(uint64(i)); !ok {
			b.Fatal("ring buffer unexpectedly full")
		}
		if _, err := rb.Get(); err != nil {
			b.Fatal(err)
		}
	}
}
