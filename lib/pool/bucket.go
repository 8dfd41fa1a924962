package pool

import (
	"math/bits"
	"runtime"

	"go.uber.org/atomic"
)

const (
	// MinBucketLength is the length of the smallest size class.
	MinBucketLength = 16
	// MaxBucketLength is the largest length any size class may have.
	MaxBucketLength = 1 << 30
)

// SelectBucket maps a requested length to the index of the smallest size
// class able to hold it. Lengths up to MinBucketLength map to bucket 0.
func SelectBucket(size int) int {
	if size <= 0 {
		return 0
	}
	return bits.Len(uint(size-1)|(MinBucketLength-1)) - 4
}

// BucketLength is the fixed slice length stored in bucket i.
func BucketLength(i int) int {
	return MinBucketLength << i
}

// bucket is a bounded LIFO stack of idle slices that all have the same
// length. Access is serialized with a spin lock: every critical section is a
// single push or pop.
type bucket[T any] struct {
	length  int
	locked  atomic.Bool
	buffers [][]T
}

func newBucket[T any](length, capacity int) *bucket[T] {
	return &bucket[T]{
		length:  length,
		buffers: make([][]T, 0, capacity),
	}
}

func (b *bucket[T]) lock() {
	for !b.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (b *bucket[T]) unlock() {
	b.locked.Store(false)
}

// pop returns an idle slice, or nil when the bucket is empty.
func (b *bucket[T]) pop() []T {
	b.lock()
	var buf []T
	if n := len(b.buffers); n > 0 {
		buf = b.buffers[n-1]
		b.buffers[n-1] = nil
		b.buffers = b.buffers[:n-1]
	}
	b.unlock()
	return buf
}

// push stores buf unless the bucket is full. It reports whether buf was kept.
func (b *bucket[T]) push(buf []T) bool {
	b.lock()
	kept := len(b.buffers) < cap(b.buffers)
	if kept {
		b.buffers = append(b.buffers, buf)
	}
	b.unlock()
	return kept
}

func (b *bucket[T]) idle() int {
	b.lock()
	n := len(b.buffers)
	b.unlock()
	return n
}
