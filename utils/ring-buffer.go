package utils

import (
	"sync/atomic"
)

// ---------------------------- SPSC Ring Buffer ----------------------------

// Single-producer single-consumer lock-free ring buffer. Used by the
// message bus for one worker-pair's inbox: exactly one sender (the flush
// at the barrier) and one receiver (the owning worker's drain loop).
type RingBuffSPSC[T any] struct {
	_           [0]atomic.Int64
	enqueue     uint64
	enqDeqCache uint64
	enqMask     uint64
	enqEntries  []T
	_           [2]uint64
	dequeue     uint64
	deqEnqCache uint64
	deqMask     uint64
	deqEntries  []T
}

// Will allocate and initialize the ring buffer with the specified size.
func (rb *RingBuffSPSC[T]) Init(size uint64) {
	size = RoundUpPow(size)
	rb.enqMask = (size - 1)
	rb.deqMask = rb.enqMask
	rb.enqEntries = make([]T, size)
	rb.deqEntries = rb.enqEntries
}

// How many elements are currently available to dequeue.
// Will update the deqEnqCache for the dequeuer (this call loads the enqueuer's cache line).
func (rb *RingBuffSPSC[T]) DeqCheckRange() uint64 {
	rb.deqEnqCache = atomic.LoadUint64(&rb.enqueue)
	return rb.deqEnqCache - rb.dequeue
}

// Dequeuer: Return the next item, or false and the desired position in the buffer if empty.
func (rb *RingBuffSPSC[T]) Accept() (item T, ok bool) {
	pos := rb.dequeue
	enqPos := rb.deqEnqCache
	if pos >= enqPos {
		enqPos = atomic.LoadUint64(&rb.enqueue)
		rb.deqEnqCache = enqPos
	}
	if pos < enqPos {
		item = rb.deqEntries[pos&rb.deqMask]
		atomic.StoreUint64(&rb.dequeue, pos+1)
		return item, true
	}
	return item, false
}

// Enqueuer: Offers the item. Returns false if there is no space, giving the desired position in the buffer.
func (rb *RingBuffSPSC[T]) Offer(item T) (ok bool) {
	pos := rb.enqueue
	deqPos := rb.enqDeqCache
	if pos > (deqPos + rb.enqMask) {
		deqPos = atomic.LoadUint64(&rb.dequeue)
		rb.enqDeqCache = deqPos
	}
	if pos <= (deqPos + rb.enqMask) {
		rb.enqEntries[pos&rb.enqMask] = item
		atomic.StoreUint64(&rb.enqueue, pos+1)
		return true
	}
	return false
}
