package router

import (
	"sync"
)

// growThreshold is the fill percentage at which a buffer doubles.
const growThreshold = 70

// GrowableBuffer is a destination queue: a ring buffer that doubles once it
// is 70% full. Send never blocks, so a slow consumer cannot stall the
// network goroutine.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	count  int
	closed bool

	sent     int64 // accepted by Send
	consumed int64 // handed to a consumer
	resizes  int
}

// NewGrowableBuffer creates a buffer holding initialCapacity items before its first resize.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	b := &GrowableBuffer[T]{ring: make([]T, max(initialCapacity, 1))}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item. It returns false once the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	if b.count+1 >= max(len(b.ring)*growThreshold/100, 1) {
		b.resize(len(b.ring) * 2)
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.sent++
	b.cond.Signal()
	return true
}

// Receive blocks until an item is available and removes it.
// It returns false when the buffer is closed and empty.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.waitLocked() {
		var zero T
		return zero, false
	}
	return b.popLocked(), true
}

// ReceiveBatch blocks until at least one item is available, then removes up
// to limit items in FIFO order (all of them when limit <= 0).
// It returns false when the buffer is closed and empty.
func (b *GrowableBuffer[T]) ReceiveBatch(limit int) ([]T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.waitLocked() {
		return nil, false
	}
	n := b.count
	if limit > 0 && limit < n {
		n = limit
	}
	items := make([]T, n)
	for i := range items {
		items[i] = b.popLocked()
	}
	return items, true
}

// Close stops Send from accepting items and wakes blocked receivers, which
// still get what is queued. Closing twice is a no-op.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		b.cond.Broadcast()
	}
}

// Len returns the number of queued items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns a snapshot of the buffer counters.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.count,
		Capacity:      len(b.ring),
		TotalReceived: b.sent,
		TotalSent:     b.consumed,
		ResizeCount:   b.resizes,
		Closed:        b.closed,
	}
}

// BufferStats describes one destination queue.
// TotalReceived counts items accepted from the router, TotalSent items handed to a writer.
type BufferStats struct {
	Count         int   `json:"count"`
	Capacity      int   `json:"capacity"`
	TotalReceived int64 `json:"total_received"`
	TotalSent     int64 `json:"total_sent"`
	ResizeCount   int   `json:"resize_count"`
	Closed        bool  `json:"closed"`
}

// waitLocked blocks until an item is queued or the buffer is closed and
// empty, reporting whether an item is ready. Must be called with mu held.
func (b *GrowableBuffer[T]) waitLocked() bool {
	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	return b.count > 0
}

// popLocked removes the head item. Must be called with mu held and count > 0.
func (b *GrowableBuffer[T]) popLocked() T {
	item := b.ring[b.head]
	var zero T
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.consumed++
	return item
}

// resize moves the queued items to the front of a new ring of size n.
func (b *GrowableBuffer[T]) resize(n int) {
	ring := make([]T, n)
	for i := 0; i < b.count; i++ {
		ring[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.ring = ring
	b.head = 0
	b.resizes++
}
