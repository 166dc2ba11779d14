package connection

import (
	"sync"
)

// sendQueue is a FIFO of outbound frames for one connection. It starts small,
// doubles when 70% full, and refuses new items once limit are pending.
type sendQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    [][]byte
	head   int // read position
	tail   int // write position
	count  int
	limit  int
	closed bool

	// Stats
	pushed  int64
	popped  int64
	resizes int
}

const initialQueueCapacity = 8

func newSendQueue(limit int) *sendQueue {
	if limit < 1 {
		limit = 1
	}
	capacity := initialQueueCapacity
	if capacity > limit {
		capacity = limit
	}
	q := &sendQueue{
		buf:   make([][]byte, capacity),
		limit: limit,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends a frame. Returns ErrClosed after close and ErrQueueFull when
// limit frames are already waiting.
func (q *sendQueue) push(frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.count >= q.limit {
		return ErrQueueFull
	}

	threshold := (len(q.buf) * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold && len(q.buf) < q.limit {
		q.grow()
	}
	if q.count == len(q.buf) {
		q.grow()
	}

	q.buf[q.tail] = frame
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.pushed++

	q.cond.Signal()
	return nil
}

// pop blocks until a frame is available or the queue is closed. It returns
// false once the queue is closed, even if frames remain.
func (q *sendQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}

	frame := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.popped++

	return frame, true
}

// close wakes every waiter; further pushes fail.
func (q *sendQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// grow doubles the ring capacity, never past limit. Must be called with lock held.
func (q *sendQueue) grow() {
	newCapacity := len(q.buf) * 2
	if newCapacity > q.limit {
		newCapacity = q.limit
	}
	if newCapacity <= len(q.buf) {
		return
	}
	newBuf := make([][]byte, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.resizes++
}
