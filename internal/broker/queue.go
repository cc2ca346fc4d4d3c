package broker

import "github.com/wirebus/wirebus/internal/models"

// outQueue is a bounded FIFO deque of frames awaiting delivery to one
// subscriber. Not locked: the owning Subscriber guards it.
type outQueue struct {
	frames []models.ServerFrame
	head   int
	size   int
}

func newOutQueue(capacity int) *outQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &outQueue{frames: make([]models.ServerFrame, capacity)}
}

func (q *outQueue) Len() int { return q.size }

func (q *outQueue) Cap() int { return len(q.frames) }

func (q *outQueue) Full() bool { return q.size == len(q.frames) }

// PushBack appends a frame; reports false when the queue is full.
func (q *outQueue) PushBack(f models.ServerFrame) bool {
	if q.Full() {
		return false
	}
	q.frames[(q.head+q.size)%len(q.frames)] = f
	q.size++
	return true
}

// PushFront prepends a frame; reports false when the queue is full. Used to
// return an unsent frame to the queue after a failed transport write.
func (q *outQueue) PushFront(f models.ServerFrame) bool {
	if q.Full() {
		return false
	}
	q.head = (q.head - 1 + len(q.frames)) % len(q.frames)
	q.frames[q.head] = f
	q.size++
	return true
}

// PopFront removes and returns the oldest frame.
func (q *outQueue) PopFront() (models.ServerFrame, bool) {
	if q.size == 0 {
		return models.ServerFrame{}, false
	}
	f := q.frames[q.head]
	q.frames[q.head] = models.ServerFrame{}
	q.head = (q.head + 1) % len(q.frames)
	q.size--
	return f, true
}
