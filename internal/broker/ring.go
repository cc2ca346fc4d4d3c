package broker

import "github.com/wirebus/wirebus/internal/models"

// replayRing is a fixed-capacity ring holding the most recent event frames
// published to a topic. A capacity of zero disables replay. The ring is not
// locked: all access goes through the registry's critical section.
type replayRing struct {
	frames []models.ServerFrame
	head   int // index of the oldest frame
	size   int
}

func newReplayRing(capacity int) *replayRing {
	if capacity < 0 {
		capacity = 0
	}
	return &replayRing{frames: make([]models.ServerFrame, capacity)}
}

// Append stores a frame, evicting the oldest when full.
func (r *replayRing) Append(f models.ServerFrame) {
	capacity := len(r.frames)
	if capacity == 0 {
		return
	}
	r.frames[(r.head+r.size)%capacity] = f
	if r.size < capacity {
		r.size++
	} else {
		r.head = (r.head + 1) % capacity
	}
}

// LastN returns up to n of the most recent frames in publish order.
func (r *replayRing) LastN(n int) []models.ServerFrame {
	if n <= 0 || r.size == 0 {
		return nil
	}
	if n > r.size {
		n = r.size
	}
	capacity := len(r.frames)
	out := make([]models.ServerFrame, n)
	start := (r.head + r.size - n) % capacity
	for i := 0; i < n; i++ {
		out[i] = r.frames[(start+i)%capacity]
	}
	return out
}

func (r *replayRing) Len() int { return r.size }

func (r *replayRing) Cap() int { return len(r.frames) }
