package broker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wirebus/wirebus/internal/models"
)

// Policy selects the behavior applied when a subscriber's outbound queue is
// full at enqueue time.
type Policy string

const (
	// PolicyDropOldest evicts the head of the queue to make room for the
	// new frame. The subscriber stays connected.
	PolicyDropOldest Policy = "DROP_OLDEST"

	// PolicyDisconnect sends a final SLOW_CONSUMER error, closes the
	// transport with code 1008 and removes the subscriber.
	PolicyDisconnect Policy = "DISCONNECT"
)

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToUpper(strings.TrimSpace(s))) {
	case PolicyDropOldest:
		return PolicyDropOldest, nil
	case PolicyDisconnect:
		return PolicyDisconnect, nil
	}
	return "", fmt.Errorf("unknown backpressure policy %q", s)
}

// EnqueueResult reports the outcome of enqueuing one frame onto a
// subscriber's outbound queue.
type EnqueueResult int

const (
	// EnqueueOK means the frame was queued.
	EnqueueOK EnqueueResult = iota

	// EnqueueEvictedOldest means the frame was queued after the oldest
	// queued frame was dropped (DROP_OLDEST).
	EnqueueEvictedOldest

	// EnqueueSlowConsumer means the queue was full under DISCONNECT: the
	// frame was not delivered and the transport has been closed. The
	// caller must remove the subscriber from the registry.
	EnqueueSlowConsumer

	// EnqueueTransportClosed means the transport was already closed or the
	// record detached. The caller must remove the subscriber.
	EnqueueTransportClosed
)

// Subscriber is the per-client mailbox: a bounded outbound queue, the set of
// joined topics and a non-owning transport handle. The topic set is guarded
// by the registry's critical section; the queue has its own lock because the
// session's writer goroutine drains it concurrently.
type Subscriber struct {
	ClientID string

	topics map[string]struct{} // registry lock
	policy Policy

	qmu       sync.Mutex
	queue     *outQueue
	transport Transport
	detached  bool

	// drainMu serializes Drain callers. After a reconnect rebinds the
	// record, the old session's writer goroutine can overlap the new one's
	// until its reader unblocks; without this lock the two would interleave
	// pop and write and deliver frames out of order.
	drainMu sync.Mutex

	wake chan struct{}
	log  zerolog.Logger
}

func newSubscriber(clientID string, tr Transport, queueCap int, policy Policy, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		ClientID:  clientID,
		topics:    make(map[string]struct{}),
		policy:    policy,
		queue:     newOutQueue(queueCap),
		transport: tr,
		wake:      make(chan struct{}, 1),
		log:       log.With().Str("client_id", clientID).Logger(),
	}
}

// Enqueue appends a frame to the outbound queue, applying the backpressure
// policy when full. It never blocks on the network beyond the transport's
// write deadline and is called inside the registry critical section.
func (s *Subscriber) Enqueue(frame models.ServerFrame) EnqueueResult {
	s.qmu.Lock()
	if s.detached {
		s.qmu.Unlock()
		return EnqueueTransportClosed
	}
	if !s.transport.IsOpen() {
		s.qmu.Unlock()
		droppedTotal.WithLabelValues(dropReasonTransportClosed).Inc()
		return EnqueueTransportClosed
	}

	if s.queue.Full() {
		if s.policy == PolicyDisconnect {
			tr := s.transport
			s.qmu.Unlock()
			s.log.Warn().Msg("slow consumer, disconnecting")
			// Best effort: the queue is being abandoned, so the error
			// frame goes straight to the transport.
			_ = tr.WriteFrame(models.ServerFrame{
				Type: models.FrameError,
				Error: &models.ErrorInfo{
					Code:    models.CodeSlowConsumer,
					Message: "Subscriber queue overflow, disconnecting",
				},
				TS: nowTS(),
			})
			_ = tr.Close(ClosePolicyViolation, ReasonSlowConsumer)
			droppedTotal.WithLabelValues(dropReasonQueueOverflow).Inc()
			slowConsumersTotal.Inc()
			return EnqueueSlowConsumer
		}

		s.queue.PopFront()
		s.queue.PushBack(frame)
		s.qmu.Unlock()
		s.log.Warn().Msg("slow consumer, dropped oldest queued frame")
		droppedTotal.WithLabelValues(dropReasonOldestEvicted).Inc()
		enqueuedTotal.Inc()
		s.signal()
		return EnqueueEvictedOldest
	}

	s.queue.PushBack(frame)
	s.qmu.Unlock()
	enqueuedTotal.Inc()
	s.signal()
	return EnqueueOK
}

// Drain writes queued frames to the transport in FIFO order until the queue
// is empty or a write fails. A failed frame is returned to the head of the
// queue so the unsent suffix survives for a later attempt. Runs on a
// session's writer goroutine, outside the registry critical section;
// concurrent callers are serialized so delivery order always matches
// enqueue order.
func (s *Subscriber) Drain() error {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	for {
		s.qmu.Lock()
		frame, ok := s.queue.PopFront()
		tr := s.transport
		s.qmu.Unlock()
		if !ok {
			return nil
		}
		if err := tr.WriteFrame(frame); err != nil {
			s.qmu.Lock()
			if !s.queue.PushFront(frame) {
				droppedTotal.WithLabelValues(dropReasonWriteFailed).Inc()
			}
			s.qmu.Unlock()
			return err
		}
	}
}

// Wake returns the channel signaled whenever a frame is enqueued.
func (s *Subscriber) Wake() <-chan struct{} { return s.wake }

// QueueLen returns the number of frames awaiting delivery.
func (s *Subscriber) QueueLen() int {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return s.queue.Len()
}

// Topics returns the joined topic names. Call only through the registry.
func (s *Subscriber) Topics() []string {
	names := make([]string, 0, len(s.topics))
	for name := range s.topics {
		names = append(names, name)
	}
	return names
}

func (s *Subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// detach marks the record dead so late enqueues become no-ops. Registry lock
// held by the caller.
func (s *Subscriber) detach() {
	s.qmu.Lock()
	s.detached = true
	s.qmu.Unlock()
}

// rebind points the record at a new transport after the previous connection
// closed. Registry lock held by the caller.
func (s *Subscriber) rebind(tr Transport) {
	s.qmu.Lock()
	s.transport = tr
	s.detached = false
	s.qmu.Unlock()
}

func (s *Subscriber) transportOpen() bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return !s.detached && s.transport.IsOpen()
}

func (s *Subscriber) closeTransport(code int, reason string) {
	s.qmu.Lock()
	tr := s.transport
	s.qmu.Unlock()
	_ = tr.Close(code, reason)
}
