package broker

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wirebus/wirebus/internal/models"
)

// Options configures the registry.
type Options struct {
	// MaxQueueSize bounds each subscriber's outbound queue.
	MaxQueueSize int

	// RingBufferSize bounds each topic's replay history. Zero disables
	// replay.
	RingBufferSize int

	// Policy is the backpressure policy applied on queue overflow.
	Policy Policy
}

// Defaults for unset options.
const (
	DefaultMaxQueueSize   = 1000
	DefaultRingBufferSize = 100
)

// FailedDelivery identifies one subscriber a publish could not reach.
type FailedDelivery struct {
	ClientID string
	Reason   string
}

// Delivery failure reasons.
const (
	FailSlowConsumer    = "slow_consumer"
	FailTransportClosed = "transport_closed"
)

// PublishResult summarizes one fan-out.
type PublishResult struct {
	Reached int              // subscribers whose queue accepted the event
	Evicted int              // subscribers that lost their oldest queued frame
	Failed  []FailedDelivery // subscribers removed during fan-out
}

// Registry is the single source of truth for topics, subscribers and their
// cross-references. A coarse mutex serializes every operation so invariants
// hold atomically for any observer; transport I/O never runs under it
// except for bounded best-effort writes on the DISCONNECT path.
type Registry struct {
	mu          sync.Mutex
	topics      map[string]*Topic
	subscribers map[string]*Subscriber
	opts        Options
	startTime   time.Time
	shutdown    chan struct{}
	log         zerolog.Logger
}

// New creates a registry, applying defaults for unset options.
func New(opts Options, log zerolog.Logger) *Registry {
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = DefaultMaxQueueSize
	}
	if opts.RingBufferSize < 0 {
		opts.RingBufferSize = DefaultRingBufferSize
	}
	if opts.Policy == "" {
		opts.Policy = PolicyDropOldest
	}
	return &Registry{
		topics:      make(map[string]*Topic),
		subscribers: make(map[string]*Subscriber),
		opts:        opts,
		startTime:   time.Now(),
		shutdown:    make(chan struct{}),
		log:         log,
	}
}

// CreateTopic registers a new topic. The name is trimmed and must be
// non-empty and unused.
func (r *Registry) CreateTopic(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidTopicName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.topics[name]; exists {
		return ErrTopicExists
	}
	r.topics[name] = newTopic(name, r.opts.RingBufferSize)
	topicsActive.Inc()
	r.log.Info().Str("topic", name).Int("ring_buffer", r.opts.RingBufferSize).Msg("topic created")
	return nil
}

// DeleteTopic removes a topic. Every joined subscriber is detached and gets
// a topic_deleted info frame through its outbound queue; transports stay
// open.
func (r *Registry) DeleteTopic(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.topics[name]
	if !exists {
		return ErrTopicNotFound
	}

	notice := models.ServerFrame{
		Type:  models.FrameInfo,
		Topic: name,
		Msg:   models.InfoTopicDeleted,
		TS:    nowTS(),
	}
	for _, sub := range snapshot(t.subscribers) {
		switch sub.Enqueue(notice) {
		case EnqueueSlowConsumer, EnqueueTransportClosed:
			r.removeSubscriberLocked(sub)
		default:
			t.detach(sub)
		}
	}

	delete(r.topics, name)
	topicsActive.Dec()
	r.log.Info().Str("topic", name).Msg("topic deleted")
	return nil
}

// ListTopics returns all topics with subscriber counts, sorted by name.
func (r *Registry) ListTopics() []models.TopicInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]models.TopicInfo, 0, len(r.topics))
	for _, t := range r.topics {
		infos = append(infos, t.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Subscribe joins clientID to a topic, creating the subscriber record bound
// to tr on first use. Re-subscribing an already joined pair is a membership
// no-op but still replays. Returns the record and the number of historical
// frames enqueued.
func (r *Registry) Subscribe(clientID string, tr Transport, topicName string, lastN int) (*Subscriber, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.topics[topicName]
	if !exists {
		return nil, 0, ErrTopicNotFound
	}

	sub, exists := r.subscribers[clientID]
	if !exists {
		sub = newSubscriber(clientID, tr, r.opts.MaxQueueSize, r.opts.Policy, r.log)
		r.subscribers[clientID] = sub
		subscribersActive.Inc()
		r.log.Info().Str("client_id", clientID).Msg("subscriber registered")
	} else if !sub.transportOpen() {
		sub.rebind(tr)
	}

	t.attach(sub)
	r.log.Info().Str("client_id", clientID).Str("topic", topicName).Msg("subscribed")

	replayed := 0
	for _, frame := range t.history.LastN(lastN) {
		res := sub.Enqueue(frame)
		if res == EnqueueSlowConsumer || res == EnqueueTransportClosed {
			r.removeSubscriberLocked(sub)
			if replayed > 0 {
				replayedTotal.Add(float64(replayed))
			}
			return nil, replayed, ErrSubscriberGone
		}
		replayed++
	}
	if replayed > 0 {
		replayedTotal.Add(float64(replayed))
	}
	return sub, replayed, nil
}

// Unsubscribe detaches clientID from a topic. Reports ErrTopicNotFound for
// an unknown topic and ErrNotSubscribed when the pair is not joined.
func (r *Registry) Unsubscribe(clientID, topicName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.topics[topicName]
	if !exists {
		return ErrTopicNotFound
	}
	sub, exists := r.subscribers[clientID]
	if !exists || !t.joined(clientID) {
		return ErrNotSubscribed
	}

	t.detach(sub)
	r.log.Info().Str("client_id", clientID).Str("topic", topicName).Msg("unsubscribed")
	return nil
}

// Publish stamps the message, records it in the topic's replay history and
// fans it out to every joined subscriber. Per-subscriber failures never
// abort the fan-out; they are reported in the result.
func (r *Registry) Publish(topicName string, msg models.Message) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.topics[topicName]
	if !exists {
		return PublishResult{}, ErrTopicNotFound
	}

	m := msg
	frame := models.ServerFrame{
		Type:    models.FrameEvent,
		Topic:   t.Name,
		Message: &m,
		TS:      nowTS(),
	}
	t.record(frame)
	publishesTotal.Inc()

	var res PublishResult
	for _, sub := range snapshot(t.subscribers) {
		switch sub.Enqueue(frame) {
		case EnqueueOK:
			res.Reached++
		case EnqueueEvictedOldest:
			res.Reached++
			res.Evicted++
		case EnqueueSlowConsumer:
			res.Failed = append(res.Failed, FailedDelivery{ClientID: sub.ClientID, Reason: FailSlowConsumer})
			r.removeSubscriberLocked(sub)
		case EnqueueTransportClosed:
			res.Failed = append(res.Failed, FailedDelivery{ClientID: sub.ClientID, Reason: FailTransportClosed})
			r.removeSubscriberLocked(sub)
		}
	}

	r.log.Debug().
		Str("topic", topicName).
		Str("message_id", msg.ID).
		Int("reached", res.Reached).
		Int("failed", len(res.Failed)).
		Msg("published")
	return res, nil
}

// RemoveSubscriber removes clientID from every joined topic and discards
// the record. Safe to call for unknown IDs.
func (r *Registry) RemoveSubscriber(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, exists := r.subscribers[clientID]; exists {
		r.removeSubscriberLocked(sub)
	}
}

// ReleaseSubscriber is the session controller's cleanup hook: it removes
// the record only while its transport is closed. A record already rebound
// to a newer connection is left alone.
func (r *Registry) ReleaseSubscriber(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.subscribers[clientID]
	if !exists || sub.transportOpen() {
		return
	}
	r.removeSubscriberLocked(sub)
}

// Health reports uptime and object counts.
func (r *Registry) Health() models.HealthResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.HealthResponse{
		UptimeSec:   int(time.Since(r.startTime).Seconds()),
		Topics:      len(r.topics),
		Subscribers: len(r.subscribers),
	}
}

// Stats reports per-topic counters.
func (r *Registry) Stats() models.StatsResponse {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics := make(map[string]models.TopicStats, len(r.topics))
	for name, t := range r.topics {
		topics[name] = t.stats()
	}
	return models.StatsResponse{Topics: topics}
}

// ShuttingDown reports whether Shutdown has begun.
func (r *Registry) ShuttingDown() bool {
	select {
	case <-r.shutdown:
		return true
	default:
		return false
	}
}

// Shutdown drains subscriber queues until empty or the context deadline
// passes, then closes every transport with 1001 and discards all state.
// The drain deadline is a ceiling, not a guarantee that queues empty.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	select {
	case <-r.shutdown:
		r.mu.Unlock()
		return
	default:
		close(r.shutdown)
	}
	subs := snapshot(r.subscribers)
	r.mu.Unlock()

	r.log.Info().Int("subscribers", len(subs)).Msg("broker shutting down")

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
drain:
	for {
		pending := 0
		for _, sub := range subs {
			pending += sub.QueueLen()
		}
		if pending == 0 {
			break
		}
		select {
		case <-ctx.Done():
			r.log.Warn().Int("pending_frames", pending).Msg("drain deadline reached")
			break drain
		case <-ticker.C:
		}
	}

	for _, sub := range subs {
		sub.closeTransport(CloseGoingAway, ReasonShuttingDown)
	}

	r.mu.Lock()
	for _, sub := range snapshot(r.subscribers) {
		r.removeSubscriberLocked(sub)
	}
	r.mu.Unlock()

	r.log.Info().Msg("broker shutdown complete")
}

// removeSubscriberLocked removes every cross-reference before discarding
// the record. Caller holds r.mu.
func (r *Registry) removeSubscriberLocked(sub *Subscriber) {
	if _, exists := r.subscribers[sub.ClientID]; !exists {
		return
	}
	for _, name := range sub.Topics() {
		if t, ok := r.topics[name]; ok {
			t.detach(sub)
		}
	}
	delete(r.subscribers, sub.ClientID)
	sub.detach()
	subscribersActive.Dec()
	r.log.Info().Str("client_id", sub.ClientID).Msg("subscriber removed")
}

func snapshot(m map[string]*Subscriber) []*Subscriber {
	subs := make([]*Subscriber, 0, len(m))
	for _, sub := range m {
		subs = append(subs, sub)
	}
	return subs
}

func nowTS() string {
	return time.Now().UTC().Format(time.RFC3339)
}
