package broker

import (
	"time"

	"github.com/wirebus/wirebus/internal/models"
)

// Topic holds a topic's subscriber set, replay history and message counter.
// All fields are guarded by the registry's critical section.
type Topic struct {
	Name string

	subscribers  map[string]*Subscriber
	history      *replayRing
	messageCount int64
	createdAt    time.Time
}

func newTopic(name string, ringCap int) *Topic {
	return &Topic{
		Name:        name,
		subscribers: make(map[string]*Subscriber),
		history:     newReplayRing(ringCap),
		createdAt:   time.Now(),
	}
}

func (t *Topic) attach(sub *Subscriber) {
	t.subscribers[sub.ClientID] = sub
	sub.topics[t.Name] = struct{}{}
}

func (t *Topic) detach(sub *Subscriber) {
	delete(t.subscribers, sub.ClientID)
	delete(sub.topics, t.Name)
}

func (t *Topic) joined(clientID string) bool {
	_, ok := t.subscribers[clientID]
	return ok
}

// record appends an event frame to the replay history and bumps the counter.
func (t *Topic) record(frame models.ServerFrame) {
	t.history.Append(frame)
	t.messageCount++
}

func (t *Topic) info() models.TopicInfo {
	return models.TopicInfo{Name: t.Name, Subscribers: len(t.subscribers)}
}

func (t *Topic) stats() models.TopicStats {
	return models.TopicStats{Messages: t.messageCount, Subscribers: len(t.subscribers)}
}
