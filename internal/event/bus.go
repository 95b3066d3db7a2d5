package event

import (
	"sync"
	"time"

	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
)

// Topics published by the content services
const (
	TopicStatusChanged  = "request.status_changed"
	TopicVersionCreated = "version.created"
	TopicReviewRecorded = "review.recorded"
	TopicProgress       = "generation.progress"
)

// Event is one notification about a content request
type Event struct {
	Topic     string                 `json:"topic"`
	RequestID string                 `json:"request_id"`
	OrgID     string                 `json:"org_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Handler consumes an event
type Handler func(e Event)

type subscription struct {
	name    string
	handler Handler
}

// Bus is an in-process publish/subscribe hub. Publishing happens after
// commit, so subscribers never observe rolled-back state.
type Bus struct {
	subscribers map[string][]subscription // topic -> handlers
	mu          sync.RWMutex
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]subscription)}
}

// Subscribe registers handler for topic under a subscriber name
func (b *Bus) Subscribe(name, topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], subscription{name: name, handler: handler})
}

// Unsubscribe drops every subscription registered under name
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subscribers {
		var remaining []subscription
		for _, s := range subs {
			if s.name != name {
				remaining = append(remaining, s)
			}
		}
		if len(remaining) == 0 {
			delete(b.subscribers, topic)
		} else {
			b.subscribers[topic] = remaining
		}
	}
}

// Publish delivers e synchronously to every subscriber of its topic.
// A panicking handler is logged and does not affect the others.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[e.Topic]))
	copy(subs, b.subscribers[e.Topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					pkglogger.GetLogger().Error().
						Str("topic", e.Topic).
						Str("subscriber", s.name).
						Interface("panic", r).
						Msg("event handler panicked")
				}
			}()
			s.handler(e)
		}()
	}
}

// Subscriptions lists subscriber names per topic
func (b *Bus) Subscriptions() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string][]string, len(b.subscribers))
	for topic, subs := range b.subscribers {
		for _, s := range subs {
			out[topic] = append(out[topic], s.name)
		}
	}
	return out
}
