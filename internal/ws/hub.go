package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/event"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisPubSubChannel = "content-events"

// Message is what a watching editor receives
type Message struct {
	Type      string      `json:"type"` // request.status_changed, version.created, generation.progress, ...
	RequestID string      `json:"request_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans messages out to the clients watching a content request
type Hub struct {
	// Registered clients grouped by content request ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	mu          sync.RWMutex
	redisClient *redis.Client
	instanceID  string
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHub creates a hub; a nil redis client keeps delivery local to this instance
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		redisClient: redisClient,
		instanceID:  uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	if h.redisClient != nil {
		go h.subscribeRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.requestID] == nil {
				h.clients[client.requestID] = make(map[*Client]bool)
			}
			h.clients[client.requestID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients[msg.RequestID] {
				select {
				case client.send <- data:
				default:
					// slow consumer
					h.drop(client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// drop removes a client; callers hold mu
func (h *Hub) drop(client *Client) {
	clients, ok := h.clients[client.requestID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.requestID)
	}
}

// SendToRequest delivers msg to local watchers and publishes it for other instances
func (h *Hub) SendToRequest(msg *Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	h.enqueue(msg)

	if h.redisClient != nil {
		data, err := json.Marshal(&redisMessage{Origin: h.instanceID, Message: msg})
		if err == nil {
			if err := h.redisClient.Publish(h.ctx, redisPubSubChannel, data).Err(); err != nil {
				pkglogger.GetLogger().Warn().Err(err).Msg("ws: redis publish failed")
			}
		}
	}
}

func (h *Hub) enqueue(msg *Message) {
	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
	}
}

// Forward relays content events from the bus to watching clients
func (h *Hub) Forward(bus *event.Bus) {
	relay := func(e event.Event) {
		h.SendToRequest(&Message{Type: e.Topic, RequestID: e.RequestID, Payload: e.Payload, Timestamp: e.Timestamp})
	}
	for _, topic := range []string{event.TopicStatusChanged, event.TopicVersionCreated, event.TopicReviewRecorded, event.TopicProgress} {
		bus.Subscribe("ws", topic, relay)
	}
}

// ClientCount reports how many clients watch requestID
func (h *Hub) ClientCount(requestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[requestID])
}

type redisMessage struct {
	Origin  string   `json:"origin"`
	Message *Message `json:"message"`
}

// subscribeRedis relays messages published by other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm redisMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil || rm.Message == nil {
				continue
			}
			// already delivered locally
			if rm.Origin == h.instanceID {
				continue
			}
			h.enqueue(rm.Message)
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts the hub down
func (h *Hub) Stop() {
	h.cancel()
}
