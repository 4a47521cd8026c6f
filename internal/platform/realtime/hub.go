package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// frame is one serialized event queued for a client.
type frame struct {
	event string
	data  []byte
}

// Client is a single SSE or WebSocket connection bound to one topic.
type Client struct {
	ID    string
	Topic string
	send  chan frame
}

func newClient(topic string) *Client {
	return &Client{ID: uuid.NewString(), Topic: topic, send: make(chan frame, 64)}
}

// Hub tracks connected clients by topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Topic] == nil {
		h.clients[client.Topic] = make(map[*Client]struct{})
	}
	h.clients[client.Topic][client] = struct{}{}
}

// Unregister removes the client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, ok := subscribers[client]; !ok {
		return
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.send)
}

// Broadcast delivers event to every client on event.Topic. A client whose
// buffer is full misses the event.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn().Err(err).Str("type", event.Type).Msg("realtime: marshal event")
		return
	}
	f := frame{event: event.Type, data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[event.Topic] {
		select {
		case client.send <- f:
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("type", event.Type).Msg("realtime: client buffer full, event dropped")
		}
	}
}

// Publish broadcasts locally. It satisfies Publisher for single-instance
// deployments.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event)
	return nil
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
