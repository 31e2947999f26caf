package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub tracks the connected admin feed clients and broadcasts to them. With Redis
// configured, events are published once and every instance relays them from its
// subscription, so each client receives each event exactly once.
type Hub struct {
	clients  map[string]*Client
	unsub    func()
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes feed events for every instance.
type RedisPublisher interface {
	PublishFeedEvent(event string, payload []byte) error
}

// RedisSubscriber delivers feed events published by any instance.
type RedisSubscriber interface {
	SubscribeFeed(handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new feed hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client. The Redis subscription starts with the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if len(h.clients) == 0 && h.redisSub != nil && h.unsub == nil {
		cancel, err := h.redisSub.SubscribeFeed(func(event string, payload []byte) {
			h.Broadcast(event, json.RawMessage(payload))
		})
		if err != nil {
			h.logger.Warn("feed subscribe failed", zap.Error(err))
		} else {
			h.unsub = cancel
		}
	}
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("feed client joined", zap.String("client_id", c.ID), zap.Int("clients", n))
}

// Unregister removes a client. The Redis subscription stops with the last client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	if len(h.clients) == 0 && h.unsub != nil {
		h.unsub()
		h.unsub = nil
	}
	h.mu.Unlock()
	h.logger.Debug("feed client left", zap.String("client_id", c.ID))
}

// ClientCount returns the number of connected clients on this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all local clients. Slow clients with a full buffer miss it.
func (h *Hub) Broadcast(event string, payload interface{}) {
	msg, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Publish delivers an event to every client on every instance.
func (h *Hub) Publish(event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.redis.PublishFeedEvent(event, data); err != nil {
		h.logger.Warn("feed publish failed, broadcasting locally", zap.Error(err))
		h.Broadcast(event, json.RawMessage(data))
	}
}

// SendTo sends a message to one client.
func (h *Hub) SendTo(c *Client, event string, payload interface{}) {
	msg, ok := encode(event, payload)
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func encode(event string, payload interface{}) (WSMessage, bool) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return WSMessage{}, false
		}
	}
	return WSMessage{Event: event, Data: data}, true
}
