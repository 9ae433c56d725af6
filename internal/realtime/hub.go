// Package realtime pushes an organization's deliveries and stock changes to
// connected dashboards over WebSocket.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Feed events.
const (
	EventDeliveryCreated = "delivery_created"
	EventStockChanged    = "stock_changed"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Publisher fans an event out to other API instances.
type Publisher interface {
	PublishOrganizationEvent(orgID uuid.UUID, event string, payload []byte) error
}

// Subscriber delivers events published by any instance.
type Subscriber interface {
	SubscribeOrganization(orgID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains organization_id -> set of connections.
type Hub struct {
	orgs   map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a hub. With a nil publisher events stay on this instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		orgs:   make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to its organization's room and subscribes the
// instance to the organization channel on first join.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.orgs[c.OrganizationID] == nil {
		h.orgs[c.OrganizationID] = make(map[string]*Client)
		if h.sub != nil {
			orgID := c.OrganizationID
			cancel, err := h.sub.SubscribeOrganization(orgID, func(event string, payload []byte) {
				h.Broadcast(orgID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("organization feed subscribe failed", zap.String("organization_id", orgID.String()), zap.Error(err))
			} else {
				h.subs[orgID] = cancel
			}
		}
	}
	h.orgs[c.OrganizationID][c.ID] = c
	h.logger.Debug("feed client joined", zap.String("client_id", c.ID), zap.String("organization_id", c.OrganizationID.String()))
}

// Unregister removes a client and drops the subscription when the room empties.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.orgs[c.OrganizationID]
	if !ok {
		return
	}
	if _, ok := m[c.ID]; ok {
		delete(m, c.ID)
		close(c.send)
	}
	if len(m) == 0 {
		delete(h.orgs, c.OrganizationID)
		if cancel, ok := h.subs[c.OrganizationID]; ok {
			cancel()
			delete(h.subs, c.OrganizationID)
		}
	}
}

// Broadcast sends a message to this instance's clients of the organization.
// Slow clients whose buffer is full miss the message.
func (h *Hub) Broadcast(orgID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("feed payload marshal", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := Message{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.orgs[orgID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Notify publishes an event to every instance. Without a publisher it
// broadcasts locally. A nil Hub ignores the call.
func (h *Hub) Notify(orgID uuid.UUID, event string, payload interface{}) {
	if h == nil {
		return
	}
	if h.pub == nil {
		h.Broadcast(orgID, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("feed payload marshal", zap.String("event", event), zap.Error(err))
		return
	}
	// The subscription callback broadcasts, including on this instance.
	if err := h.pub.PublishOrganizationEvent(orgID, event, data); err != nil {
		h.logger.Warn("feed publish failed, broadcasting locally", zap.String("event", event), zap.Error(err))
		h.Broadcast(orgID, event, json.RawMessage(data))
	}
}

// Listeners returns the number of connected clients of an organization on
// this instance.
func (h *Hub) Listeners(orgID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orgs[orgID])
}
