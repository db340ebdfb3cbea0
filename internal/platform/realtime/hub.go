// Package realtime pushes collaboration events (patient edits, workflow
// transitions, tumor board changes) to subscribed WebSocket clients.
// Subscriptions are scoped to the site the client connected under.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oncodash/oncodash/internal/platform/db"
)

// Event types.
const (
	PatientUpdated    = "patient.updated"
	WorkflowUpdated   = "workflow.updated"
	WorkflowComment   = "workflow.comment"
	TumorBoardUpdated = "tumorboard.updated"
)

// TumorBoardTopic carries every meeting and case change for a site.
const TumorBoardTopic = "tumorboard"

func PatientTopic(id string) string  { return "patient/" + id }
func WorkflowTopic(id string) string { return "workflow/" + id }

// ValidTopic reports whether clients may subscribe to topic.
func ValidTopic(topic string) bool {
	if topic == TumorBoardTopic {
		return true
	}
	for _, prefix := range []string{"patient/", "workflow/"} {
		if id, ok := strings.CutPrefix(topic, prefix); ok && id != "" && !strings.Contains(id, "/") {
			return true
		}
	}
	return false
}

// Event is the message delivered to WebSocket clients.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	SiteID    string          `json:"site_id,omitempty"`
	EntityID  string          `json:"entity_id,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event with its payload marshalled.
func NewEvent(eventType, topic, entityID string, payload interface{}) (Event, error) {
	evt := Event{
		Type:      eventType,
		Topic:     topic,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		evt.Data = data
	}
	return evt, nil
}

// ClientMessage is an inbound subscription change.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Publisher is implemented by Hub. Services depend on this interface.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Client is one WebSocket connection.
type Client struct {
	ID     string
	SiteID string
	UserID string
	Topics []string
	Send   chan []byte
}

// NewClient returns a client with a buffered send queue.
func NewClient(id, siteID, userID string) *Client {
	return &Client{ID: id, SiteID: siteID, UserID: userID, Send: make(chan []byte, 256)}
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // site|topic -> clients
	all     map[*Client]struct{}
	dropped atomic.Uint64
	logger  zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  log.With().Str("component", "realtime").Logger(),
	}
}

func topicKey(siteID, topic string) string { return siteID + "|" + topic }

// Register adds a client and its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	topics := client.Topics
	client.Topics = nil
	h.subscribeLocked(client, topics)
}

// Unregister removes a client and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	h.unsubscribeLocked(client, client.Topics)
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds topics to a registered client. Unknown topic shapes are
// ignored and returned.
func (h *Hub) Subscribe(client *Client, topics []string) (rejected []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribeLocked(client, topics)
}

func (h *Hub) subscribeLocked(client *Client, topics []string) (rejected []string) {
	for _, topic := range topics {
		if !ValidTopic(topic) {
			rejected = append(rejected, topic)
			continue
		}
		key := topicKey(client.SiteID, topic)
		if h.clients[key] == nil {
			h.clients[key] = make(map[*Client]struct{})
		}
		if _, dup := h.clients[key][client]; dup {
			continue
		}
		h.clients[key][client] = struct{}{}
		client.Topics = append(client.Topics, topic)
	}
	return rejected
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, topics)
}

func (h *Hub) unsubscribeLocked(client *Client, topics []string) {
	remove := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		remove[topic] = struct{}{}
		key := topicKey(client.SiteID, topic)
		if subscribers, ok := h.clients[key]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, key)
			}
		}
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := remove[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage applies an inbound subscription change.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) []string {
	switch msg.Action {
	case "subscribe":
		return h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
	return nil
}

// Broadcast sends event to subscribers of its topic within its site. Slow
// clients whose queue is full miss the event.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topicKey(event.SiteID, event.Topic)] {
		select {
		case client.Send <- data:
		default:
			h.dropped.Add(1)
			h.logger.Warn().Str("client", client.ID).Str("topic", event.Topic).Msg("client queue full, event dropped")
		}
	}
}

// Publish stamps the site from ctx when the event has none and broadcasts.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	if event.SiteID == "" {
		event.SiteID = db.SiteFromContext(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.Broadcast(event)
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.all {
		close(client.Send)
	}
	h.all = make(map[*Client]struct{})
	h.clients = make(map[string]map[*Client]struct{})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the subscriber count of topic at siteID.
func (h *Hub) TopicCount(siteID, topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topicKey(siteID, topic)])
}

// Dropped returns how many deliveries were skipped for full queues.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
