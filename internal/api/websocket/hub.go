package websocket

import (
	"context"
	"encoding/json"
	"time"

	"yearn-vaults/internal/logger"
)

// Hub fans published events out to connected clients.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	count      chan chan int
	done       chan struct{}
	log        *logger.Logger
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	type Alias Message
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the client set until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug("🔌 WebSocket client connected. Total clients: %d", len(h.clients))
			client.enqueue(&Message{
				Type:      "connected",
				Data:      map[string]interface{}{"message": "Connected to vault events"},
				Timestamp: time.Now(),
			})

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.log.Debug("🔌 WebSocket client disconnected. Total clients: %d", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.Wants(message.Type) {
					continue
				}
				if !client.enqueue(message) {
					h.log.Warn("⚠️ Client %s send buffer full, disconnecting", client.id)
					h.drop(client)
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Register hands a client to the hub loop. It reports false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.close()
}

// Publish queues an event for every subscribed client. It never blocks; a
// full queue drops the event.
func (h *Hub) Publish(event string, data interface{}) {
	message := &Message{
		Type:      event,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("⚠️ Broadcast channel full, %s dropped", event)
	}
}

// ClientCount asks the hub loop for the number of connected clients.
func (h *Hub) ClientCount(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
	case <-ctx.Done():
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	}
}
