package websocket

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one browser connection. With no subscriptions it receives
// every event.
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan *Message
	id   string

	mu            sync.Mutex
	closed        bool
	subscriptions map[string]bool
}

func NewClient(conn *websocket.Conn, hub *Hub, id string) *Client {
	return &Client{
		conn:          conn,
		hub:           hub,
		send:          make(chan *Message, 256),
		id:            id,
		subscriptions: make(map[string]bool),
	}
}

// Wants reports whether event matches a subscription. "vault.*" matches
// every vault event.
func (c *Client) Wants(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subscriptions) == 0 || c.subscriptions[event] {
		return true
	}
	for sub := range c.subscriptions {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(event, prefix) {
			return true
		}
	}
	return false
}

func (c *Client) Subscribe(event string) {
	c.mu.Lock()
	c.subscriptions[event] = true
	c.mu.Unlock()
}

func (c *Client) Unsubscribe(event string) {
	c.mu.Lock()
	delete(c.subscriptions, event)
	c.mu.Unlock()
}

// enqueue returns false when the buffer is full. Sends after close are
// ignored.
func (c *Client) enqueue(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("WebSocket error: %v", err)
			}
			return
		}

		if reply := c.handleIncomingMessage(message); reply != nil {
			c.enqueue(reply)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.hub.log.Error("Error marshaling %s: %v", message.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type incoming struct {
	Type string `json:"type"`
	Data struct {
		Event string `json:"event"`
	} `json:"data"`
}

func (c *Client) handleIncomingMessage(data []byte) *Message {
	var msg incoming
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorMessage("invalid message")
	}

	switch msg.Type {
	case "ping":
		return &Message{Type: "pong", Data: map[string]string{"status": "ok"}, Timestamp: time.Now()}

	case "subscribe", "unsubscribe":
		if msg.Data.Event == "" {
			return errorMessage("event is required")
		}
		if msg.Type == "subscribe" {
			c.Subscribe(msg.Data.Event)
		} else {
			c.Unsubscribe(msg.Data.Event)
		}
		return &Message{
			Type:      msg.Type + "d",
			Data:      map[string]interface{}{"event": msg.Data.Event, "status": "success"},
			Timestamp: time.Now(),
		}
	}

	return errorMessage("unknown message type: " + msg.Type)
}

func errorMessage(text string) *Message {
	return &Message{Type: "error", Data: map[string]string{"message": text}, Timestamp: time.Now()}
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}
