/*
File: events.go
Version: 1.0.0
Description: WebSocket hub pushing warning and block events to connected page agents.
*/

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	EventShowWarning = "showWarning"
	EventBlocked     = "blocked"

	eventSendBuffer = 64
	eventWriteWait  = 5 * time.Second
)

// GuardEvent is what page agents receive.
type GuardEvent struct {
	Action     string      `json:"action"`
	URL        string      `json:"url"`
	Domain     string      `json:"domain,omitempty"`
	ThreatType ThreatClass `json:"threatType"`
	Score      int         `json:"score"`
	Confidence float64     `json:"confidence"`
	RuleID     int         `json:"ruleId,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// EventPublisher is what the navigation guard needs from the hub.
type EventPublisher interface {
	Publish(ev GuardEvent)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Agents run inside browser extensions with their own origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans events out to every connected client. Clients that fall behind are dropped.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*eventClient]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*eventClient]struct{})}
}

func (h *EventHub) Publish(ev GuardEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		LogWarn("[EVENTS] Failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	var slow []*eventClient
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		LogDebug("[EVENTS] Dropping %d slow clients", len(slow))
	}
	for _, c := range slow {
		h.remove(c)
	}
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) remove(c *eventClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams events until the client goes away.
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		LogWarn("[EVENTS] WebSocket upgrade failed: %v", err)
		return
	}
	c := &eventClient{conn: conn, send: make(chan []byte, eventSendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	LogDebug("[EVENTS] Client connected: %s", conn.RemoteAddr())

	go h.writePump(c)
	h.readPump(c)
}

func (h *EventHub) readPump(c *eventClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writePump(c *eventClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
