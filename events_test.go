package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *EventHub) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", hub.ServeWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventHub_BroadcastsToClients(t *testing.T) {
	hub := NewEventHub()
	a := dialHub(t, hub)
	b := dialHub(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(GuardEvent{Action: EventBlocked, URL: "http://bad.example/", ThreatType: ClassPhishing, Score: 93, Confidence: 0.93, RuleID: 1001})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev GuardEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, EventBlocked, ev.Action)
		assert.Equal(t, ClassPhishing, ev.ThreatType)
		assert.Equal(t, 1001, ev.RuleID)
		assert.NotZero(t, ev.Timestamp)
	}
}

func TestEventHub_ForgetsClosedClients(t *testing.T) {
	hub := NewEventHub()
	conn := dialHub(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() { hub.Publish(GuardEvent{Action: EventShowWarning}) })
}

func TestEventHub_DropsSlowClients(t *testing.T) {
	hub := NewEventHub()
	c := &eventClient{send: make(chan []byte, 1)}
	hub.clients[c] = struct{}{}

	hub.Publish(GuardEvent{Action: EventShowWarning})
	assert.Equal(t, 1, hub.ClientCount())

	// Buffer full: the client is dropped and its channel closed.
	hub.Publish(GuardEvent{Action: EventShowWarning})
	assert.Zero(t, hub.ClientCount())
	_, open := <-c.send
	assert.True(t, open, "buffered message is still readable")
	_, open = <-c.send
	assert.False(t, open)
}
