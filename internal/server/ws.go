package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/retailsight/internal/tracking"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventMessage is the websocket payload for customer entries and for the
// greeting sent on connect.
type EventMessage struct {
	Type       string     `json:"type"`
	CustomerID int        `json:"customer_Id"`
	IdentityID int        `json:"identity_id,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// Message types.
const (
	MessageHello   = "hello"
	MessageEntered = "customer_entered"
)

// clientQueueSize is how many messages may wait for a slow client before it
// is dropped.
const clientQueueSize = 16

// EventsHandler broadcasts customer entries to websocket clients. It
// implements notify.Sink. Publish never waits on the network: each client
// has its own queue drained by a writer goroutine.
type EventsHandler struct {
	count   func() int
	clients map[*eventClient]struct{}
	mu      sync.Mutex
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewEventsHandler creates a handler. count, when set, supplies the
// running total sent to clients as they connect.
func NewEventsHandler(count func() int) *EventsHandler {
	return &EventsHandler{
		count:   count,
		clients: make(map[*eventClient]struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &eventClient{conn: conn, send: make(chan []byte, clientQueueSize)}

	// The greeting is queued under the lock so no entry can slip in between
	// the count it reports and the first broadcast the client receives.
	h.mu.Lock()
	hello := EventMessage{Type: MessageHello}
	if h.count != nil {
		hello.CustomerID = h.count()
	}
	msg, err := json.Marshal(hello)
	if err != nil {
		h.mu.Unlock()
		return
	}
	c.send <- msg
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	defer h.remove(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *eventClient) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("websocket write error: %v", err)
			return
		}
	}
}

// remove unregisters c and stops its writer. The caller must not hold h.mu.
func (h *EventsHandler) remove(c *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

func (h *EventsHandler) drop(c *eventClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish queues the event for every connected client. A client whose
// queue is full is dropped.
func (h *EventsHandler) Publish(_ context.Context, ev tracking.CrossingEvent) error {
	ts := ev.Timestamp
	msg, err := json.Marshal(EventMessage{
		Type:       MessageEntered,
		CustomerID: ev.Total,
		IdentityID: ev.IdentityID,
		Timestamp:  &ts,
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("websocket client too slow, dropping")
			h.drop(c)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
