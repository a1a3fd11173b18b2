package sync

import (
	"encoding/json"
	"net/http"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/uuid"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Only the local UI shell connects here.
		return true
	},
}

// Status event types pushed over the hub.
const (
	EventSyncProgress  = "sync.progress"
	EventSyncCompleted = "sync.completed"
)

// Envelope wraps every message pushed to UI clients.
type Envelope struct {
	Type      string `json:"type"`
	Data      Status `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// hubClient is one connected UI client.
type hubClient struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce gosync.Once
}

// close shuts the send channel exactly once, releasing the write pump.
func (c *hubClient) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// StatusHub broadcasts drain status events to connected UI clients.
// Register it as an engine status listener.
type StatusHub struct {
	mu      gosync.RWMutex
	clients map[string]*hubClient
}

// NewStatusHub creates an empty hub.
func NewStatusHub() *StatusHub {
	return &StatusHub{clients: make(map[string]*hubClient)}
}

// Broadcast pushes one status event to every connected client. A
// client whose send buffer is full is dropped rather than blocking the
// drain loop.
func (h *StatusHub) Broadcast(s Status) {
	eventType := EventSyncProgress
	if !s.Syncing {
		eventType = EventSyncCompleted
	}

	message, err := json.Marshal(Envelope{
		Type:      eventType,
		Data:      s,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		select {
		case client.send <- message:
		default:
			client.close()
			delete(h.clients, id)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *StatusHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades a connection and streams status events to it.
func (h *StatusHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			map[string]interface{}{"error": err.Error()})
		return
	}

	client := &hubClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 64),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	logging.Debug("Status client connected",
		map[string]interface{}{"client_id": client.id})

	go h.writePump(client)
	go h.readPump(client)
}

// writePump pushes queued messages to one client until its channel
// closes or the write fails.
func (h *StatusHub) writePump(client *hubClient) {
	defer client.conn.Close()

	for message := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.remove(client.id)
			return
		}
	}
}

// readPump drains inbound frames so pings and closes are processed,
// and unregisters the client on disconnect.
func (h *StatusHub) readPump(client *hubClient) {
	defer func() {
		h.remove(client.id)
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StatusHub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[id]; ok {
		delete(h.clients, id)
		client.close()
	}
}
