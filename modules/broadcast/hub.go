package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Client is a connected UI client waiting for view updates.
type Client struct {
	ID   string
	Conn *websocket.Conn
}

// Hub manages WebSocket connections and pushes derived-view updates to
// every connected client.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *PushMessage
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// PushMessage is a message pushed to connected clients.
type PushMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *PushMessage, 64),
		done:       make(chan struct{}),
		logger:     slog.Default(),
	}
}

// Run starts the hub's main loop. It accepts a context for graceful shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(msgType string, payload any) {
	h.broadcast <- &PushMessage{Type: msgType, Payload: payload}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Info("client registered", "clientID", client.ID)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		h.logger.Info("client unregistered", "clientID", client.ID)
	}
}

func (h *Hub) handleBroadcast(msg *PushMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal push message", "error", err)
		return
	}
	for _, client := range h.clients {
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Error("failed to push to client", "clientID", client.ID, "error", err)
		}
	}
}
