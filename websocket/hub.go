// websocket/hub.go
package websocket

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeBulkUploadProgress MessageType = "BULK_UPLOAD_PROGRESS"
	MessageTypeSubscribe          MessageType = "SUBSCRIBE"
	MessageTypeUnsubscribe        MessageType = "UNSUBSCRIBE"
	MessageTypeError              MessageType = "ERROR"
)

type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	ThreadID  string      `json:"threadId,omitempty"`
}

// Client is one websocket connection. Threads are the batch ids it follows.
// Send is closed exactly once, by closeSend, and never written after that.
type Client struct {
	ID      uuid.UUID
	Actor   string
	Conn    *websocket.Conn
	Hub     *Hub
	Send    chan WebSocketMessage
	Threads map[string]bool
	mu      sync.RWMutex

	sendMu sync.Mutex
	closed bool
}

type Hub struct {
	clients    map[*Client]bool
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		unregister: make(chan *Client),
	}
}

// Run removes clients whose read loop has ended.
func (h *Hub) Run() {
	for client := range h.unregister {
		h.removeClient(client)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister hands a client to the Run loop for removal.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
	client.closeSend()
}

// BroadcastToThread sends a message to clients subscribed to a specific thread.
// Clients whose send buffer is full are dropped.
func (h *Hub) BroadcastToThread(threadID string, message WebSocketMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.IsSubscribedToThread(threadID) {
			continue
		}
		if err := client.SendMessage(message); err != nil {
			client.closeSend()
			delete(h.clients, client)
		}
	}
}

// PublishProgress sends a bulk upload progress update to everyone watching the batch.
func (h *Hub) PublishProgress(batchID string, payload interface{}) {
	h.BroadcastToThread(batchID, WebSocketMessage{
		Type:      MessageTypeBulkUploadProgress,
		Payload:   payload,
		Timestamp: time.Now(),
		ThreadID:  batchID,
	})
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetThreadSubscribers returns all clients subscribed to a thread
func (h *Hub) GetThreadSubscribers(threadID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var subscribers []*Client
	for client := range h.clients {
		if client.IsSubscribedToThread(threadID) {
			subscribers = append(subscribers, client)
		}
	}
	return subscribers
}

// SubscribeToThread adds a thread to client's subscription
func (c *Client) SubscribeToThread(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Threads == nil {
		c.Threads = make(map[string]bool)
	}
	c.Threads[threadID] = true
}

// UnsubscribeFromThread removes a thread from client's subscription
func (c *Client) UnsubscribeFromThread(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Threads, threadID)
}

func (c *Client) IsSubscribedToThread(threadID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.Threads[threadID]
	return exists
}
