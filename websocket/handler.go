// websocket/handler.go
package websocket

import (
	"errors"
	"time"

	"logistics-backend/config"
	"logistics-backend/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errClientClosed   = errors.New("client connection is closed")
	errSendBufferFull = errors.New("client send channel is full")
)

// AuthService defines a token validator interface
type AuthService interface {
	VerifyToken(token string) (*token.Payload, error)
}

// WsHandler manages WebSocket requests and connections
type WsHandler struct {
	hub  *Hub
	auth AuthService
}

func NewWsHandler(hub *Hub, auth AuthService) *WsHandler {
	return &WsHandler{
		hub:  hub,
		auth: auth,
	}
}

// HandleWebSocket upgrades an authenticated request and subscribes the
// connection to the batch named by the thread query parameter.
func (h *WsHandler) HandleWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tokenStr := c.Cookies("access_token")
	if tokenStr == "" {
		config.Logger.Warn("WebSocket connection attempted without access token cookie")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required - no access token cookie found",
		})
	}

	payload, err := h.auth.VerifyToken(tokenStr)
	if err != nil {
		config.Logger.Warn("Invalid access token for WebSocket", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	threadID := c.Query("thread")
	if threadID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "thread parameter is required",
		})
	}
	if _, err := uuid.Parse(threadID); err != nil {
		config.Logger.Warn("Invalid thread ID format",
			zap.String("threadID", threadID),
			zap.String("actor", payload.Actor()),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid thread ID format",
		})
	}

	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			ID:      uuid.New(),
			Actor:   payload.Actor(),
			Conn:    conn,
			Hub:     h.hub,
			Send:    make(chan WebSocketMessage, 256),
			Threads: map[string]bool{threadID: true},
		}
		h.hub.Register(client)

		config.Logger.Info("WebSocket client registered",
			zap.String("clientID", client.ID.String()),
			zap.String("actor", client.Actor),
			zap.String("threadID", threadID),
			zap.Int("threadSubscribers", len(h.hub.GetThreadSubscribers(threadID))),
			zap.Int("connectedClients", h.hub.GetClientCount()),
		)

		go client.writePump()
		client.readPump()
	})(c)
}

// readPump handles subscription changes sent by the client.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				config.Logger.Warn("WebSocket unexpected close",
					zap.String("clientID", c.ID.String()),
					zap.Error(err),
				)
			}
			break
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg WebSocketMessage) {
	switch msg.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		if _, err := uuid.Parse(msg.ThreadID); err != nil {
			c.sendError("Invalid thread ID format")
			return
		}
		if msg.Type == MessageTypeSubscribe {
			c.SubscribeToThread(msg.ThreadID)
		} else {
			c.UnsubscribeFromThread(msg.ThreadID)
		}
	default:
		c.sendError("Unknown message type: " + string(msg.Type))
	}
}

// writePump sends queued messages and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				config.Logger.Debug("WebSocket write error",
					zap.String("clientID", c.ID.String()),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(message string) {
	_ = c.SendMessage(WebSocketMessage{
		Type:      MessageTypeError,
		Payload:   map[string]interface{}{"message": message},
		Timestamp: time.Now(),
	})
}

// SendMessage queues a message for this client. It never blocks and never
// writes to a closed channel.
func (c *Client) SendMessage(msg WebSocketMessage) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.Send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}
