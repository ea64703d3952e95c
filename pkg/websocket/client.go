package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventHandler processes one validated inbound envelope.
type EventHandler interface {
	HandleEvent(ctx context.Context, client *Client, env Envelope) error
}

type ClientConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 8192
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 256
	}
	return c
}

func (c ClientConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Client is one socket connection. rooms and closed are guarded by the hub mutex.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	handler  EventHandler
	config   ClientConfig
	UserID   primitive.ObjectID
	Email    string
	IsDriver bool

	rooms  map[string]struct{}
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, handler EventHandler, config ClientConfig, userID primitive.ObjectID, email string, isDriver bool) *Client {
	config = config.withDefaults()
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, config.SendBufferSize),
		handler:  handler,
		config:   config,
		UserID:   userID,
		Email:    email,
		IsDriver: isDriver,
		rooms:    make(map[string]struct{}),
	}
}

// InRoom reports whether the client is currently subscribed to roomID.
func (c *Client) InRoom(roomID string) bool {
	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()
	_, ok := c.rooms[roomID]
	return ok
}

// Serve runs the write pump in the background and the read pump until the
// connection drops or ctx is cancelled.
func (c *Client) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump()
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithUserID(c.UserID).WithError(err).Warn("WebSocket read error")
			}
			return
		}

		c.handleMessage(ctx, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one envelope per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.reject("", &EventError{Code: "VALIDATION_ERROR", Message: "malformed envelope"})
		return
	}

	if c.handler == nil {
		return
	}

	if err := c.handler.HandleEvent(ctx, c, env); err != nil {
		c.reject(env.Event, err)
	}
}

func (c *Client) reject(event string, err error) {
	payload := errorPayload{Event: event, Code: "INTERNAL_ERROR", Message: "event could not be processed"}

	var evErr *EventError
	if errors.As(err, &evErr) {
		payload.Code = evErr.Code
		payload.Message = evErr.Message
	} else {
		c.hub.logger.WithUserID(c.UserID).WithError(err).WithField("event", event).Error("Socket event failed")
	}

	c.hub.SendTo(c, EventErrorName, payload)
}
