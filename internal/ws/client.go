package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/damoang/angple-messenger/internal/broadcast"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client actions
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Control event names sent back to the client
const (
	EventSubscribed        = "subscription_succeeded"
	EventSubscriptionError = "subscription_error"
)

// ClientMessage frame a client sends to manage subscriptions
type ClientMessage struct {
	Action  string                 `json:"action"`
	Channel string                 `json:"channel"`
	Class   broadcast.ChannelClass `json:"class"`
}

// Client represents a single WebSocket connection
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	userID        string
	subscriptions map[string]bool // guarded by hub.mu
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		userID:        userID,
		subscriptions: make(map[string]bool),
	}
}

// ReadPump reads subscription frames from the WebSocket (handles pong/close)
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg ClientMessage) {
	class := msg.Class
	if class == "" {
		class = broadcast.ClassPrivate
	}
	ch := broadcast.Channel{Name: msg.Channel, Class: class}

	switch msg.Action {
	case ActionSubscribe:
		ctx, cancel := context.WithTimeout(c.hub.ctx, 5*time.Second)
		defer cancel()
		if err := c.hub.Subscribe(ctx, c, ch); err != nil {
			c.reply(EventSubscriptionError, ch, err.Error())
			return
		}
		c.reply(EventSubscribed, ch, "")
	case ActionUnsubscribe:
		c.hub.Unsubscribe(c, ch)
	}
}

func (c *Client) reply(event string, ch broadcast.Channel, reason string) {
	env := broadcast.Envelope{
		Event:     event,
		Channel:   ch.Name,
		Class:     ch.Class,
		Timestamp: time.Now().UnixMilli(),
	}
	if reason != "" {
		env.Data = map[string]interface{}{"error": reason}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// WritePump sends messages to the WebSocket
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message) //nolint:errcheck
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
