package websocket

// PROPRIETARY AND CONFIDENTIAL
// This code contains trade secrets and confidential material of Finimen Sniper / FSC.
// Any unauthorized use, disclosure, or duplication is strictly prohibited.
// © 2025 Finimen Sniper / FSC. All rights reserved.

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"courier/internal/models"
	"courier/internal/ports"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live server-side session: the connection a user holds on a
// single conversation target.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	Self   string
	Target string

	closeOnce sync.Once
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// Hub owns the registry of live sessions, keyed (self, target). Exactly one
// session per key: a reconnect replaces the previous one.
type Hub struct {
	Clients    map[string]map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	Mutex      sync.RWMutex

	Delivery       ports.IDeliveryService
	Logger         *slog.Logger
	ActiveSessions prometheus.Gauge
}

func NewHub(delivery ports.IDeliveryService, logger *slog.Logger) *Hub {
	return &Hub{
		Clients:    make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Delivery:   delivery,
		Logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Mutex.Lock()
			if h.Clients[client.Self] == nil {
				h.Clients[client.Self] = make(map[string]*Client)
			}
			if previous, ok := h.Clients[client.Self][client.Target]; ok {
				previous.closeSend()
				h.gaugeDec()
			}
			h.Clients[client.Self][client.Target] = client
			h.Mutex.Unlock()
			h.gaugeInc()
			h.Logger.Info("Session registered", "userID", client.Self, "target", client.Target)

			// Registration precedes the drain so the flush lands in the
			// session's send channel.
			go h.Delivery.OnSessionOpen(context.Background(), client.Self, client.Target)

		case client := <-h.Unregister:
			h.Mutex.Lock()
			if current, ok := h.Clients[client.Self][client.Target]; ok && current == client {
				delete(h.Clients[client.Self], client.Target)
				if len(h.Clients[client.Self]) == 0 {
					delete(h.Clients, client.Self)
				}
				h.gaugeDec()
			}
			client.closeSend()
			h.Mutex.Unlock()
			h.Logger.Info("Session unregistered", "userID", client.Self, "target", client.Target)
		}
	}
}

// Push hands a frame to the live session owner holds on target. It returns
// false when no session exists or its buffer is full; the caller falls back
// to the durable queue, so a slow session is never killed here.
//
// The send happens under the read lock while Run closes Send only under the
// write lock, so Push can never race a close of the same channel.
func (h *Hub) Push(owner, target string, payload []byte) bool {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	client := h.Clients[owner][target]
	if client == nil {
		return false
	}

	select {
	case client.Send <- payload:
		return true
	default:
		h.Logger.Warn("Session buffer full, falling back to queue", "userID", owner, "target", target)
		return false
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.Logger.Error("Websocket error", "error", err, "userID", c.Self)
			}
			break
		}

		c.route(raw)
	}
}

// route classifies one inbound frame. Malformed frames are logged and
// dropped; they never terminate the connection.
func (c *Client) route(raw []byte) {
	var envelope models.Envelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Type != "" {
		if err := c.Hub.Delivery.Dispatch(context.Background(), envelope); err != nil {
			c.Hub.Logger.Warn("Envelope rejected", "error", err, "userID", c.Self)
		}
		return
	}

	var announcement models.JoinAnnouncement
	if err := json.Unmarshal(raw, &announcement); err == nil && announcement.Text != "" {
		c.Hub.Delivery.Announce(context.Background(), announcement)
		return
	}

	c.Hub.Logger.Warn("Dropping malformed frame", "userID", c.Self, "target", c.Target)
}

func (c *Client) WritePump() {
	defer func() {
		c.Conn.Close()
	}()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}

		w.Write(message)

		if err := w.Close(); err != nil {
			return
		}
	}
}

func (h *Hub) gaugeInc() {
	if h.ActiveSessions != nil {
		h.ActiveSessions.Inc()
	}
}

func (h *Hub) gaugeDec() {
	if h.ActiveSessions != nil {
		h.ActiveSessions.Dec()
	}
}
