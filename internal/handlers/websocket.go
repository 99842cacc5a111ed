package handlers

import (
	"log/slog"
	"net/http"

	internalWebsocket "courier/internal/websocet"

	libWebsocket "github.com/gorilla/websocket"

	"github.com/gin-gonic/gin"
)

type WebsocetHandler struct {
	Hub    *internalWebsocket.Hub
	Logger *slog.Logger
}

func NewWebSocketHandler(hub *internalWebsocket.Hub, logger *slog.Logger) *WebsocetHandler {
	return &WebsocetHandler{
		Hub:    hub,
		Logger: logger,
	}
}

// HandleWebSocket upgrades GET /ws/:target/:self. The path segments carry
// the conversation target (group prefix already stripped client-side) and
// the connecting user's identity; together they key the session server-side.
func (h *WebsocetHandler) HandleWebSocket(c *gin.Context) {
	target := c.Param("target")
	self := c.Param("self")
	if target == "" || self == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target and self are required"})
		return
	}

	upgrader := libWebsocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &internalWebsocket.Client{
		Hub:    h.Hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Self:   self,
		Target: target,
	}

	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.Logger.Info("WebSocket connection established", "userID", self, "target", target)
}
