package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/services"
)

// WebSocketHandler upgrades dashboard connections for live transaction
// updates. Authentication runs before the upgrade, so the connection is
// already bound to a user.
type WebSocketHandler struct {
	push     *services.PushService
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a WebSocketHandler. checkOrigin decides which
// browser origins may connect; it mirrors the CORS policy.
func NewWebSocketHandler(push *services.PushService, checkOrigin func(r *http.Request) bool) *WebSocketHandler {
	return &WebSocketHandler{
		push: push,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Connect upgrades the request and parks it in the push hub. GET /ws
func (h *WebSocketHandler) Connect(c *gin.Context) {
	userID := authedUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.push.Register(userID, conn)

	// Reads only serve to detect disconnects; clients never send anything
	// we act on.
	go func() {
		defer h.push.Unregister(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
