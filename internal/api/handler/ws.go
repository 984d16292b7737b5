package handler

import (
	"net/http"

	"qalatransit/backend/internal/feed"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Lock down in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeFeed upgrades the connection and attaches it to the live complaint
// feed.
func (h *Handler) ServeFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
		return
	}

	client := &feed.Client{
		Conn: conn,
		Hub:  h.Hub,
		Send: make(chan []byte, 64),
	}
	h.Hub.RegisterCh <- client
	client.Run()

	h.Logger.Debug("feed client attached", zap.String("remote", conn.RemoteAddr().String()))
}
