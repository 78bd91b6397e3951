package handler

import (
	"net/http"

	"safecircle/backend/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients send no Origin; browser origins are enforced at the edge.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades an authenticated request and hands the connection to the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID := c.GetString(ContextUserID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := realtime.NewWebSocketClient(h.Hub, conn, userID, h.cfg.WSSendBuffer, h.cfg.WSMaxMessageSize, h.log)

	select {
	case h.Hub.RegisterCh <- client:
	case <-h.Hub.Done():
		conn.Close()
		return
	}

	client.Run()
}
