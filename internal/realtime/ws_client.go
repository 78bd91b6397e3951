package realtime

import (
	"sync"
	"time"

	"safecircle/backend/internal/logging"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	id     string
	userID string
	conn   *websocket.Conn
	hub    *Hub
	log    *zap.Logger

	maxMessageSize int64

	mu     sync.Mutex
	send   chan Event
	closed bool
}

// NewWebSocketClient wraps an upgraded connection with a fresh connection id.
func NewWebSocketClient(hub *Hub, conn *websocket.Conn, userID string, sendBuffer int, maxMessageSize int64, log *zap.Logger) *WebSocketClient {
	return &WebSocketClient{
		id:             uuid.New().String(),
		userID:         userID,
		conn:           conn,
		hub:            hub,
		log:            logging.OrNop(log),
		maxMessageSize: maxMessageSize,
		send:           make(chan Event, sendBuffer),
	}
}

func (c *WebSocketClient) ID() string     { return c.id }
func (c *WebSocketClient) UserID() string { return c.userID }

func (c *WebSocketClient) Send(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the send channel, which stops writePump and the connection.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.hub.UnregisterCh <- c:
		case <-c.hub.Done():
		}
		c.conn.Close()
	}()

	if c.maxMessageSize > 0 {
		c.conn.SetReadLimit(c.maxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil || ev.Name == "" {
			c.log.Debug("dropping malformed event", zap.String("conn_id", c.id), zap.Error(err))
			continue
		}

		select {
		case c.hub.IncomingCh <- Inbound{Client: c, Event: ev}:
		case <-c.hub.Done():
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				c.log.Error("encode event", zap.String("conn_id", c.id), zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
