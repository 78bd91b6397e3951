package handler

import (
	"net/http"

	"safecircle/backend/internal/config"
	"safecircle/backend/internal/logging"
	"safecircle/backend/internal/realtime"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PresenceCounter reports how many users are online.
type PresenceCounter interface {
	OnlineCount() int
}

// SessionCounter reports how many live-location sessions are open.
type SessionCounter interface {
	SessionCount() int
}

// Handler serves the HTTP entry points of the realtime layer.
type Handler struct {
	Hub  *realtime.Hub
	Auth *Authenticator

	presence PresenceCounter
	sessions SessionCounter

	cfg *config.Config
	log *zap.Logger
}

type Option func(*Handler)

// WithPresence adds the online user count to /health.
func WithPresence(p PresenceCounter) Option {
	return func(h *Handler) { h.presence = p }
}

// WithSessions adds the live-location session count to /health.
func WithSessions(s SessionCounter) Option {
	return func(h *Handler) { h.sessions = s }
}

func NewHandler(hub *realtime.Hub, auth *Authenticator, cfg *config.Config, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{Hub: hub, Auth: auth, cfg: cfg, log: logging.OrNop(log)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.Auth.Middleware(), h.ServeWebSocket)
}

// Health reports liveness with local connection, presence and session counts.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "connections": h.Hub.ClientCount()}
	if h.presence != nil {
		body["onlineUsers"] = h.presence.OnlineCount()
	}
	if h.sessions != nil {
		body["locationSessions"] = h.sessions.SessionCount()
	}
	c.JSON(http.StatusOK, body)
}
