// Package livelocation coordinates ephemeral live-location sharing sessions.
// A session is keyed by a caller-chosen share id, fans location points out to
// every other participant, keeps a bounded history and expires when idle.
// Nothing is persisted: a restart loses every active session.
package livelocation

import (
	"context"
	"slices"
	"sync"
	"time"

	"safecircle/backend/internal/config"
	"safecircle/backend/internal/logging"
	"safecircle/backend/internal/models"
	"safecircle/backend/internal/realtime"

	"go.uber.org/zap"
)

// Socket events handled and emitted by the coordinator.
const (
	EventJoin         = "location:join"
	EventUpdate       = "location:update"
	EventLeave        = "location:leave"
	EventEndSession   = "location:end_session"
	EventHistory      = "location:history"
	EventSessionEnded = "location:session_ended"
)

// Transport is the part of the realtime hub the coordinator drives.
type Transport interface {
	Emit(connID, event string, payload interface{})
	Join(group, connID string)
	Leave(group, connID string)
	EmitToGroup(group, exceptConnID, event string, payload interface{})
}

// Notifier is told when a share id gets its first participant.
type Notifier interface {
	LiveLocationStarted(ctx context.Context, shareID string)
}

// Timer is a cancellable delayed task.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type session struct {
	locations []models.LocationPoint
	createdAt time.Time

	// at most one live timer; gen invalidates callbacks of stopped timers
	timer Timer
	gen   uint64
}

// Coordinator owns every live-location session of the process.
type Coordinator struct {
	mu       sync.Mutex
	sessions *realtime.Groups[*session]

	transport    Transport
	notifier     Notifier
	idleTimeout  time.Duration
	historyLimit int
	afterFunc    AfterFunc
	now          func() time.Time
	log          *zap.Logger
}

type Option func(*Coordinator)

func WithIdleTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.idleTimeout = d }
}

func WithHistoryLimit(n int) Option {
	return func(c *Coordinator) { c.historyLimit = n }
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithClock replaces the time source and the timer scheduler.
func WithClock(now func() time.Time, after AfterFunc) Option {
	return func(c *Coordinator) {
		c.now = now
		c.afterFunc = after
	}
}

func NewCoordinator(t Transport, log *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions:     realtime.NewGroups[*session](),
		transport:    t,
		idleTimeout:  config.DefaultLocationIdleTimeout,
		historyLimit: config.DefaultLocationHistoryLimit,
		afterFunc:    stdAfterFunc,
		now:          time.Now,
		log:          logging.OrNop(log),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Join adds the connection to the session for shareID, creating it if needed,
// and sends the joining connection the history collected so far.
func (c *Coordinator) Join(ctx context.Context, connID, shareID string, ack realtime.AckFunc) {
	if shareID == "" {
		ack(models.AckResponse{Success: false, Message: "Share ID is required"})
		return
	}

	c.mu.Lock()
	grp, created := c.sessions.Ensure(shareID, func() *session {
		return &session{createdAt: c.now()}
	})
	c.transport.Join(shareID, connID)
	c.sessions.Add(shareID, connID)
	c.armLocked(shareID, grp.State)

	history := make([]models.LocationPoint, len(grp.State.locations))
	copy(history, grp.State.locations)

	ack(models.AckResponse{Success: true})
	c.transport.Emit(connID, EventHistory, history)
	c.mu.Unlock()

	if created {
		c.log.Info("live location session started", zap.String("share_id", shareID), zap.String("conn_id", connID))
		if c.notifier != nil {
			c.notifier.LiveLocationStarted(ctx, shareID)
		}
	}
}

// Update appends a point to the session history and relays it to every other
// participant. The session must already exist.
func (c *Coordinator) Update(ctx context.Context, connID string, req models.LocationUpdate, ack realtime.AckFunc) {
	if req.ShareID == "" || req.Latitude == nil || req.Longitude == nil {
		ack(models.AckResponse{Success: false, Message: "Share ID, latitude and longitude are required"})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	grp, ok := c.sessions.Get(req.ShareID)
	if !ok {
		ack(models.AckResponse{Success: false, Message: "Session not found"})
		return
	}
	s := grp.State

	point := models.LocationPoint{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Timestamp: c.now(),
	}
	if !req.Timestamp.IsZero() {
		point.Timestamp = req.Timestamp.Time
	}

	s.locations = append(s.locations, point)
	if over := len(s.locations) - c.historyLimit; over > 0 {
		s.locations = slices.Delete(s.locations, 0, over)
	}

	c.transport.EmitToGroup(req.ShareID, connID, EventUpdate, point)
	c.armLocked(req.ShareID, s)
	ack(models.AckResponse{Success: true})
}

// Leave removes the connection from the session and ends the session when it
// was the last participant.
func (c *Coordinator) Leave(ctx context.Context, connID, shareID string, ack realtime.AckFunc) {
	if shareID == "" {
		ack(models.AckResponse{Success: false, Message: "Share ID is required"})
		return
	}

	c.mu.Lock()
	c.transport.Leave(shareID, connID)
	if remaining, ok := c.sessions.Remove(shareID, connID); ok && remaining == 0 {
		c.endLocked(shareID, models.ReasonAllLeft)
	}
	c.mu.Unlock()

	ack(models.AckResponse{Success: true})
}

// EndSession destroys the session immediately, notifying every participant.
// Ending an absent session succeeds without emitting anything.
func (c *Coordinator) EndSession(ctx context.Context, connID, shareID string, ack realtime.AckFunc) {
	if shareID == "" {
		ack(models.AckResponse{Success: false, Message: "Share ID is required"})
		return
	}

	c.mu.Lock()
	c.endLocked(shareID, models.ReasonUserEnded)
	c.mu.Unlock()

	ack(models.AckResponse{Success: true})
}

// Disconnect drops the connection from every session it joined.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, shareID := range c.sessions.KeysOf(connID) {
		if remaining, ok := c.sessions.Remove(shareID, connID); ok && remaining == 0 {
			c.endLocked(shareID, models.ReasonTimeout)
		}
	}
}

// History returns a copy of the session's points in arrival order.
func (c *Coordinator) History(shareID string) ([]models.LocationPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	grp, ok := c.sessions.Get(shareID)
	if !ok {
		return nil, false
	}
	return slices.Clone(grp.State.locations), true
}

// Participants lists the connection ids joined to the session.
func (c *Coordinator) Participants(shareID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.Members(shareID)
}

// SessionCount returns the number of active sessions.
func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.Len()
}

// Close stops every timer and forgets all sessions without notifying anyone.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.sessions.Keys() {
		if grp, ok := c.sessions.Delete(key); ok {
			c.stopLocked(grp.State)
		}
	}
}

func (c *Coordinator) armLocked(shareID string, s *session) {
	c.stopLocked(s)
	s.gen++
	gen := s.gen
	s.timer = c.afterFunc(c.idleTimeout, func() {
		c.expire(shareID, s, gen)
	})
}

func (c *Coordinator) stopLocked(s *session) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (c *Coordinator) expire(shareID string, s *session, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	grp, ok := c.sessions.Get(shareID)
	if !ok || grp.State != s || s.gen != gen {
		return
	}
	c.log.Info("live location session idle", zap.String("share_id", shareID), zap.Duration("idle_timeout", c.idleTimeout))
	c.endLocked(shareID, models.ReasonTimeout)
}

func (c *Coordinator) endLocked(shareID, reason string) {
	grp, ok := c.sessions.Get(shareID)
	if !ok {
		return
	}
	c.stopLocked(grp.State)

	c.transport.EmitToGroup(shareID, "", EventSessionEnded, models.SessionEnded{Reason: reason})
	for _, connID := range c.sessions.Members(shareID) {
		c.transport.Leave(shareID, connID)
	}
	c.sessions.Delete(shareID)

	c.log.Info("live location session ended",
		zap.String("share_id", shareID),
		zap.String("reason", reason),
		zap.Duration("lifetime", c.now().Sub(grp.State.createdAt)))
}
