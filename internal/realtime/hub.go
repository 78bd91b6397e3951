package realtime

import (
	"context"
	"sync"

	"safecircle/backend/internal/logging"
	"safecircle/backend/internal/models"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// HandlerFunc processes one client event. ack answers the client's callback.
type HandlerFunc func(ctx context.Context, c Client, ev Event, ack AckFunc)

// DisconnectFunc is called once for every client the hub unregisters.
type DisconnectFunc func(ctx context.Context, c Client)

// Inbound is an event read from a client, queued for the hub loop.
type Inbound struct {
	Client Client
	Event  Event
}

// Relay carries global broadcasts between service instances.
type Relay interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context) <-chan Event
}

// Hub owns the live connections and their broadcast groups. Client events are
// processed one at a time by Run, so handlers observe a single ordered stream.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client
	groups  *Groups[struct{}]

	handlers     map[string]HandlerFunc
	onDisconnect []DisconnectFunc

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan Inbound

	relay Relay
	done  chan struct{}
	once  sync.Once
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]Client),
		groups:       NewGroups[struct{}](),
		handlers:     make(map[string]HandlerFunc),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan Inbound),
		done:         make(chan struct{}),
		log:          logging.OrNop(log),
	}
}

// SetRelay enables cross-instance delivery of Broadcast events.
func (h *Hub) SetRelay(r Relay) { h.relay = r }

// On registers the handler for a client event name. Must be called before Run.
func (h *Hub) On(event string, fn HandlerFunc) {
	h.handlers[event] = fn
}

// OnDisconnect registers a hook run after a client is removed. Must be called before Run.
func (h *Hub) OnDisconnect(fn DisconnectFunc) {
	h.onDisconnect = append(h.onDisconnect, fn)
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Run is the hub's event loop. It returns when ctx is canceled, closing every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.once.Do(func() { close(h.done) })

	var relayCh <-chan Event
	if h.relay != nil {
		relayCh = h.relay.Subscribe(ctx)
	}

	h.log.Info("realtime hub started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()

		case c := <-h.RegisterCh:
			h.Register(c)

		case c := <-h.UnregisterCh:
			h.Unregister(ctx, c)

		case in := <-h.IncomingCh:
			h.Dispatch(ctx, in.Client, in.Event)

		case ev, ok := <-relayCh:
			if !ok {
				relayCh = nil
				continue
			}
			h.broadcastLocal(ev)
		}
	}
}

// Register adds c to the set of live connections.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("client registered", zap.String("conn_id", c.ID()), zap.Int("total_clients", total))
}

// Unregister removes c, runs the disconnect hooks, drops its group memberships
// and closes it. Unknown clients are ignored.
func (h *Hub) Unregister(ctx context.Context, c Client) {
	h.mu.Lock()
	if current, ok := h.clients[c.ID()]; !ok || current != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID())
	h.mu.Unlock()

	for _, fn := range h.onDisconnect {
		fn(ctx, c)
	}

	h.mu.Lock()
	for _, key := range h.groups.KeysOf(c.ID()) {
		if remaining, _ := h.groups.Remove(key, c.ID()); remaining == 0 {
			h.groups.Delete(key)
		}
	}
	h.mu.Unlock()

	c.Close()
	h.log.Debug("client unregistered", zap.String("conn_id", c.ID()))
}

// Dispatch routes ev to its handler.
func (h *Hub) Dispatch(ctx context.Context, c Client, ev Event) {
	ack := h.ackFunc(c, ev.AckID)

	fn, ok := h.handlers[ev.Name]
	if !ok {
		h.log.Debug("unknown event", zap.String("event", ev.Name), zap.String("conn_id", c.ID()))
		ack(models.AckResponse{Success: false, Message: "Unknown event"})
		return
	}
	fn(ctx, c, ev, ack)
}

func (h *Hub) ackFunc(c Client, ackID string) AckFunc {
	if ackID == "" {
		return func(models.AckResponse) {}
	}
	return func(resp models.AckResponse) {
		data, err := json.Marshal(resp)
		if err != nil {
			h.log.Error("encode ack", zap.Error(err))
			return
		}
		if !c.Send(Event{Name: EventAck, Data: data, AckID: ackID}) {
			h.log.Warn("ack dropped", zap.String("conn_id", c.ID()))
		}
	}
}

// Emit delivers an event to one connection if it is live.
func (h *Hub) Emit(connID, event string, payload interface{}) {
	ev, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	c, found := h.clients[connID]
	h.mu.RUnlock()
	if found {
		h.send(c, ev)
	}
}

// Broadcast delivers an event to every local connection and, with a relay
// configured, to the connections of other instances.
func (h *Hub) Broadcast(event string, payload interface{}) {
	ev, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.broadcastLocal(ev)

	if h.relay != nil {
		if err := h.relay.Publish(context.Background(), ev); err != nil {
			h.log.Warn("relay publish failed", zap.String("event", event), zap.Error(err))
		}
	}
}

// Join adds a connection to a broadcast group.
func (h *Hub) Join(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.groups.Ensure(group, nil)
	h.groups.Add(group, connID)
}

// Leave removes a connection from a broadcast group.
func (h *Hub) Leave(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if remaining, ok := h.groups.Remove(group, connID); ok && remaining == 0 {
		h.groups.Delete(group)
	}
}

// EmitToGroup delivers an event to every member of group except one connection.
func (h *Hub) EmitToGroup(group, exceptConnID, event string, payload interface{}) {
	ev, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]Client, 0)
	for _, id := range h.groups.Members(group) {
		if id == exceptConnID {
			continue
		}
		if c, found := h.clients[id]; found {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.send(c, ev)
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastLocal(ev Event) {
	h.mu.RLock()
	targets := make([]Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.send(c, ev)
	}
}

func (h *Hub) encode(event string, payload interface{}) (Event, bool) {
	ev, err := NewEvent(event, payload)
	if err != nil {
		h.log.Error("encode event", zap.String("event", event), zap.Error(err))
		return Event{}, false
	}
	return ev, true
}

func (h *Hub) send(c Client, ev Event) {
	if !c.Send(ev) {
		h.log.Warn("client send buffer full", zap.String("conn_id", c.ID()), zap.String("event", ev.Name))
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]Client)
	h.groups = NewGroups[struct{}]()
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	h.log.Info("realtime hub stopped", zap.Int("closed_clients", len(clients)))
}
