package livelocation

import (
	"context"

	"safecircle/backend/internal/models"
	"safecircle/backend/internal/realtime"
)

// Router is the part of the realtime hub used to attach handlers.
type Router interface {
	On(event string, fn realtime.HandlerFunc)
	OnDisconnect(fn realtime.DisconnectFunc)
}

// Register attaches the coordinator's handlers to r.
func (c *Coordinator) Register(r Router) {
	r.On(EventJoin, func(ctx context.Context, cl realtime.Client, ev realtime.Event, ack realtime.AckFunc) {
		c.Join(ctx, cl.ID(), decodeShareID(ev), ack)
	})
	r.On(EventUpdate, func(ctx context.Context, cl realtime.Client, ev realtime.Event, ack realtime.AckFunc) {
		var req models.LocationUpdate
		if err := ev.Decode(&req); err != nil {
			ack(models.AckResponse{Success: false, Message: "Invalid location payload"})
			return
		}
		c.Update(ctx, cl.ID(), req, ack)
	})
	r.On(EventLeave, func(ctx context.Context, cl realtime.Client, ev realtime.Event, ack realtime.AckFunc) {
		c.Leave(ctx, cl.ID(), decodeShareID(ev), ack)
	})
	r.On(EventEndSession, func(ctx context.Context, cl realtime.Client, ev realtime.Event, ack realtime.AckFunc) {
		c.EndSession(ctx, cl.ID(), decodeShareID(ev), ack)
	})
	r.OnDisconnect(func(ctx context.Context, cl realtime.Client) {
		c.Disconnect(ctx, cl.ID())
	})
}

// decodeShareID accepts either a bare JSON string or {"shareId": "..."}.
// Anything else yields "", which the handlers reject as missing.
func decodeShareID(ev realtime.Event) string {
	var shareID string
	if err := ev.Decode(&shareID); err == nil {
		return shareID
	}
	var obj struct {
		ShareID string `json:"shareId"`
	}
	if err := ev.Decode(&obj); err == nil {
		return obj.ShareID
	}
	return ""
}
