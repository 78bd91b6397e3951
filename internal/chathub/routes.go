package chathub

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

// Register attaches the chat handlers to r. Every event that names an acting
// user is only accepted from the connection that user identified on.
func (c *Coordinator) Register(r Router) {
	r.On(EventUserConnected, func(ctx context.Context, cl realtime.Client, ev realtime.Event, _ realtime.AckFunc) {
		userID := decodeUserID(ev)
		if sub := cl.UserID(); sub != "" && userID != "" && sub != userID {
			c.fail(cl.ID(), msgNotAuthorized)
			return
		}
		c.Connect(ctx, cl.ID(), userID)
	})

	r.On(EventCreateChatRequest, handle(c, func(req models.CreateChatRequest) string { return req.UserID }, c.CreateRequest))
	r.On(EventAcceptChatRequest, handle(c, func(req models.AcceptChatRequest) string { return req.CounsellorID }, c.AcceptRequest))
	r.On(EventSendMessage, handle(c, func(req models.SendMessageRequest) string { return req.SenderID }, c.SendMessage))
	r.On(EventMarkMessagesRead, handle(c, func(req models.RoomUserRequest) string { return req.UserID }, c.MarkRead))
	r.On(EventRequestEndChat, handle(c, func(req models.EndChatRequest) string { return req.CounsellorID }, c.RequestEnd))
	r.On(EventCancelEndChat, handle(c, func(req models.EndChatRequest) string { return req.CounsellorID }, c.CancelEndRequest))
	r.On(EventEndChatResponse, handle(c, func(req models.EndChatResponse) string { return req.UserID }, c.RespondEnd))

	for _, event := range []string{EventUserTyping, EventUserStoppedTyping} {
		r.On(event, func(ctx context.Context, cl realtime.Client, ev realtime.Event, _ realtime.AckFunc) {
			var req models.RoomUserRequest
			if err := ev.Decode(&req); err != nil || !c.identifiedAs(cl.ID(), req.UserID) {
				return
			}
			c.Typing(ctx, cl.ID(), event, req)
		})
	}

	r.OnDisconnect(func(ctx context.Context, cl realtime.Client) {
		c.Disconnect(ctx, cl.ID())
	})
}

func handle[T any](c *Coordinator, actor func(T) string, fn func(context.Context, string, T)) realtime.HandlerFunc {
	return func(ctx context.Context, cl realtime.Client, ev realtime.Event, _ realtime.AckFunc) {
		var req T
		if err := ev.Decode(&req); err != nil {
			c.fail(cl.ID(), msgInvalidPayload)
			return
		}
		if id := actor(req); id != "" && !c.identifiedAs(cl.ID(), id) {
			c.fail(cl.ID(), msgNotAuthorized)
			return
		}
		fn(ctx, cl.ID(), req)
	}
}

func (c *Coordinator) identifiedAs(connID, userID string) bool {
	current, ok := c.registry.UserForConn(connID)
	return ok && current == userID
}

// decodeUserID accepts a bare JSON string or {"userId": "..."}.
func decodeUserID(ev realtime.Event) string {
	var userID string
	if err := ev.Decode(&userID); err == nil {
		return userID
	}
	var obj struct {
		UserID string `json:"userId"`
	}
	if err := ev.Decode(&obj); err == nil {
		return obj.UserID
	}
	return ""
}
