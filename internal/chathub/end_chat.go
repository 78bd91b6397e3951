package chathub

import (
	"context"
	"errors"

	"safecircle/backend/internal/errs"
	"safecircle/backend/internal/models"

	"go.uber.org/zap"
)

// The end-chat handshake runs only while a room is Accepted:
//
//	request (counsellor) -> endRequestStatus=true
//	cancel  (counsellor) -> endRequestStatus=false
//	accept  (user)       -> Completed, endedAt set
//	decline (user)       -> endRequestStatus=false, still Accepted
//
// Every step records a system message and notifies both parties.

// RequestEnd is the counsellor asking to close the chat.
func (c *Coordinator) RequestEnd(ctx context.Context, connID string, req models.EndChatRequest) {
	room, ok := c.counsellorRoom(ctx, connID, EventRequestEndChat, req)
	if !ok {
		return
	}

	if err := c.storage.SetEndRequestStatus(ctx, room.ID, true); err != nil {
		c.internalError(connID, EventRequestEndChat, err, zap.String("chat_room_id", room.ID))
		return
	}
	msg, err := c.systemMessage(ctx, room.ID, req.CounsellorID, c.text("chat.end_requested"))
	if err != nil {
		c.internalError(connID, EventRequestEndChat, err, zap.String("chat_room_id", room.ID))
		return
	}

	notice := models.ChatRoomNotice{ChatRoomID: room.ID, Message: msg.Content}
	c.notifyParties(room, EventEndChatRequest, EventEndChatRequested, notice, msg)
}

// CancelEndRequest withdraws a pending end request.
func (c *Coordinator) CancelEndRequest(ctx context.Context, connID string, req models.EndChatRequest) {
	room, ok := c.counsellorRoom(ctx, connID, EventCancelEndChat, req)
	if !ok {
		return
	}
	if !room.EndRequestStatus {
		c.fail(connID, msgNoPendingEnd)
		return
	}

	if err := c.storage.SetEndRequestStatus(ctx, room.ID, false); err != nil {
		c.internalError(connID, EventCancelEndChat, err, zap.String("chat_room_id", room.ID))
		return
	}
	msg, err := c.systemMessage(ctx, room.ID, req.CounsellorID, c.text("chat.end_canceled"))
	if err != nil {
		c.internalError(connID, EventCancelEndChat, err, zap.String("chat_room_id", room.ID))
		return
	}

	notice := models.ChatRoomNotice{ChatRoomID: room.ID, Message: msg.Content}
	c.notifyParties(room, EventEndChatRequestCanceled, EventEndChatRequestCanceled, notice, msg)
}

// RespondEnd is the user's answer to a pending end request.
func (c *Coordinator) RespondEnd(ctx context.Context, connID string, req models.EndChatResponse) {
	if req.ChatRoomID == "" || req.UserID == "" {
		c.fail(connID, "Chat room ID and user ID are required")
		return
	}

	room, ok := c.activeRoom(ctx, connID, EventEndChatResponse, req.ChatRoomID)
	if !ok {
		return
	}
	if room.UserID != req.UserID {
		c.fail(connID, msgNotAuthorized)
		return
	}
	if !room.EndRequestStatus {
		c.fail(connID, msgNoPendingEnd)
		return
	}

	if req.Accepted {
		c.completeChat(ctx, connID, room, req.UserID)
		return
	}

	if err := c.storage.SetEndRequestStatus(ctx, room.ID, false); err != nil {
		c.internalError(connID, EventEndChatResponse, err, zap.String("chat_room_id", room.ID))
		return
	}
	msg, err := c.systemMessage(ctx, room.ID, req.UserID, c.text("chat.end_declined"))
	if err != nil {
		c.internalError(connID, EventEndChatResponse, err, zap.String("chat_room_id", room.ID))
		return
	}

	notice := models.ChatRoomNotice{ChatRoomID: room.ID, Message: msg.Content}
	c.notifyParties(room, EventEndChatDeclined, EventEndChatDeclined, notice, msg)
	c.emitToUser(room.Counsellor(), EventEndChatRequestCanceled, notice)
}

func (c *Coordinator) completeChat(ctx context.Context, connID string, room *models.ChatRoom, userID string) {
	endedAt := c.now()
	err := c.storage.CompleteChatRoom(ctx, room.ID, endedAt)
	if errors.Is(err, errs.ErrRoomNotFound) {
		c.fail(connID, msgRoomInactive)
		return
	}
	if err != nil {
		c.internalError(connID, EventEndChatResponse, err, zap.String("chat_room_id", room.ID))
		return
	}

	msg, err := c.systemMessage(ctx, room.ID, userID, c.text("chat.end_accepted"))
	if err != nil {
		c.internalError(connID, EventEndChatResponse, err, zap.String("chat_room_id", room.ID))
		return
	}

	notice := models.ChatRoomNotice{ChatRoomID: room.ID, Message: msg.Content, EndedAt: &endedAt}
	c.notifyParties(room, EventChatEnded, EventChatEnded, notice, msg)
	c.log.Info("chat completed", zap.String("chat_room_id", room.ID))
}

// counsellorRoom validates a counsellor handshake step against the stored room.
func (c *Coordinator) counsellorRoom(ctx context.Context, connID, op string, req models.EndChatRequest) (*models.ChatRoom, bool) {
	if req.ChatRoomID == "" || req.CounsellorID == "" {
		c.fail(connID, "Chat room ID and counsellor ID are required")
		return nil, false
	}

	room, ok := c.activeRoom(ctx, connID, op, req.ChatRoomID)
	if !ok {
		return nil, false
	}
	if room.Counsellor() != req.CounsellorID {
		c.fail(connID, msgNotAuthorized)
		return nil, false
	}
	return room, true
}

// notifyParties delivers a handshake event and its system message to both
// parties that are online.
func (c *Coordinator) notifyParties(room *models.ChatRoom, userEvent, counsellorEvent string, notice models.ChatRoomNotice, msg *models.Message) {
	targets := []struct{ userID, event string }{
		{room.UserID, userEvent},
		{room.Counsellor(), counsellorEvent},
	}
	for _, t := range targets {
		if c.emitToUser(t.userID, t.event, notice) {
			c.emitToUser(t.userID, EventNewMessage, msg)
		}
	}
}
