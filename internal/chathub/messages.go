package chathub

import (
	"context"
	"errors"
	"strings"

	"safecircle/backend/internal/errs"
	"safecircle/backend/internal/models"

	"go.uber.org/zap"
)

// SendMessage stores a message in an Accepted room and relays it to the other party.
func (c *Coordinator) SendMessage(ctx context.Context, connID string, req models.SendMessageRequest) {
	if req.ChatRoomID == "" || req.SenderID == "" || strings.TrimSpace(req.Content) == "" {
		c.fail(connID, "Chat room ID, sender ID and content are required")
		return
	}

	room, ok := c.activeRoom(ctx, connID, EventSendMessage, req.ChatRoomID)
	if !ok {
		return
	}
	if !room.HasParticipant(req.SenderID) {
		c.fail(connID, msgNotAuthorized)
		return
	}

	msg := &models.Message{
		ChatRoomID: room.ID,
		SenderID:   req.SenderID,
		Content:    req.Content,
		ReadBy:     []string{req.SenderID},
	}
	if err := c.storage.CreateMessage(ctx, msg); err != nil {
		c.internalError(connID, EventSendMessage, err, zap.String("chat_room_id", room.ID))
		return
	}

	c.emitToUser(room.Counterpart(req.SenderID), EventNewMessage, msg)
	c.emitter.Emit(connID, EventMessageSent, msg)
}

// Typing forwards a typing indicator to the other party. Invalid requests are
// dropped silently.
func (c *Coordinator) Typing(ctx context.Context, connID, event string, req models.RoomUserRequest) {
	if req.ChatRoomID == "" || req.UserID == "" {
		return
	}

	room, err := c.storage.GetChatRoomByID(ctx, req.ChatRoomID)
	if err != nil {
		if !errors.Is(err, errs.ErrRoomNotFound) {
			c.log.Warn("typing lookup failed", zap.String("chat_room_id", req.ChatRoomID), zap.Error(err))
		}
		return
	}
	if !room.IsActive() || !room.HasParticipant(req.UserID) {
		return
	}

	c.emitToUser(room.Counterpart(req.UserID), event, models.TypingNotice{
		ChatRoomID: room.ID,
		UserID:     req.UserID,
	})
}

// MarkRead records that the user has seen every message of the room and tells
// the other party.
func (c *Coordinator) MarkRead(ctx context.Context, connID string, req models.RoomUserRequest) {
	if req.ChatRoomID == "" || req.UserID == "" {
		c.fail(connID, "Chat room ID and user ID are required")
		return
	}

	room, err := c.storage.GetChatRoomByID(ctx, req.ChatRoomID)
	if errors.Is(err, errs.ErrRoomNotFound) {
		c.fail(connID, msgRoomNotFound)
		return
	}
	if err != nil {
		c.internalError(connID, EventMarkMessagesRead, err, zap.String("chat_room_id", req.ChatRoomID))
		return
	}
	if !room.HasParticipant(req.UserID) {
		c.fail(connID, msgNotAuthorized)
		return
	}

	count, err := c.storage.MarkMessagesRead(ctx, room.ID, req.UserID)
	if err != nil {
		c.internalError(connID, EventMarkMessagesRead, err, zap.String("chat_room_id", room.ID))
		return
	}
	if count == 0 {
		return
	}

	c.emitToUser(room.Counterpart(req.UserID), EventMessagesRead, models.MessagesRead{
		ChatRoomID: room.ID,
		UserID:     req.UserID,
		Count:      count,
	})
}
