package chathub

import (
	"context"
	"errors"
	"strings"

	"safecircle/backend/internal/errs"
	"safecircle/backend/internal/models"

	"go.uber.org/zap"
)

// CreateRequest opens a Pending room and offers it to every online counsellor.
func (c *Coordinator) CreateRequest(ctx context.Context, connID string, req models.CreateChatRequest) {
	if req.UserID == "" || strings.TrimSpace(req.ProblemType) == "" {
		c.fail(connID, "User ID and problem type are required")
		return
	}

	room := &models.ChatRoom{
		UserID:      req.UserID,
		ProblemType: strings.TrimSpace(req.ProblemType),
		Brief:       strings.TrimSpace(req.Brief),
		Status:      models.RoomPending,
	}
	if err := c.storage.CreateChatRoom(ctx, room); err != nil {
		c.internalError(connID, EventCreateChatRequest, err, zap.String("user_id", req.UserID))
		return
	}

	counsellors := c.registry.Counsellors()
	for _, p := range counsellors {
		c.emitter.Emit(p.ConnID, EventNewChatRequest, room)
	}
	c.emitter.Emit(connID, EventChatRequestCreated, room)

	c.log.Info("chat request created",
		zap.String("chat_room_id", room.ID),
		zap.String("user_id", room.UserID),
		zap.Int("counsellors_notified", len(counsellors)))

	if len(counsellors) == 0 && c.notifier != nil {
		c.notifier.ChatRequestWaiting(ctx, *room)
	}
}

// AcceptRequest assigns a Pending room to the counsellor. Only the first of
// several racing counsellors succeeds; the others get an error.
func (c *Coordinator) AcceptRequest(ctx context.Context, connID string, req models.AcceptChatRequest) {
	if req.CounsellorID == "" || req.RequestID == "" {
		c.fail(connID, "Counsellor ID and request ID are required")
		return
	}

	counsellor, err := c.storage.GetUserByID(ctx, req.CounsellorID)
	if errors.Is(err, errs.ErrUserNotFound) {
		c.fail(connID, msgUserNotFound)
		return
	}
	if err != nil {
		c.internalError(connID, EventAcceptChatRequest, err, zap.String("user_id", req.CounsellorID))
		return
	}
	if !counsellor.IsCounsellor() {
		c.fail(connID, msgNotCounsellor)
		return
	}

	room, err := c.storage.AcceptChatRoom(ctx, req.RequestID, req.CounsellorID)
	switch {
	case errors.Is(err, errs.ErrRoomNotFound):
		c.fail(connID, msgRequestNotFound)
		return
	case errors.Is(err, errs.ErrRoomNotPending):
		c.fail(connID, msgRequestUnavailable)
		return
	case err != nil:
		c.internalError(connID, EventAcceptChatRequest, err, zap.String("chat_room_id", req.RequestID))
		return
	}

	greeting := c.text("chat.welcome_unnamed")
	if name := strings.TrimSpace(counsellor.Name); name != "" {
		greeting = c.text("chat.welcome", name)
	}
	welcome, err := c.systemMessage(ctx, room.ID, req.CounsellorID, greeting)
	if err != nil {
		c.internalError(connID, EventAcceptChatRequest, err, zap.String("chat_room_id", room.ID))
		return
	}

	if c.emitToUser(room.UserID, EventChatRequestAccepted, room) {
		c.emitToUser(room.UserID, EventNewMessage, welcome)
	}
	c.emitter.Emit(connID, EventChatRoomCreated, room)
	c.emitter.Broadcast(EventChatRequestStatusUpdate, models.ChatRequestStatusUpdate{
		RequestID:    room.ID,
		Status:       room.Status,
		CounsellorID: req.CounsellorID,
	})

	c.log.Info("chat request accepted", zap.String("chat_room_id", room.ID), zap.String("counsellor_id", req.CounsellorID))
}
