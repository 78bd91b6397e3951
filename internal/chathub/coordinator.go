// Package chathub coordinates presence and peer counselling chats: who is
// online, chat request creation and acceptance, message relay, read state and
// the end-of-chat confirmation handshake.
package chathub

import (
	"context"
	"errors"
	"time"

	"safecircle/backend/internal/errs"
	"safecircle/backend/internal/localization"
	"safecircle/backend/internal/logging"
	"safecircle/backend/internal/models"
	"safecircle/backend/internal/storage"

	"go.uber.org/zap"
)

// Client -> server events.
const (
	EventUserConnected     = "user_connected"
	EventCreateChatRequest = "create_chat_request"
	EventAcceptChatRequest = "accept_chat_request"
	EventSendMessage       = "send_message"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventRequestEndChat    = "request_end_chat"
	EventCancelEndChat     = "cancel_end_chat_request"
	EventEndChatResponse   = "end_chat_response"
	EventMarkMessagesRead  = "mark_messages_read"
)

// Server -> client events.
const (
	EventPendingChatRequests     = "pending_chat_requests"
	EventActiveChatRooms         = "active_chat_rooms"
	EventUserStatusChange        = "user_status_change"
	EventNewChatRequest          = "new_chat_request"
	EventChatRequestCreated      = "chat_request_created"
	EventChatRequestAccepted     = "chat_request_accepted"
	EventChatRoomCreated         = "chat_room_created"
	EventNewMessage              = "new_message"
	EventMessageSent             = "message_sent"
	EventChatRequestStatusUpdate = "chat_request_status_updated"
	EventEndChatRequested        = "end_chat_requested"
	EventEndChatRequest          = "end_chat_request"
	EventEndChatRequestCanceled  = "end_chat_request_canceled"
	EventEndChatDeclined         = "end_chat_declined"
	EventChatEnded               = "chat_ended"
	EventMessagesRead            = "messages_read"
	EventError                   = "error"
)

// Client-facing error messages.
const (
	msgInternal           = "Internal server error"
	msgInvalidPayload     = "Invalid payload"
	msgUserNotFound       = "User not found"
	msgRoomInactive       = "Chat room not found or inactive"
	msgRoomNotFound       = "Chat room not found"
	msgRequestNotFound    = "Chat request not found"
	msgRequestUnavailable = "Chat request is no longer available"
	msgNotAuthorized      = "Not authorized for this chat room"
	msgNotCounsellor      = "Only counsellors can accept chat requests"
	msgNoPendingEnd       = "No pending end chat request"
)

// Emitter is the part of the realtime hub the coordinator drives.
type Emitter interface {
	Emit(connID, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// Notifier is told when a chat request finds no counsellor online.
type Notifier interface {
	ChatRequestWaiting(ctx context.Context, room models.ChatRoom)
}

// Coordinator handles the chat socket events of one process.
type Coordinator struct {
	storage   storage.Storage
	registry  *Registry
	emitter   Emitter
	notifier  Notifier
	localizer *localization.Localizer
	now       func() time.Time
	log       *zap.Logger
}

type Option func(*Coordinator)

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

func WithLocalizer(l *localization.Localizer) Option {
	return func(c *Coordinator) { c.localizer = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(s storage.Storage, registry *Registry, e Emitter, log *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		storage:  s,
		registry: registry,
		emitter:  e,
		now:      time.Now,
		log:      logging.OrNop(log),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.localizer == nil {
		c.localizer = localization.Default()
	}
	return c
}

// Registry exposes the presence registry owned by the coordinator.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

func (c *Coordinator) fail(connID, message string) {
	c.emitter.Emit(connID, EventError, models.ErrorPayload{Message: message})
}

// internalError logs err in full and tells the initiator only that something failed.
func (c *Coordinator) internalError(connID, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.String("conn_id", connID), zap.Error(err))
	c.log.Error("chat operation failed", fields...)
	c.fail(connID, msgInternal)
}

// activeRoom loads roomID and requires it to be Accepted. On failure the
// initiator has already been told and ok is false.
func (c *Coordinator) activeRoom(ctx context.Context, connID, op, roomID string) (*models.ChatRoom, bool) {
	room, err := c.storage.GetChatRoomByID(ctx, roomID)
	if errors.Is(err, errs.ErrRoomNotFound) {
		c.fail(connID, msgRoomInactive)
		return nil, false
	}
	if err != nil {
		c.internalError(connID, op, err, zap.String("chat_room_id", roomID))
		return nil, false
	}
	if !room.IsActive() {
		c.fail(connID, msgRoomInactive)
		return nil, false
	}
	return room, true
}

// systemMessage records a lifecycle notice in the room's history.
func (c *Coordinator) systemMessage(ctx context.Context, roomID, senderID, content string) (*models.Message, error) {
	msg := &models.Message{
		ChatRoomID: roomID,
		SenderID:   senderID,
		Content:    content,
		IsSystem:   true,
		ReadBy:     []string{senderID},
	}
	if err := c.storage.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *Coordinator) text(key string, args ...interface{}) string {
	return c.localizer.Format(localization.DefaultLanguage, key, args...)
}

// emitToUser delivers to userID's live connection, if any.
func (c *Coordinator) emitToUser(userID, event string, payload interface{}) bool {
	p, ok := c.registry.Lookup(userID)
	if !ok {
		return false
	}
	c.emitter.Emit(p.ConnID, event, payload)
	return true
}

// partners returns the distinct counterparts of userID across rooms, in room order.
func partners(rooms []models.ChatRoom, userID string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(rooms))
	for i := range rooms {
		other := rooms[i].Counterpart(userID)
		if other == "" {
			continue
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	return out
}
