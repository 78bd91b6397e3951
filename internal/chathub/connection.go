package chathub

import (
	"context"
	"errors"

	"safecircle/backend/internal/errs"
	"safecircle/backend/internal/models"

	"go.uber.org/zap"
)

// Connect identifies connID as userID, announces the user to partners and to
// every connection, and sends the user their rooms and partners' presence.
func (c *Coordinator) Connect(ctx context.Context, connID, userID string) {
	if userID == "" {
		c.fail(connID, "User ID is required")
		return
	}

	user, err := c.storage.GetUserByID(ctx, userID)
	if errors.Is(err, errs.ErrUserNotFound) {
		c.fail(connID, msgUserNotFound)
		return
	}
	if err != nil {
		c.internalError(connID, EventUserConnected, err, zap.String("user_id", userID))
		return
	}

	if replaced := c.registry.Connect(userID, connID, user.Role); replaced != "" {
		c.log.Debug("connection replaced", zap.String("user_id", userID), zap.String("old_conn_id", replaced))
	}
	c.log.Info("user connected", zap.String("user_id", userID), zap.String("role", string(user.Role)), zap.String("conn_id", connID))

	accepted, err := c.storage.ListChatRoomsForUser(ctx, userID, models.RoomAccepted)
	if err != nil {
		c.internalError(connID, EventUserConnected, err, zap.String("user_id", userID))
		return
	}

	online := models.UserStatusChange{UserID: userID, Status: models.StatusOnline}
	for _, partner := range partners(accepted, userID) {
		c.emitToUser(partner, EventUserStatusChange, online)
	}
	c.emitter.Broadcast(EventUserStatusChange, online)

	if user.IsCounsellor() {
		pending, err := c.storage.ListPendingChatRooms(ctx)
		if err != nil {
			c.internalError(connID, EventUserConnected, err, zap.String("user_id", userID))
			return
		}
		if pending == nil {
			pending = []models.ChatRoom{}
		}
		c.emitter.Emit(connID, EventPendingChatRequests, pending)
	}

	rooms, err := c.storage.ListChatRoomsForUser(ctx, userID, models.RoomAccepted, models.RoomCompleted)
	if err != nil {
		c.internalError(connID, EventUserConnected, err, zap.String("user_id", userID))
		return
	}
	if rooms == nil {
		rooms = []models.ChatRoom{}
	}
	for _, partner := range partners(rooms, userID) {
		c.emitter.Emit(connID, EventUserStatusChange, c.partnerStatus(ctx, partner))
	}
	c.emitter.Emit(connID, EventActiveChatRooms, rooms)
}

// partnerStatus reports userID as online, or offline with the best known last-seen time.
func (c *Coordinator) partnerStatus(ctx context.Context, userID string) models.UserStatusChange {
	if _, ok := c.registry.Lookup(userID); ok {
		return models.UserStatusChange{UserID: userID, Status: models.StatusOnline}
	}

	status := models.UserStatusChange{UserID: userID, Status: models.StatusOffline}
	if at, ok := c.registry.LastSeen(userID); ok {
		status.LastSeen = &at
		return status
	}

	at, ok, err := c.storage.GetLastSeen(ctx, userID)
	if err != nil {
		c.log.Warn("last seen lookup failed", zap.String("user_id", userID), zap.Error(err))
		return status
	}
	if ok {
		status.LastSeen = &at
	}
	return status
}

// Disconnect marks the user behind connID offline and tells everyone, with a
// targeted notice to partners in active rooms.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	at := c.now()
	userID, ok := c.registry.Disconnect(connID, at)
	if !ok {
		return
	}
	c.log.Info("user disconnected", zap.String("user_id", userID), zap.String("conn_id", connID))

	if err := c.storage.SetLastSeen(ctx, userID, at); err != nil {
		c.log.Warn("persist last seen failed", zap.String("user_id", userID), zap.Error(err))
	}

	offline := models.UserStatusChange{UserID: userID, Status: models.StatusOffline, LastSeen: &at}
	c.emitter.Broadcast(EventUserStatusChange, offline)

	rooms, err := c.storage.ListChatRoomsForUser(ctx, userID, models.RoomAccepted)
	if err != nil {
		c.log.Error("list rooms on disconnect failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	for _, partner := range partners(rooms, userID) {
		c.emitToUser(partner, EventUserStatusChange, offline)
	}
}
