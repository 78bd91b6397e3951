package chathub_test

import (
	"context"
	"time"

	"safecircle/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) CreateChatRoom(ctx context.Context, room *models.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStorage) GetChatRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) ListPendingChatRooms(ctx context.Context) ([]models.ChatRoom, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatRoom), args.Error(1)
}

func (m *MockStorage) ListChatRoomsForUser(ctx context.Context, userID string, statuses ...models.RoomStatus) ([]models.ChatRoom, error) {
	args := m.Called(ctx, userID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatRoom), args.Error(1)
}

func (m *MockStorage) AcceptChatRoom(ctx context.Context, roomID, counsellorID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID, counsellorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) SetEndRequestStatus(ctx context.Context, roomID string, pending bool) error {
	args := m.Called(ctx, roomID, pending)
	return args.Error(0)
}

func (m *MockStorage) CompleteChatRoom(ctx context.Context, roomID string, endedAt time.Time) error {
	args := m.Called(ctx, roomID, endedAt)
	return args.Error(0)
}

func (m *MockStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) MarkMessagesRead(ctx context.Context, roomID, userID string) (int64, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) SetLastSeen(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *MockStorage) GetLastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}
