package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safecircle/backend/internal/errs"
	"safecircle/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the persistence collaborator of the realtime coordinators.
type Storage interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	CreateChatRoom(ctx context.Context, room *models.ChatRoom) error
	GetChatRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	ListPendingChatRooms(ctx context.Context) ([]models.ChatRoom, error)
	ListChatRoomsForUser(ctx context.Context, userID string, statuses ...models.RoomStatus) ([]models.ChatRoom, error)
	AcceptChatRoom(ctx context.Context, roomID, counsellorID string) (*models.ChatRoom, error)
	SetEndRequestStatus(ctx context.Context, roomID string, pending bool) error
	CompleteChatRoom(ctx context.Context, roomID string, endedAt time.Time) error

	CreateMessage(ctx context.Context, msg *models.Message) error
	MarkMessagesRead(ctx context.Context, roomID, userID string) (int64, error)

	SetLastSeen(ctx context.Context, userID string, at time.Time) error
	GetLastSeen(ctx context.Context, userID string) (time.Time, bool, error)
}

const lastSeenKey = "presence:last_seen"

var _ Storage = (*Service)(nil)

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// AutoMigrate creates or updates the tables the realtime layer writes to.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(&models.User{}, &models.ChatRoom{}, &models.Message{})
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &user, nil
}

// CreateChatRoom inserts a new Pending room; the id is filled in by the model hook.
func (s *Service) CreateChatRoom(ctx context.Context, room *models.ChatRoom) error {
	if err := s.DB.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("create chat room: %w", err)
	}
	return nil
}

func (s *Service) GetChatRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat room %s: %w", roomID, err)
	}
	return &room, nil
}

// ListPendingChatRooms returns unclaimed requests, oldest first.
func (s *Service) ListPendingChatRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	if err := s.DB.WithContext(ctx).
		Where("status = ?", models.RoomPending).
		Order("created_at asc").
		Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list pending chat rooms: %w", err)
	}
	return rooms, nil
}

// ListChatRoomsForUser returns rooms where userID is the requester or the
// counsellor, restricted to statuses when any are given. Newest activity first.
func (s *Service) ListChatRoomsForUser(ctx context.Context, userID string, statuses ...models.RoomStatus) ([]models.ChatRoom, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ? OR counsellor_id = ?", userID, userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}

	var rooms []models.ChatRoom
	if err := q.Order("updated_at desc").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list chat rooms for %s: %w", userID, err)
	}
	return rooms, nil
}

// AcceptChatRoom assigns the counsellor only while the room is still Pending,
// so of two racing counsellors exactly one update takes effect.
func (s *Service) AcceptChatRoom(ctx context.Context, roomID, counsellorID string) (*models.ChatRoom, error) {
	res := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("id = ? AND status = ?", roomID, models.RoomPending).
		Updates(map[string]interface{}{
			"status":        models.RoomAccepted,
			"counsellor_id": counsellorID,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("accept chat room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetChatRoomByID(ctx, roomID); err != nil {
			return nil, err
		}
		return nil, errs.ErrRoomNotPending
	}
	return s.GetChatRoomByID(ctx, roomID)
}

func (s *Service) SetEndRequestStatus(ctx context.Context, roomID string, pending bool) error {
	err := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		Update("end_request_status", pending).Error
	if err != nil {
		return fmt.Errorf("set end request status for %s: %w", roomID, err)
	}
	return nil
}

// CompleteChatRoom moves an Accepted room to its terminal state.
func (s *Service) CompleteChatRoom(ctx context.Context, roomID string, endedAt time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("id = ? AND status = ?", roomID, models.RoomAccepted).
		Updates(map[string]interface{}{
			"status":             models.RoomCompleted,
			"ended_at":           endedAt,
			"end_request_status": false,
		})
	if res.Error != nil {
		return fmt.Errorf("complete chat room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrRoomNotFound
	}
	return nil
}

func (s *Service) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("create message in %s: %w", msg.ChatRoomID, err)
	}
	return nil
}

// MarkMessagesRead adds userID to read_by of every message in the room that
// does not carry it yet and returns how many messages changed.
func (s *Service) MarkMessagesRead(ctx context.Context, roomID, userID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("chat_room_id = ?", roomID).
		Where("NOT (? = ANY(COALESCE(read_by, '{}')))", userID).
		Update("read_by", gorm.Expr("array_append(COALESCE(read_by, '{}'), ?)", userID))
	if res.Error != nil {
		return 0, fmt.Errorf("mark messages read in %s: %w", roomID, res.Error)
	}
	return res.RowsAffected, nil
}

// SetLastSeen mirrors the disconnect timestamp into Redis so it survives restarts.
func (s *Service) SetLastSeen(ctx context.Context, userID string, at time.Time) error {
	return s.Redis.HSet(ctx, lastSeenKey, userID, at.UTC().Format(time.RFC3339Nano)).Err()
}

func (s *Service) GetLastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := s.Redis.HGet(ctx, lastSeenKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last seen for %s: %w", userID, err)
	}
	return at, true, nil
}

// SetUserRole changes the role of an existing user.
func (s *Service) SetUserRole(ctx context.Context, userID string, role models.Role) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("role", role)
	if res.Error != nil {
		return fmt.Errorf("set role of %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}
