package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoomStatus is the lifecycle state of a counselling chat room.
type RoomStatus string

const (
	RoomPending   RoomStatus = "Pending"
	RoomAccepted  RoomStatus = "Accepted"
	RoomCompleted RoomStatus = "Completed"
)

// ChatRoom is a counselling conversation between one user and, once accepted,
// one counsellor. It moves Pending -> Accepted -> Completed and never leaves Completed.
type ChatRoom struct {
	ID               string     `gorm:"primaryKey" json:"_id"`
	UserID           string     `gorm:"type:text;not null;index" json:"userId"`
	ProblemType      string     `gorm:"type:text;not null" json:"problemType"`
	Brief            string     `gorm:"type:text" json:"brief"`
	Status           RoomStatus `gorm:"type:text;not null;default:Pending;index" json:"status"`
	CounsellorID     *string    `gorm:"type:text;index" json:"counsellorId"`
	EndRequestStatus bool       `gorm:"not null;default:false" json:"endRequestStatus"`
	EndedAt          *time.Time `json:"endedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns a UUID and the Pending status to new rooms.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RoomPending
	}
	return
}

// Counsellor returns the assigned counsellor id, or "" while the room is unclaimed.
func (r *ChatRoom) Counsellor() string {
	if r.CounsellorID == nil {
		return ""
	}
	return *r.CounsellorID
}

// HasParticipant reports whether userID is the requester or the assigned counsellor.
func (r *ChatRoom) HasParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return r.UserID == userID || r.Counsellor() == userID
}

// Counterpart returns the other party of the room for userID.
// The counsellor gets the user, everyone else gets the counsellor.
func (r *ChatRoom) Counterpart(userID string) string {
	if c := r.Counsellor(); c != "" && c == userID {
		return r.UserID
	}
	if r.UserID == userID {
		return r.Counsellor()
	}
	return ""
}

// IsActive reports whether messages and the end-chat handshake are allowed.
func (r *ChatRoom) IsActive() bool {
	return r.Status == RoomAccepted
}
