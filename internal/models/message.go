package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Message is one entry of a chat room's history. System messages narrate
// lifecycle events; only ReadBy changes after creation.
type Message struct {
	ID         string         `gorm:"primaryKey" json:"_id"`
	ChatRoomID string         `gorm:"type:text;not null;index:idx_room_msg" json:"chatRoomId"`
	SenderID   string         `gorm:"type:text;not null;index:idx_room_msg" json:"senderId"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	IsSystem   bool           `gorm:"not null;default:false" json:"isSystem"`
	ReadBy     pq.StringArray `gorm:"type:text[]" json:"readBy"`
	CreatedAt  time.Time      `gorm:"index:idx_room_msg" json:"createdAt"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}
