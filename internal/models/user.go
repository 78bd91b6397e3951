package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role distinguishes regular users from counsellors who answer chat requests.
type Role string

const (
	RoleUser       Role = "user"
	RoleCounsellor Role = "counsellor"
	RoleAdmin      Role = "admin"
)

// User is the account record the realtime layer reads to resolve who is connecting.
// Profile and credential fields are owned by the REST side and are not modelled here.
type User struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:text" json:"name"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	Role      Role      `gorm:"type:text;not null;default:user;index" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate generates a UUID for the user if none was set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// IsCounsellor reports whether the user can claim chat requests.
func (u *User) IsCounsellor() bool {
	return u.Role == RoleCounsellor
}
