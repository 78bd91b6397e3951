package models

import "time"

// Presence statuses carried by user_status_change.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// UserStatusChange is the payload of the user_status_change event.
type UserStatusChange struct {
	UserID   string     `json:"userId"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen"`
}

type CreateChatRequest struct {
	UserID      string `json:"userId"`
	ProblemType string `json:"problemType"`
	Brief       string `json:"brief"`
}

type AcceptChatRequest struct {
	CounsellorID string `json:"counsellorId"`
	RequestID    string `json:"requestId"`
}

type SendMessageRequest struct {
	ChatRoomID string `json:"chatRoomId"`
	SenderID   string `json:"senderId"`
	Content    string `json:"content"`
}

// RoomUserRequest is shared by typing indicators and read receipts.
type RoomUserRequest struct {
	ChatRoomID string `json:"chatRoomId"`
	UserID     string `json:"userId"`
}

type EndChatRequest struct {
	ChatRoomID   string `json:"chatRoomId"`
	CounsellorID string `json:"counsellorId"`
}

type EndChatResponse struct {
	ChatRoomID string `json:"chatRoomId"`
	UserID     string `json:"userId"`
	Accepted   bool   `json:"accepted"`
}

// ChatRequestStatusUpdate tells every connection a request changed state.
type ChatRequestStatusUpdate struct {
	RequestID    string     `json:"requestId"`
	Status       RoomStatus `json:"status"`
	CounsellorID string     `json:"counsellorId,omitempty"`
}

// ChatRoomNotice accompanies end-chat handshake events.
type ChatRoomNotice struct {
	ChatRoomID string     `json:"chatRoomId"`
	Message    string     `json:"message,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}

type TypingNotice struct {
	ChatRoomID string `json:"chatRoomId"`
	UserID     string `json:"userId"`
}

type MessagesRead struct {
	ChatRoomID string `json:"chatRoomId"`
	UserID     string `json:"userId"`
	Count      int64  `json:"count"`
}

// ErrorPayload is the body of the error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
