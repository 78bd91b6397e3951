package errs

import "errors"

// Domain sentinel errors. Coordinators map them onto client-facing error events.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrRoomNotFound   = errors.New("chat room not found")
	ErrRoomNotPending = errors.New("chat request is no longer pending")
)
