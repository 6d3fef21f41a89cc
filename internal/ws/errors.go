package ws

import "errors"

// Handler errors that map straight onto an "error" frame. None of these
// close the connection; auth failures are handled separately and do.
var (
	ErrInvalidFormat    = errors.New("invalid message format")
	ErrUnknownType      = errors.New("unknown message type")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRoomRequired     = errors.New("room_id required")
	ErrEmptyMessage     = errors.New("message must not be empty")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrPersistFailed    = errors.New("failed to save message")
)
