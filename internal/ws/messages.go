package ws

import "time"

// Frame type discriminants. Every frame on the wire is a single flat JSON
// object carrying one of these in its "type" field; unknown values are a
// recoverable protocol error, never a disconnect.
const (
	TypeAuth         = "auth"
	TypeAuthRequired = "auth_required"
	TypeAuthSuccess  = "auth_success"
	TypeAuthError    = "auth_error"
	TypeMessage      = "message"
	TypeMessageSent  = "message_sent"
	TypeTyping       = "typing"
	TypeRead         = "read"
	TypeStatus       = "status"
	TypeReaction     = "reaction"
	TypeJoinRoom     = "join_room"
	TypeLeaveRoom    = "leave_room"
	TypeJoinedRoom   = "joined_room"
	TypeLeftRoom     = "left_room"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeUserStatus   = "user_status"
	TypeError        = "error"
)

// Envelope is the minimal decode of an inbound frame: just enough to pick
// the handler. The raw frame is re-decoded into the typed request below.
type Envelope struct {
	Type string `json:"type"`
}

// ──────────────────────────── client → server ────────────────────────────

type AuthRequest struct {
	Token string `json:"token"`
}

type MessageRequest struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
	ReplyTo *int64 `json:"reply_to,omitempty"`
}

type TypingRequest struct {
	RoomID string `json:"room_id"`
	Typing bool   `json:"typing"`
}

type ReadRequest struct {
	RoomID string `json:"room_id"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type ReactionRequest struct {
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type RoomRequest struct {
	RoomID string `json:"room_id"`
}

type PongRequest struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

// ──────────────────────────── server → client ────────────────────────────

type AuthRequiredFrame struct {
	Type string `json:"type"`
}

type AuthSuccessFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type AuthErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type MessageFrame struct {
	Type       string    `json:"type"`
	MessageID  int64     `json:"message_id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Message    string    `json:"message"`
	ReplyTo    *int64    `json:"reply_to,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type MessageSentFrame struct {
	Type      string    `json:"type"`
	MessageID int64     `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingFrame struct {
	Type       string `json:"type"`
	RoomID     string `json:"room_id"`
	EmployeeID string `json:"employee_id"`
	Typing     bool   `json:"typing"`
}

type ReadFrame struct {
	Type       string    `json:"type"`
	RoomID     string    `json:"room_id"`
	EmployeeID string    `json:"employee_id"`
	Timestamp  time.Time `json:"timestamp"`
}

type ReactionFrame struct {
	Type       string `json:"type"`
	MessageID  int64  `json:"message_id"`
	RoomID     string `json:"room_id"`
	EmployeeID string `json:"employee_id"`
	Emoji      string `json:"emoji"`
	Action     string `json:"action"`
}

type RoomAckFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type PingFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type PongFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type UserStatusFrame struct {
	Type       string    `json:"type"`
	EmployeeID string    `json:"employee_id"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: msg}
}
