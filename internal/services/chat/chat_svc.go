package chat

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrEmployeeNotFound = errors.New("employee not found")
)

// Reaction toggle outcomes, mirrored onto the wire as-is.
const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)

type IChatStore interface {
	InsertMessage(ctx context.Context, roomID, senderID, text string, replyTo *int64) (int64, error)
	RoomMembers(ctx context.Context, roomID string) ([]string, error)
	ContactsOf(ctx context.Context, employeeID string) ([]string, error)
	EmployeeName(ctx context.Context, employeeID string) (string, error)
	MarkRead(ctx context.Context, roomID, employeeID string) error
	ToggleReaction(ctx context.Context, messageID int64, employeeID, emoji string) (action, roomID string, err error)
	OnlineAnywhere(ctx context.Context, employeeIDs []string) (map[string]bool, error)
	UpsertOnline(ctx context.Context, employeeID, connectionID, status string) error
	DeleteOnline(ctx context.Context, connectionID string) error
	PurgeStaleOnline(ctx context.Context, olderThan time.Duration) (int64, error)
}

type chatStore struct {
	db *sql.DB
}

var _ IChatStore = (*chatStore)(nil)

func NewChatStore(db *sql.DB) IChatStore {
	return &chatStore{db: db}
}

func (s *chatStore) InsertMessage(ctx context.Context, roomID, senderID, text string, replyTo *int64) (int64, error) {
	const q = `
	  INSERT INTO chat_messages (room_id, sender_id, message, type, reply_to, created_at)
	       VALUES ($1, $2, $3, 'text', $4, now())
	    RETURNING id`

	var id int64
	if err := s.db.QueryRowContext(ctx, q, roomID, senderID, text, replyTo).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *chatStore) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	const q = `SELECT employee_id FROM chat_room_members WHERE room_id = $1`

	rows, err := s.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// ContactsOf returns every distinct employee that shares at least one room
// with the given employee. Used for presence fan-out.
func (s *chatStore) ContactsOf(ctx context.Context, employeeID string) ([]string, error) {
	const q = `
	  SELECT DISTINCT m2.employee_id
	    FROM chat_room_members m1
	    JOIN chat_room_members m2 ON m2.room_id = m1.room_id
	   WHERE m1.employee_id = $1
	     AND m2.employee_id <> $1`

	rows, err := s.db.QueryContext(ctx, q, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		contacts = append(contacts, id)
	}
	return contacts, rows.Err()
}

func (s *chatStore) EmployeeName(ctx context.Context, employeeID string) (string, error) {
	const q = `SELECT name FROM employees WHERE id = $1`

	var name string
	err := s.db.QueryRowContext(ctx, q, employeeID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrEmployeeNotFound
	}
	return name, err
}

func (s *chatStore) MarkRead(ctx context.Context, roomID, employeeID string) error {
	const q = `
	  UPDATE chat_room_members
	     SET last_read_at = now()
	   WHERE room_id = $1 AND employee_id = $2`

	_, err := s.db.ExecContext(ctx, q, roomID, employeeID)
	return err
}

// ToggleReaction adds the reaction if absent and removes it if present,
// returning which of the two happened plus the room the message lives in.
func (s *chatStore) ToggleReaction(ctx context.Context, messageID int64, employeeID, emoji string) (string, string, error) {
	var roomID string
	err := s.db.QueryRowContext(ctx,
		`SELECT room_id FROM chat_messages WHERE id = $1`, messageID,
	).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrMessageNotFound
	}
	if err != nil {
		return "", "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
	  DELETE FROM chat_message_reactions
	   WHERE message_id = $1 AND employee_id = $2 AND emoji = $3`,
		messageID, employeeID, emoji)
	if err != nil {
		return "", "", err
	}

	action := ReactionRemoved
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
		  INSERT INTO chat_message_reactions (message_id, employee_id, emoji, created_at)
		       VALUES ($1, $2, $3, now())`,
			messageID, employeeID, emoji); err != nil {
			return "", "", err
		}
		action = ReactionAdded
	}

	if err := tx.Commit(); err != nil {
		return "", "", err
	}
	return action, roomID, nil
}

// OnlineAnywhere reports which of the given employees hold a live connection
// on any process, per the chat_online_users mirror. Used to suppress push
// notifications for members served by a sibling process.
func (s *chatStore) OnlineAnywhere(ctx context.Context, employeeIDs []string) (map[string]bool, error) {
	if len(employeeIDs) == 0 {
		return map[string]bool{}, nil
	}

	const q = `
	  SELECT DISTINCT employee_id
	    FROM chat_online_users
	   WHERE employee_id = ANY(string_to_array($1, ','))`

	rows, err := s.db.QueryContext(ctx, q, strings.Join(employeeIDs, ","))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	online := make(map[string]bool, len(employeeIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		online[id] = true
	}
	return online, rows.Err()
}

func (s *chatStore) UpsertOnline(ctx context.Context, employeeID, connectionID, status string) error {
	const q = `
	  INSERT INTO chat_online_users (employee_id, connection_id, status, last_activity, created_at)
	       VALUES ($1, $2, $3, now(), now())
	  ON CONFLICT (connection_id) DO UPDATE
	        SET status        = EXCLUDED.status,
	            last_activity = now()`

	_, err := s.db.ExecContext(ctx, q, employeeID, connectionID, status)
	return err
}

func (s *chatStore) DeleteOnline(ctx context.Context, connectionID string) error {
	const q = `DELETE FROM chat_online_users WHERE connection_id = $1`

	_, err := s.db.ExecContext(ctx, q, connectionID)
	return err
}

// PurgeStaleOnline drops rows whose connection went away without a clean
// close, e.g. after a server crash. Returns the number of rows removed.
func (s *chatStore) PurgeStaleOnline(ctx context.Context, olderThan time.Duration) (int64, error) {
	const q = `DELETE FROM chat_online_users WHERE last_activity < now() - ($1 * interval '1 second')`

	res, err := s.db.ExecContext(ctx, q, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
