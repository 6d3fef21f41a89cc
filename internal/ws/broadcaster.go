package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"pontochat/internal/pushqueue"
	"pontochat/internal/services/chat"
)

// PushContent describes the notification queued for members with no live
// connection. Only chat messages carry one; typing and read fan-out pass nil.
type PushContent struct {
	Title     string
	Body      string
	MessageID int64
}

type memberEntry struct {
	members   []string
	fetchedAt time.Time
}

// Broadcaster fans a payload out to every member of a room: local
// connections directly, remote processes through the Redis bus, offline
// members into the push queue.
type Broadcaster struct {
	registry *Registry
	store    chat.IChatStore
	push     pushqueue.IPushQueue
	bus      *Bus
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]memberEntry
}

func NewBroadcaster(registry *Registry, store chat.IChatStore, push pushqueue.IPushQueue, bus *Bus, cacheTTL time.Duration) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		store:    store,
		push:     push,
		bus:      bus,
		cacheTTL: cacheTTL,
		cache:    make(map[string]memberEntry),
	}
}

// Members returns the room's member list, cached for cacheTTL so a burst of
// typing events does not hammer the store.
func (b *Broadcaster) Members(ctx context.Context, roomID string) ([]string, error) {
	b.mu.Lock()
	if e, ok := b.cache[roomID]; ok && time.Since(e.fetchedAt) < b.cacheTTL {
		members := e.members
		b.mu.Unlock()
		return members, nil
	}
	b.mu.Unlock()

	members, err := b.store.RoomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.cache[roomID] = memberEntry{members: members, fetchedAt: time.Now()}
	b.mu.Unlock()
	return members, nil
}

// Broadcast delivers payload to every member of the room except exclude.
// Offline members go into the push queue when push is non-nil. Individual
// delivery failures are logged and swallowed; the failed transport is
// closed so its reader loop runs the normal teardown.
func (b *Broadcaster) Broadcast(ctx context.Context, roomID, exclude string, payload []byte, push *PushContent) error {
	members, err := b.Members(ctx, roomID)
	if err != nil {
		return err
	}

	offline := b.deliverLocal(members, exclude, payload)

	if push != nil && b.push != nil && len(offline) > 0 {
		// A member absent from the local registry may still be connected to
		// a sibling process, which delivers through the bus. Check the
		// online mirror so those members are not pushed as well. On lookup
		// failure push anyway, a duplicate beats a dropped notification.
		elsewhere, err := b.store.OnlineAnywhere(ctx, offline)
		if err != nil {
			zap.L().Warn("ws.online_lookup", zap.String("room_id", roomID), zap.Error(err))
		}
		for _, employeeID := range offline {
			if elsewhere[employeeID] {
				continue
			}
			b.push.Enqueue(ctx, employeeID, push.Title, push.Body, roomID, push.MessageID)
		}
	}

	b.bus.PublishRoom(ctx, roomID, exclude, payload)
	return nil
}

// BroadcastToUsers delivers payload to every live connection of the given
// employees, here and on sibling processes. Used for presence fan-out.
func (b *Broadcaster) BroadcastToUsers(ctx context.Context, targets []string, payload []byte) {
	b.deliverToUsers(targets, payload)
	b.bus.PublishUsers(ctx, targets, payload)
}

func (b *Broadcaster) deliverLocal(members []string, exclude string, payload []byte) (offline []string) {
	for _, employeeID := range members {
		if employeeID == exclude {
			continue
		}
		conns := b.registry.ForEmployee(employeeID)
		if len(conns) == 0 {
			offline = append(offline, employeeID)
			continue
		}
		for _, c := range conns {
			if err := c.write(payload); err != nil {
				zap.L().Warn("ws.deliver", zap.String("conn_id", c.id), zap.Error(err))
				c.close()
			}
		}
	}
	return offline
}

func (b *Broadcaster) deliverToUsers(targets []string, payload []byte) {
	for _, employeeID := range targets {
		for _, c := range b.registry.ForEmployee(employeeID) {
			if err := c.write(payload); err != nil {
				zap.L().Warn("ws.deliver", zap.String("conn_id", c.id), zap.Error(err))
				c.close()
			}
		}
	}
}

// SendMessage persists the message, acks the sender, and broadcasts to the
// rest of the room. The sender never receives its own message through the
// broadcast; the ack frame is its only reply.
func (b *Broadcaster) SendMessage(ctx context.Context, senderID string, req MessageRequest) (*MessageSentFrame, error) {
	if req.RoomID == "" {
		return nil, ErrRoomRequired
	}
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}

	messageID, err := b.store.InsertMessage(ctx, req.RoomID, senderID, req.Message, req.ReplyTo)
	if err != nil {
		zap.L().Error("ws.persist_message", zap.String("room_id", req.RoomID), zap.Error(err))
		return nil, ErrPersistFailed
	}

	senderName, err := b.store.EmployeeName(ctx, senderID)
	if err != nil {
		senderName = "Unknown"
	}

	now := time.Now().UTC()
	frame := MessageFrame{
		Type:       TypeMessage,
		MessageID:  messageID,
		RoomID:     req.RoomID,
		SenderID:   senderID,
		SenderName: senderName,
		Message:    req.Message,
		ReplyTo:    req.ReplyTo,
		Timestamp:  now,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}

	// Message is durable at this point; a fan-out hiccup must not turn the
	// sender's ack into an error.
	if err := b.Broadcast(ctx, req.RoomID, senderID, payload, &PushContent{
		Title:     senderName,
		Body:      req.Message,
		MessageID: messageID,
	}); err != nil {
		zap.L().Warn("ws.broadcast", zap.String("room_id", req.RoomID), zap.Error(err))
	}

	return &MessageSentFrame{
		Type:      TypeMessageSent,
		MessageID: messageID,
		RoomID:    req.RoomID,
		Timestamp: now,
	}, nil
}
