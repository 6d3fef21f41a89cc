package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

type typingKey struct {
	roomID     string
	employeeID string
}

// TypingManager tracks per-room, per-employee typing state. A background
// sweep expires entries whose client stopped refreshing them, so a crashed
// client never leaves a permanent "is typing" indicator behind.
type TypingManager struct {
	bcast      *Broadcaster
	sweepEvery time.Duration
	staleAfter time.Duration

	mu      sync.Mutex
	entries map[typingKey]time.Time
}

func NewTypingManager(bcast *Broadcaster, sweepEvery, staleAfter time.Duration) *TypingManager {
	return &TypingManager{
		bcast:      bcast,
		sweepEvery: sweepEvery,
		staleAfter: staleAfter,
		entries:    make(map[typingKey]time.Time),
	}
}

// SetTyping upserts or clears the entry and broadcasts the indicator to the
// room, excluding the typer. A typing:false with no prior entry is a no-op;
// repeated typing:false frames produce one broadcast, not two.
func (t *TypingManager) SetTyping(ctx context.Context, roomID, employeeID string, isTyping bool) error {
	if roomID == "" {
		return ErrRoomRequired
	}
	key := typingKey{roomID: roomID, employeeID: employeeID}

	t.mu.Lock()
	if isTyping {
		t.entries[key] = time.Now()
	} else {
		if _, ok := t.entries[key]; !ok {
			t.mu.Unlock()
			return nil
		}
		delete(t.entries, key)
	}
	t.mu.Unlock()

	return t.broadcast(ctx, roomID, employeeID, isTyping)
}

// Run sweeps stale entries until ctx ends. Each expiry emits one synthetic
// typing:false on the typer's behalf.
func (t *TypingManager) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

func (t *TypingManager) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-t.staleAfter)

	t.mu.Lock()
	var expired []typingKey
	for key, startedAt := range t.entries {
		if startedAt.Before(cutoff) {
			expired = append(expired, key)
			delete(t.entries, key)
		}
	}
	t.mu.Unlock()

	for _, key := range expired {
		if err := t.broadcast(ctx, key.roomID, key.employeeID, false); err != nil {
			zap.L().Warn("typing.sweep", zap.String("room_id", key.roomID), zap.Error(err))
		}
	}
}

func (t *TypingManager) broadcast(ctx context.Context, roomID, employeeID string, isTyping bool) error {
	payload, err := json.Marshal(TypingFrame{
		Type:       TypeTyping,
		RoomID:     roomID,
		EmployeeID: employeeID,
		Typing:     isTyping,
	})
	if err != nil {
		return err
	}
	return t.bcast.Broadcast(ctx, roomID, employeeID, payload, nil)
}
