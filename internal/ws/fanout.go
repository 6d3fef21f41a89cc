package ws

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	roomChannelPrefix = "chat:room:"
	usersChannel      = "chat:users"
)

// busEvent is the frame exchanged between sibling processes. Origin lets a
// process skip its own publications: local delivery already happened before
// the publish, so replaying it would double-deliver.
type busEvent struct {
	Origin  string          `json:"origin"`
	Exclude string          `json:"exclude,omitempty"`
	Targets []string        `json:"targets,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Bus publishes broadcast traffic to sibling processes through Redis
// pub/sub. A nil Bus is valid and publishes nothing (single-process and
// test setups).
type Bus struct {
	rdc    *redis.Client
	origin string
}

func NewBus(rdc *redis.Client) *Bus {
	return &Bus{rdc: rdc, origin: uuid.NewString()}
}

func (b *Bus) PublishRoom(ctx context.Context, roomID, exclude string, payload []byte) {
	if b == nil {
		return
	}
	data, err := json.Marshal(busEvent{Origin: b.origin, Exclude: exclude, Payload: payload})
	if err != nil {
		return
	}
	if err := b.rdc.Publish(ctx, roomChannelPrefix+roomID, data).Err(); err != nil {
		zap.L().Warn("ws.bus_publish", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (b *Bus) PublishUsers(ctx context.Context, targets []string, payload []byte) {
	if b == nil || len(targets) == 0 {
		return
	}
	data, err := json.Marshal(busEvent{Origin: b.origin, Targets: targets, Payload: payload})
	if err != nil {
		return
	}
	if err := b.rdc.Publish(ctx, usersChannel, data).Err(); err != nil {
		zap.L().Warn("ws.bus_publish", zap.Error(err))
	}
}

// RunFanout tails the bus and replays sibling-process broadcasts against
// the local registry. Run once at service boot; returns when ctx ends.
func RunFanout(ctx context.Context, rdc *redis.Client, bus *Bus, b *Broadcaster) {
	pubsub := rdc.PSubscribe(ctx, roomChannelPrefix+"*")
	defer pubsub.Close()
	if err := pubsub.Subscribe(ctx, usersChannel); err != nil {
		zap.L().Error("ws.bus_subscribe", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-pubsub.Channel():
			if !ok {
				return
			}

			var evt busEvent
			if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
				zap.L().Warn("ws.bus_decode", zap.String("channel", m.Channel), zap.Error(err))
				continue
			}
			if bus != nil && evt.Origin == bus.origin {
				continue
			}

			if m.Channel == usersChannel {
				b.deliverToUsers(evt.Targets, evt.Payload)
				continue
			}

			roomID := strings.TrimPrefix(m.Channel, roomChannelPrefix)
			members, err := b.Members(ctx, roomID)
			if err != nil {
				zap.L().Warn("ws.bus_members", zap.String("room_id", roomID), zap.Error(err))
				continue
			}
			b.deliverLocal(members, evt.Exclude, evt.Payload)
		}
	}
}
