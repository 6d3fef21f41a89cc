package pushqueue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	stream = "chat:push_jobs"

	// Jobs older than this are worthless; cap the stream so a dead
	// consumer cannot grow it without bound.
	maxLen = 10_000

	maxBodyLen = 120
)

// IPushQueue hands "user was offline for this message" jobs to the external
// push-notification worker. Enqueue failures never fail the caller.
type IPushQueue interface {
	Enqueue(ctx context.Context, employeeID, title, body, roomID string, messageID int64)
}

type pushQueue struct {
	rdc *redis.Client
}

var _ IPushQueue = (*pushQueue)(nil)

func NewPushQueue(rdc *redis.Client) IPushQueue {
	return &pushQueue{rdc: rdc}
}

func (q *pushQueue) Enqueue(ctx context.Context, employeeID, title, body, roomID string, messageID int64) {
	err := q.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"employee_id": employeeID,
			"title":       title,
			"body":        truncate(body),
			"room_id":     roomID,
			"message_id":  messageID,
			"at":          time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		zap.L().Warn("pushqueue.enqueue", zap.String("employee_id", employeeID), zap.Error(err))
	}
}

func truncate(s string) string {
	if len(s) <= maxBodyLen {
		return s
	}
	// Cut on a rune boundary so we never emit broken UTF-8.
	cut := maxBodyLen
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "…"
}
