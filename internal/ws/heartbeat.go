package ws

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// HeartbeatMonitor pings every live connection on a fixed interval and
// force-closes transports with no inbound activity for two intervals.
// Closing the transport is enough: the connection's reader loop unblocks
// and runs the normal teardown (registry removal, presence transition),
// which bounds the memory held by half-open transports.
type HeartbeatMonitor struct {
	registry *Registry
	interval time.Duration
}

func NewHeartbeatMonitor(registry *Registry, interval time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{registry: registry, interval: interval}
}

func (h *HeartbeatMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *HeartbeatMonitor) tick() {
	cutoff := time.Now().Add(-2 * h.interval)
	for _, c := range h.registry.idleConns(cutoff) {
		zap.L().Info("ws.heartbeat_timeout", zap.String("conn_id", c.id))
		c.close()
	}

	// Serialize once, send to everyone still alive.
	payload, err := json.Marshal(PingFrame{Type: TypePing, Timestamp: time.Now().Unix()})
	if err != nil {
		return
	}
	for _, c := range h.registry.allConns() {
		if err := c.write(payload); err != nil {
			c.close()
		}
	}
}
