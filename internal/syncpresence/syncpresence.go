package syncpresence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pontochat/internal/services/chat"
	"pontochat/internal/ws"
)

const (
	syncEvery  = 60 * time.Second
	staleAfter = 5 * time.Minute
)

// Every 60 s, mirror the in-memory connection table into chat_online_users
// so the HTTP application can query who is reachable, and purge rows left
// behind by a crashed process. The table is advisory: the in-memory
// registry stays the source of truth for delivery.
func Run(ctx context.Context, registry *ws.Registry, presence *ws.PresenceTracker, store chat.IChatStore) {
	tk := time.NewTicker(syncEvery)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				syncOnce(ctx, registry, presence, store)
			}
		}
	}()
}

func syncOnce(ctx context.Context, registry *ws.Registry, presence *ws.PresenceTracker, store chat.IChatStore) {
	for _, oc := range registry.Snapshot() {
		err := store.UpsertOnline(ctx, oc.EmployeeID, oc.ConnectionID, presence.StatusOf(oc.EmployeeID))
		if err != nil {
			zap.L().Warn("syncpresence.upsert",
				zap.String("employee_id", oc.EmployeeID), zap.Error(err))
			return // store unreachable, retry next tick
		}
	}

	purged, err := store.PurgeStaleOnline(ctx, staleAfter)
	if err != nil {
		zap.L().Warn("syncpresence.purge", zap.Error(err))
		return
	}
	if purged > 0 {
		zap.L().Info("syncpresence.purged", zap.Int64("rows", purged))
	}
}
