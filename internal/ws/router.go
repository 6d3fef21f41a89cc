package ws

import (
	"context"
	"encoding/json"
	"sync"
)

// internal (untyped) handler signature. raw is the full inbound frame.
type rawHandler func(ctx context.Context, c *ConnContext, raw json.RawMessage) (any, error)

// Router keeps a map[type]handler, à-la gin.Engine. Returned values are
// written back to the caller's connection verbatim; frames address their
// own "type" field so there is no envelope wrapping on the way out.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[string]rawHandler)} }

// Register binds a frame type to a strongly-typed handler.
func Register[Req any](
	r *Router,
	msgType string,
	h func(ctx context.Context, c *ConnContext, req Req) (any, error),
) {
	if msgType == "" {
		panic("ws router: empty message type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[msgType] = func(ctx context.Context, c *ConnContext, raw json.RawMessage) (any, error) {
		var req Req
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, ErrInvalidFormat
			}
		}
		return h(ctx, c, req)
	}
}

// dispatch is called by the server's reader loop.
func (r *Router) dispatch(ctx context.Context, c *ConnContext, msgType string, raw json.RawMessage) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[msgType]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownType
	}
	return h(ctx, c, raw)
}
