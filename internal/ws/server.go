package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pontochat/internal/auth"
	"pontochat/internal/services/chat"
)

const dispatchTimeout = 1900 * time.Millisecond

// Connection lifecycle. Frames other than "auth" are rejected (but do not
// disconnect) until the handshake completes; auth failure or grace-period
// expiry moves straight to closed.
type connState int

const (
	stateConnecting connState = iota
	stateAuthenticating
	stateAuthenticated
	stateClosed
)

// ConnContext is what a handler knows about the calling connection.
type ConnContext struct {
	ConnID     string
	EmployeeID string
	conn       *clientConn
}

type WsServer struct {
	registry  *Registry
	router    *Router
	bcast     *Broadcaster
	presence  *PresenceTracker
	typing    *TypingManager
	verifier  auth.TokenVerifier
	store     chat.IChatStore
	authGrace time.Duration
	upgrader  websocket.Upgrader
}

func NewWsServer(
	registry *Registry,
	bcast *Broadcaster,
	presence *PresenceTracker,
	typing *TypingManager,
	verifier auth.TokenVerifier,
	store chat.IChatStore,
	authGrace time.Duration,
) *WsServer {
	srv := &WsServer{
		registry:  registry,
		router:    NewRouter(),
		bcast:     bcast,
		presence:  presence,
		typing:    typing,
		verifier:  verifier,
		store:     store,
		authGrace: authGrace,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev-only
		},
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}

	conn := newClientConn(rawConn)
	_ = conn.writeJSON(AuthRequiredFrame{Type: TypeAuthRequired})

	go s.reader(conn)
}

// OnlineEmployees exposes the registry snapshot to the ops endpoint.
func (s *WsServer) OnlineEmployees() []string { return s.registry.OnlineEmployees() }

// ConnCount exposes the live connection count to the ops endpoint.
func (s *WsServer) ConnCount() int { return s.registry.ConnCount() }

// ---------------------------------------------------------------------------
//  Reader loop / state machine
// ---------------------------------------------------------------------------

func (s *WsServer) reader(conn *clientConn) {
	defer s.teardown(conn)

	state := stateConnecting
	authTimer := time.AfterFunc(s.authGrace, func() {
		_ = conn.writeJSON(AuthErrorFrame{Type: TypeAuthError, Message: "authentication timeout"})
		conn.close()
	})
	defer authTimer.Stop()

	cc := &ConnContext{ConnID: conn.id, conn: conn}

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed, heartbeat timeout, or forced disconnect
		}
		s.registry.Touch(conn.id)

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			_ = conn.writeJSON(errorFrame(ErrInvalidFormat.Error()))
			continue
		}

		if env.Type == TypeAuth {
			if state == stateAuthenticated {
				_ = conn.writeJSON(errorFrame("already authenticated"))
				continue
			}
			state = stateAuthenticating
			if !s.handleAuth(cc, data) {
				state = stateClosed
				conn.close()
				return
			}
			authTimer.Stop()
			state = stateAuthenticated
			continue
		}

		if state != stateAuthenticated {
			// Recoverable: the client may still retry auth within the grace period.
			_ = conn.writeJSON(errorFrame(ErrNotAuthenticated.Error()))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		res, err := s.router.dispatch(ctx, cc, env.Type, data)
		cancel()

		if err != nil {
			_ = conn.writeJSON(errorFrame(err.Error()))
			continue
		}
		if res != nil {
			_ = conn.writeJSON(res)
		}
	}
}

// handleAuth verifies the bearer token and registers the connection.
// Returns false when the connection must be closed.
func (s *WsServer) handleAuth(cc *ConnContext, raw []byte) bool {
	var req AuthRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Token == "" {
		_ = cc.conn.writeJSON(AuthErrorFrame{Type: TypeAuthError, Message: "token required"})
		return false
	}

	identity, err := s.verifier.Verify(req.Token)
	if err != nil {
		zap.L().Info("ws.auth_rejected", zap.String("conn_id", cc.ConnID), zap.Error(err))
		_ = cc.conn.writeJSON(AuthErrorFrame{Type: TypeAuthError, Message: "invalid token"})
		return false
	}

	cc.EmployeeID = identity.EmployeeID
	first := s.registry.Add(identity.EmployeeID, cc.conn)

	_ = cc.conn.writeJSON(AuthSuccessFrame{Type: TypeAuthSuccess, UserID: identity.EmployeeID})
	zap.L().Info("ws.authenticated",
		zap.String("employee_id", identity.EmployeeID),
		zap.String("conn_id", cc.ConnID),
	)

	// The offline to online transition must land before this reader can
	// reach teardown, which runs MarkOffline synchronously. Deferring it to
	// a goroutine lets a fast disconnect process offline first and strand
	// the entry as permanently online.
	if first {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		s.presence.MarkOnline(ctx, identity.EmployeeID)
		cancel()
	}

	// The store mirror is advisory; keep it off the reader loop.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := s.store.UpsertOnline(ctx, identity.EmployeeID, cc.ConnID, StatusOnline); err != nil {
			zap.L().Warn("ws.online_mirror", zap.Error(err))
		}
	}()
	return true
}

// teardown runs exactly once per connection, on reader exit.
func (s *WsServer) teardown(conn *clientConn) {
	conn.close()

	employeeID, last, ok := s.registry.Remove(conn.id)
	if !ok {
		return // never authenticated
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := s.store.DeleteOnline(ctx, conn.id); err != nil {
		zap.L().Warn("ws.online_mirror", zap.Error(err))
	}
	if last {
		s.presence.MarkOffline(ctx, employeeID)
	}
	zap.L().Info("ws.disconnected",
		zap.String("employee_id", employeeID),
		zap.String("conn_id", conn.id),
		zap.Bool("last", last),
	)
}

// ---------------------------------------------------------------------------
//  Handlers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(s.router, TypeMessage,
		func(ctx context.Context, cc *ConnContext, req MessageRequest) (any, error) {
			return s.bcast.SendMessage(ctx, cc.EmployeeID, req)
		},
	)

	Register(s.router, TypeTyping,
		func(ctx context.Context, cc *ConnContext, req TypingRequest) (any, error) {
			return nil, s.typing.SetTyping(ctx, req.RoomID, cc.EmployeeID, req.Typing)
		},
	)

	Register(s.router, TypeRead,
		func(ctx context.Context, cc *ConnContext, req ReadRequest) (any, error) {
			if req.RoomID == "" {
				return nil, ErrRoomRequired
			}
			if err := s.store.MarkRead(ctx, req.RoomID, cc.EmployeeID); err != nil {
				zap.L().Error("ws.mark_read", zap.String("room_id", req.RoomID), zap.Error(err))
				return nil, ErrPersistFailed
			}
			payload, err := json.Marshal(ReadFrame{
				Type:       TypeRead,
				RoomID:     req.RoomID,
				EmployeeID: cc.EmployeeID,
				Timestamp:  time.Now().UTC(),
			})
			if err != nil {
				return nil, err
			}
			return nil, s.bcast.Broadcast(ctx, req.RoomID, cc.EmployeeID, payload, nil)
		},
	)

	Register(s.router, TypeStatus,
		func(ctx context.Context, cc *ConnContext, req StatusRequest) (any, error) {
			return nil, s.presence.SetStatus(ctx, cc.EmployeeID, req.Status)
		},
	)

	Register(s.router, TypeReaction,
		func(ctx context.Context, cc *ConnContext, req ReactionRequest) (any, error) {
			action, roomID, err := s.store.ToggleReaction(ctx, req.MessageID, cc.EmployeeID, req.Emoji)
			if err != nil {
				if errors.Is(err, chat.ErrMessageNotFound) {
					return nil, err
				}
				zap.L().Error("ws.reaction", zap.Int64("message_id", req.MessageID), zap.Error(err))
				return nil, ErrPersistFailed
			}
			payload, err := json.Marshal(ReactionFrame{
				Type:       TypeReaction,
				MessageID:  req.MessageID,
				RoomID:     roomID,
				EmployeeID: cc.EmployeeID,
				Emoji:      req.Emoji,
				Action:     action,
			})
			if err != nil {
				return nil, err
			}
			// Reactions go to the whole room, the toggler included: the
			// authoritative added/removed outcome is decided here.
			return nil, s.bcast.Broadcast(ctx, roomID, "", payload, nil)
		},
	)

	Register(s.router, TypeJoinRoom,
		func(ctx context.Context, cc *ConnContext, req RoomRequest) (any, error) {
			if req.RoomID == "" {
				return nil, ErrRoomRequired
			}
			s.registry.JoinRoom(cc.ConnID, req.RoomID)
			return RoomAckFrame{Type: TypeJoinedRoom, RoomID: req.RoomID}, nil
		},
	)

	Register(s.router, TypeLeaveRoom,
		func(ctx context.Context, cc *ConnContext, req RoomRequest) (any, error) {
			if req.RoomID == "" {
				return nil, ErrRoomRequired
			}
			s.registry.LeaveRoom(cc.ConnID, req.RoomID)
			return RoomAckFrame{Type: TypeLeftRoom, RoomID: req.RoomID}, nil
		},
	)

	Register(s.router, TypePing,
		func(ctx context.Context, cc *ConnContext, req PongRequest) (any, error) {
			return PongFrame{Type: TypePong, Timestamp: time.Now().Unix()}, nil
		},
	)

	// pong only refreshes the activity clock, which the reader loop already did.
	Register(s.router, TypePong,
		func(ctx context.Context, cc *ConnContext, req PongRequest) (any, error) {
			return nil, nil
		},
	)
}
