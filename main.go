package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pontochat/internal/auth"
	"pontochat/internal/config"
	"pontochat/internal/database/db_client"
	"pontochat/internal/http/http_server"
	"pontochat/internal/pushqueue"
	"pontochat/internal/redis/redis_client"
	"pontochat/internal/services/chat"
	"pontochat/internal/syncpresence"
	"pontochat/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (broadcast bus + push-job stream)
	redisClient, err = redis_client.NewRedisClient(cfg.RedisChatHost, int(cfg.RedisChatPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. Collaborators: store, token verifier, push queue
	store := chat.NewChatStore(pgDb)
	verifier := auth.NewJwtVerifier(cfg.JwtSecret)
	pushQueue := pushqueue.NewPushQueue(redisClient)

	// 6. Messaging core
	registry := ws.NewRegistry()
	bus := ws.NewBus(redisClient)
	broadcaster := ws.NewBroadcaster(registry, store, pushQueue, bus, cfg.MemberCacheTTL)
	presence := ws.NewPresenceTracker(store, broadcaster, cfg.MemberCacheTTL)
	typing := ws.NewTypingManager(broadcaster, cfg.TypingSweepEvery, cfg.TypingStaleAfter)
	heartbeat := ws.NewHeartbeatMonitor(registry, cfg.HeartbeatInterval)

	// 7. Background: cross-process fan-out + timers + presence mirror
	go ws.RunFanout(ctx, redisClient, bus, broadcaster)
	go typing.Run(ctx)
	go heartbeat.Run(ctx)
	syncpresence.Run(ctx, registry, presence, store)

	// 8. Initialize the WS server
	wsSrv := ws.NewWsServer(registry, broadcaster, presence, typing, verifier, store, cfg.AuthGracePeriod)

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
