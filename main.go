package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"roomchat/internal/config"
	"roomchat/internal/database/db_client"
	"roomchat/internal/database/migrations"
	"roomchat/internal/http/http_server"
	"roomchat/internal/http/roomhandler"
	"roomchat/internal/lifecycle"
	"roomchat/internal/presence"
	"roomchat/internal/ratelimit"
	"roomchat/internal/redis/redis_client"
	"roomchat/internal/services/room"
	"roomchat/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
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
	var roomService room.IRoomService

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully",
		zap.Uint16("http_port", cfg.HttpServerPort),
		zap.Duration("teardown_grace", cfg.TeardownGrace),
	)

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (room cache); the service falls back to Postgres without it
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Warn("Redis unavailable, room cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		Log.Debug("Redis client created successfully")
	}

	// 4. Postgres db client + schema
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser,
		cfg.PostgresPassword, cfg.PostgresDb, cfg.PostgresSSLMode)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	if err := migrations.Run(ctx, pgDb); err != nil {
		Log.Fatal("pg-migrate", zap.Error(err))
	}

	// 5. Room directory + presence
	roomService = room.NewRoomService(pgDb, redisClient, cfg.RoomCacheTTL)
	registry := presence.NewRegistry()

	// 6. Broadcast channels + lifecycle
	lobby := ws.NewLobby()
	coordinator := lifecycle.New(roomService, lobby, cfg.TeardownGrace)
	chat := ws.NewChatChannel(registry, roomService, coordinator)
	gate := room.NewGate(roomService, registry)

	// 7. Background: idle rate-limit bucket eviction
	limiter := ratelimit.New(cfg.ChatRatePerSec, cfg.ChatRateBurst)
	go limiter.Run(ctx)

	// 8. Initialize the WS server
	wsSrv := ws.NewWsServer(roomService, lobby, chat, limiter, cfg.WsSendBuffer)

	// 9. HTTP + WS server
	rooms := roomhandler.New(roomService, gate, chat, lobby, coordinator, limiter)
	httpServer := http_server.NewHttpServer(ctx, http_server.Options{
		ListenPort:    cfg.HttpServerPort,
		SessionSecret: cfg.SessionSecret,
		CORSAllow:     cfg.CORSAllow,
	}, wsSrv, rooms)

	go func() {
		<-ctx.Done()
		Log.Info("shutdown requested")
		_ = httpServer.Dispose()
	}()

	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}

	// Let scheduled removeRoom announcements fire before exiting.
	coordinator.Wait()
	Log.Info("bye")
}
