// Package main provides the sync server binary: the websocket endpoint that
// keeps every participant of a game session consistent.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/openvtt/tabletop/internal/auth"
	"github.com/openvtt/tabletop/internal/config"
	"github.com/openvtt/tabletop/internal/game/position"
	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/game/turn"
	"github.com/openvtt/tabletop/internal/gameserver"
	"github.com/openvtt/tabletop/internal/observability"
	"github.com/openvtt/tabletop/internal/server"
	"github.com/openvtt/tabletop/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting sync server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("path", cfg.Server.Path),
	)

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	charRepo := postgres.NewCharacterRepository(pool.DB())
	gameRepo := postgres.NewGameRepository(pool.DB())
	msgRepo := postgres.NewMessageRepository(pool.DB())

	rooms := room.NewRegistry(cfg.Sync.OutboxBuffer)
	turns := turn.NewCoordinator()
	buffer := position.NewBuffer()
	batcher := position.NewBatcher(buffer, charRepo, cfg.Sync.FlushInterval, logger)

	authn := auth.NewAuthenticator(auth.NewVerifier(cfg.Auth.TokenSecret), gameRepo)

	turnH := gameserver.NewTurnHandler(rooms, turns, charRepo, logger)
	positionH := gameserver.NewPositionHandler(rooms, charRepo, buffer, logger)
	rosterH := gameserver.NewRosterHandler(rooms, charRepo, logger)
	chatH := gameserver.NewChatHandler(rooms, msgRepo, cfg.Sync.ChatMaxLength, logger)

	svc := gameserver.NewService(
		cfg.Server,
		cfg.Auth.GracePeriod,
		authn,
		rooms,
		turns,
		turnH,
		positionH,
		rosterH,
		chatH,
		logger,
	)

	// Stop order is the reverse of add order: the websocket endpoint drains
	// first, the batcher takes its final flush while the pool is still open,
	// and the pool closes last.
	lc := server.NewLifecycle(logger)
	lc.Add("database", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  pool.Close,
	})
	lc.Add("position-batcher", batcher)
	lc.Add("websocket", svc)

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
}
