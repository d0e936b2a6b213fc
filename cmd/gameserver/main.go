// Package main provides the arena server binary: config, logging, game
// wiring, and the websocket listener under lifecycle management.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/broadcast"
	"github.com/cory-johannsen/arena/internal/config"
	"github.com/cory-johannsen/arena/internal/game/reaper"
	"github.com/cory-johannsen/arena/internal/game/registry"
	"github.com/cory-johannsen/arena/internal/game/rng"
	"github.com/cory-johannsen/arena/internal/game/session"
	"github.com/cory-johannsen/arena/internal/observability"
	"github.com/cory-johannsen/arena/internal/server"
	"github.com/cory-johannsen/arena/internal/transport/ws"
)

func main() {
	start := time.Now()

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

	logger.Info("starting arena server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_players", cfg.Game.MaxPlayers),
		zap.Duration("bullet_ttl", cfg.Game.BulletTTL),
	)

	random := rng.NewCryptoSource()
	hub := broadcast.NewHub(logger)
	rooms := registry.New()
	bulletReaper := reaper.New(cfg.Game.BulletTTL, logger)

	rules := session.Rules{
		MaxPlayers:   cfg.Game.MaxPlayers,
		BulletSpeed:  cfg.Game.BulletSpeed,
		BulletDamage: cfg.Game.BulletDamage,
		CodeLength:   cfg.Game.RoomCodeLength,
		RespawnMinX:  cfg.Game.RespawnMinX,
		RespawnMaxX:  cfg.Game.RespawnMaxX,
		RespawnMinY:  cfg.Game.RespawnMinY,
		RespawnMaxY:  cfg.Game.RespawnMaxY,
	}
	coordinator := session.NewCoordinator(rooms, hub, bulletReaper, random, rules, logger)

	wsServer := ws.NewServer(cfg.Server, hub, coordinator, logger)

	// Hooks stop in reverse order: the listener drains before the reaper's
	// timers are cancelled.
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add(server.Hook{Name: "bullet-reaper", Stop: bulletReaper.Stop})
	lifecycle.Add(server.Hook{
		Name:  "websocket",
		Start: wsServer.ListenAndServe,
		Stop:  wsServer.Stop,
	})

	logger.Info("arena server wired",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
}
