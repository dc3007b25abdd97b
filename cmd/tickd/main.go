// tickd runs one world's production loop: it opens the world mirror, then
// evaluates building processing on a fixed tick interval.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabriq-online/fabriq"
	"github.com/fabriq-online/fabriq/durable"
	"github.com/fabriq-online/fabriq/mirror"
	"github.com/fabriq-online/fabriq/production"
)

func main() {
	configPath := flag.String("config", os.Getenv("FABRIQ_CONFIG"), "path to TOML config")
	flag.Parse()

	cfg, err := fabriq.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}
	log := fabriq.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := fabriq.NewRedis(cfg)
	defer rdb.Close()

	db, err := durable.New(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to durable store")
	}
	defer db.Close()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	docs, err := mirror.NewRedisStore(ctx, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open document store")
	}
	mir := mirror.NewService(docs, mirror.NewDurableHydrator(db), mirror.NewPacketPublisher(rdb), log)
	if _, err := mir.OpenWorld(ctx, cfg.WorldID); err != nil {
		log.Fatal().Err(err).Str("world", cfg.WorldID).Msg("failed to open world")
	}
	defer func() {
		if err := mir.CloseWorld(context.Background(), cfg.WorldID); err != nil {
			log.Error().Err(err).Msg("failed to close world")
		}
	}()

	engine := production.NewEngine(
		cfg.WorldID,
		mir,
		production.NewCatalog(db),
		durable.NewInventoryRepo(db),
		db,
		production.NewPacketNotifier(rdb),
		log,
		cfg.TickParallelism,
	)
	loop := production.NewLoop(engine, time.Duration(cfg.TickIntervalMS)*time.Millisecond, log)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("tick loop failed")
	}
}
