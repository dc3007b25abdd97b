// ingestd consumes client-originated packets: it validates them against the
// durable store, mutates the world mirror, and emits follow-up packets.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/fabriq-online/fabriq"
	"github.com/fabriq-online/fabriq/durable"
	"github.com/fabriq-online/fabriq/ecs"
	"github.com/fabriq-online/fabriq/ingest"
	"github.com/fabriq-online/fabriq/mirror"
	"github.com/fabriq-online/fabriq/packet"
)

// entityCapacity sizes the sync-packet entity store.
const entityCapacity = 512

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

	docs, err := mirror.NewRedisStore(ctx, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open document store")
	}
	mir := mirror.NewService(docs, mirror.NewDurableHydrator(db), mirror.NewPacketPublisher(rdb), log)

	svc := ingest.NewService(
		rdb,
		mir,
		ingest.NewDurableStore(db),
		packet.NewQueue(rdb),
		ingest.NewStoreSink(ecs.NewStore(entityCapacity), log),
		log,
	)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("ingest loop failed")
	}
}
