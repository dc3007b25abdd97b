// routerd terminates client websockets and multiplexes packet frames between
// the pub/sub bus and connected sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/fabriq-online/fabriq"
	"github.com/fabriq-online/fabriq/gateway"
	"github.com/fabriq-online/fabriq/mirror"
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

	docs, err := mirror.NewRedisStore(ctx, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open document store")
	}
	// The router owns presence only; hydration and fan-out happen in the
	// other daemons.
	mir := mirror.NewService(docs, nil, mirror.NewPacketPublisher(rdb), log)

	hub := gateway.NewSessionHub(log)
	srv := gateway.NewServer(rdb, hub, mir, log)
	router := gateway.NewRouter(rdb, hub, log)

	go func() {
		if err := router.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("packet routing stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			log.Error().Err(err).Msg("gateway shutdown failed")
		}
		hub.Shutdown()
	}()

	if err := srv.Listen(":" + cfg.GatewayPort); err != nil {
		log.Fatal().Err(err).Msg("gateway exited")
	}
}
