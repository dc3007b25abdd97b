package gateway

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fabriq-online/fabriq/packet"
)

// Router subscribes to every packet channel and forwards frames to the
// sessions their target addresses. Malformed frames and internal packet
// types are dropped here; they never reach a client.
type Router struct {
	rdb redis.UniversalClient
	hub *SessionHub
	log zerolog.Logger
}

func NewRouter(rdb redis.UniversalClient, hub *SessionHub, log zerolog.Logger) *Router {
	return &Router{rdb: rdb, hub: hub, log: log.With().Str("component", "router").Logger()}
}

// Run consumes the packet pattern until the context is canceled.
func (r *Router) Run(ctx context.Context) error {
	sub := r.rdb.PSubscribe(ctx, packet.ChannelPattern())
	defer sub.Close()

	ch := sub.Channel()
	r.log.Info().Str("pattern", packet.ChannelPattern()).Msg("routing packets")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.route(msg.Channel, msg.Payload)
		}
	}
}

func (r *Router) route(channel, frame string) {
	in, err := packet.Deconstruct(frame, channel)
	if err != nil {
		r.log.Warn().Err(err).Str("channel", channel).Msg("dropping malformed frame")
		return
	}
	if !ClientVisible(in.Type) {
		return
	}
	r.hub.Deliver(in.Target, in.WorldID, []byte(frame))
}

// ClientVisible reports whether a packet type may be forwarded to client
// sessions. Internal simulation packets stay on the bus.
func ClientVisible(t packet.Type) bool {
	return t != packet.TypeBuildingFinished
}
