// Package ingest consumes client-originated packets from the pub/sub bus,
// validates them against durable state, mutates the world mirror and the
// durable store, and emits follow-up packets.
package ingest

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fabriq-online/fabriq/mirror"
	"github.com/fabriq-online/fabriq/packet"
)

// Mirror is the slice of the mirror service ingest handlers use.
type Mirror interface {
	World(ctx context.Context, worldID string) (*mirror.Document, error)
	Building(ctx context.Context, worldID string, buildingID int64) (*mirror.Building, error)
	InspectBuilding(ctx context.Context, worldID string, buildingID int64, sessionID string) (*mirror.Building, error)
	DoneInspecting(ctx context.Context, worldID string, buildingID int64, sessionID string) error
	RefreshBuilding(ctx context.Context, buildingID int64, isNew bool) (*mirror.Building, error)
	AddPlayer(ctx context.Context, worldID string, p mirror.Player) error
	RemoveResource(ctx context.Context, worldID string, resourceID int64) error
}

type handlerFunc func(ctx context.Context, in *packet.Inbound) error

// Service dispatches inbound packets by type. Handlers for the request
// types mutate state and answer; sync packets are funneled through the
// per-world FIFO queue so bulk entity updates apply in arrival order.
type Service struct {
	rdb      redis.UniversalClient
	mir      Mirror
	store    Store
	queue    *packet.Queue
	sink     EntitySink
	log      zerolog.Logger
	handlers map[packet.Type]handlerFunc
}

func NewService(rdb redis.UniversalClient, mir Mirror, store Store, queue *packet.Queue, sink EntitySink, log zerolog.Logger) *Service {
	s := &Service{
		rdb:   rdb,
		mir:   mir,
		store: store,
		queue: queue,
		sink:  sink,
		log:   log.With().Str("component", "ingest").Logger(),
	}
	s.handlers = map[packet.Type]handlerFunc{
		packet.TypeRequestJoin:              s.handleRequestJoin,
		packet.TypeRequestPlaceBuilding:     s.handleRequestPlaceBuilding,
		packet.TypeRequestWorldBuilding:     s.handleRequestWorldBuilding,
		packet.TypeInspectBuilding:          s.handleInspectBuilding,
		packet.TypeDoneInspectingBuilding:   s.handleDoneInspecting,
		packet.TypeRequestMoveInventoryItem: s.handleMoveInventoryItem,
		packet.TypeRequestDestroyResource:   s.handleDestroyResource,
		packet.TypeSyncEntity:               s.handleSyncEntity,
	}
	return s
}

// Run consumes the packet pattern until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	sub := s.rdb.PSubscribe(ctx, packet.ChannelPattern())
	defer sub.Close()

	ch := sub.Channel()
	s.log.Info().Str("pattern", packet.ChannelPattern()).Msg("ingesting packets")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			in, err := packet.Deconstruct(msg.Payload, msg.Channel)
			if err != nil {
				s.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed frame")
				continue
			}
			s.Dispatch(ctx, in)
		}
	}
}

// Dispatch runs the handler for one inbound packet. Handler errors and
// panics are logged and contained: one world's fault never takes down the
// process.
func (s *Service) Dispatch(ctx context.Context, in *packet.Inbound) {
	handler, ok := s.handlers[in.Type]
	if !ok {
		// The bus also carries server-emitted packets; not having a handler
		// is the normal case for those.
		s.log.Debug().Str("type", string(in.Type)).Msg("no handler for packet type")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).
				Str("type", string(in.Type)).Str("world", in.WorldID).
				Msg("handler panicked")
		}
	}()
	if err := handler(ctx, in); err != nil {
		s.log.Error().Err(err).
			Str("type", string(in.Type)).Str("world", in.WorldID).
			Msg("handler failed")
	}
}

func (s *Service) builder() *packet.Builder {
	return packet.NewBuilder(s.rdb)
}
