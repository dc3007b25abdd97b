package gateway

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/fabriq-online/fabriq/packet"
)

// Presence is the slice of the mirror the gateway owns: player entries and
// inspector lists, pruned when a session disconnects.
type Presence interface {
	RemovePlayer(ctx context.Context, worldID, playerID string) error
	PruneSession(ctx context.Context, worldID, sessionID string) error
}

// Server accepts client websockets, pins each to a world, and bridges frames
// between the socket and the world's packet channel.
type Server struct {
	app      *fiber.App
	hub      *SessionHub
	rdb      redis.UniversalClient
	presence Presence
	log      zerolog.Logger
}

func NewServer(rdb redis.UniversalClient, hub *SessionHub, presence Presence, log zerolog.Logger) *Server {
	s := &Server{
		hub:      hub,
		rdb:      rdb,
		presence: presence,
		log:      log.With().Str("component", "gateway").Logger(),
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:world", websocket.New(s.handleSession))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	s.app = app
	return s
}

// Listen serves until Shutdown.
func (s *Server) Listen(addr string) error {
	return eris.Wrap(s.app.Listen(addr), "gateway listen failed")
}

func (s *Server) Shutdown() error {
	return eris.Wrap(s.app.Shutdown(), "gateway shutdown failed")
}

// handleSession runs for the lifetime of one client socket. Inbound frames
// are validated and republished on the world's channel; the hub writes
// outbound frames back. The error returns fiber's websocket wrapper expects
// are swallowed, matching its handler signature.
func (s *Server) handleSession(conn *websocket.Conn) {
	worldID := conn.Params("world")
	sessionID := uuid.NewString()
	log := s.log.With().Str("session", sessionID).Str("world", worldID).Logger()

	s.hub.Register(sessionID, worldID, conn)
	log.Info().Msg("session connected")

	ctx := context.Background()
	channel := packet.ChannelFor(worldID)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(eris.Wrap(err, "read")).Msg("session read ended")
			break
		}
		frame := string(msg)
		if _, err := packet.Deconstruct(frame, channel); err != nil {
			log.Warn().Err(err).Msg("dropping malformed client frame")
			continue
		}
		if err := s.rdb.Publish(ctx, channel, frame).Err(); err != nil {
			log.Error().Err(eris.Wrap(err, "publish client frame")).Msg("failed to forward frame")
		}
	}

	s.disconnect(ctx, worldID, sessionID, log)
}

// disconnect tears a session down: the hub entry, the mirror's player and
// inspector records, and a disconnect packet so other players see it leave.
func (s *Server) disconnect(ctx context.Context, worldID, sessionID string, log zerolog.Logger) {
	s.hub.Unregister(sessionID)
	if err := s.presence.RemovePlayer(ctx, worldID, sessionID); err != nil {
		log.Error().Err(err).Msg("failed to remove player entry")
	}
	if err := s.presence.PruneSession(ctx, worldID, sessionID); err != nil {
		log.Error().Err(err).Msg("failed to prune inspector entries")
	}

	pkt, err := packet.NewBuilder(s.rdb).
		Channel(worldID).
		Type(packet.TypeDisconnect).
		Sender(packet.Sender{ID: sessionID, SocketID: sessionID, WorldID: worldID}).
		Data(packet.DisconnectData{}).
		Build()
	if err != nil {
		log.Error().Err(err).Msg("failed to build disconnect packet")
		return
	}
	if err := pkt.Publish(ctx); err != nil {
		log.Error().Err(err).Msg("failed to publish disconnect packet")
	}
	log.Info().Msg("session disconnected")
}
