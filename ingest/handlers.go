package ingest

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/fabriq-online/fabriq/durable"
	"github.com/fabriq-online/fabriq/mirror"
	"github.com/fabriq-online/fabriq/packet"
	"github.com/fabriq-online/fabriq/worldgen"
)

// sessionOf picks the session id a response should target.
func sessionOf(in *packet.Inbound) string {
	if in.Sender.SocketID != "" {
		return in.Sender.SocketID
	}
	return in.Sender.ID
}

func (s *Service) handleRequestJoin(ctx context.Context, in *packet.Inbound) error {
	data, err := packet.DecodeData[packet.RequestJoinData](in)
	if err != nil {
		return err
	}

	spawn := worldgen.Size / 2
	player := mirror.Player{
		ID:        in.Sender.ID,
		Name:      in.Sender.Name,
		X:         spawn,
		Y:         spawn,
		SocketID:  data.SocketID,
		Inventory: []mirror.InventorySlot{},
	}
	if player.ID == "" {
		player.ID = data.SocketID
	}
	if err := s.mir.AddPlayer(ctx, in.WorldID, player); err != nil {
		return err
	}

	joined, err := s.builder().
		Channel(in.WorldID).
		Type(packet.TypeJoin).
		Target(data.SocketID).
		Data(packet.JoinData{ID: player.ID, Name: player.Name, Position: [2]int{spawn, spawn}, SocketID: data.SocketID}).
		Build()
	if err != nil {
		return err
	}
	if err := joined.Publish(ctx); err != nil {
		return err
	}

	announce, err := s.builder().
		Channel(in.WorldID).
		Type(packet.TypeNewPlayer).
		Data(player).
		Build()
	if err != nil {
		return err
	}
	return announce.Publish(ctx)
}

func (s *Service) handleRequestPlaceBuilding(ctx context.Context, in *packet.Inbound) error {
	data, err := packet.DecodeData[packet.RequestPlaceBuildingData](in)
	if err != nil {
		return err
	}

	typ, err := s.store.FindTypeByItem(ctx, data.BuildingItemID)
	if err != nil {
		return err
	}
	if typ == nil {
		s.log.Warn().Int64("item", data.BuildingItemID).Str("world", in.WorldID).
			Msg("item places no building, dropping request")
		return nil
	}

	var resourceID *int64
	if len(typ.PlacedOnItemIDs) > 0 {
		res, err := s.resourceAt(ctx, in.WorldID, data.X, data.Y, typ.PlacedOnItemIDs)
		if err != nil {
			return err
		}
		if res == nil {
			s.log.Warn().Int64("building_type", typ.ID).
				Int("x", data.X).Int("y", data.Y).
				Msg("no matching resource under placement, dropping request")
			return nil
		}
		resourceID = &res.ID
	}

	created, err := s.store.CreateBuilding(ctx, durable.NewBuilding{
		WorldID:         in.WorldID,
		BuildingTypeID:  typ.ID,
		X:               data.X,
		Y:               data.Y,
		Rotation:        data.Rotation,
		WorldResourceID: resourceID,
	})
	if err != nil {
		return err
	}

	snap, err := s.mir.RefreshBuilding(ctx, created.ID, true)
	if err != nil {
		return err
	}

	placed, err := s.builder().
		Channel(in.WorldID).
		Type(packet.TypePlaceBuilding).
		Sender(in.Sender).
		Data(snap).
		Build()
	if err != nil {
		return err
	}
	return placed.Publish(ctx)
}

// resourceAt finds the mirrored resource at a tile whose item is one the
// building type can sit on.
func (s *Service) resourceAt(ctx context.Context, worldID string, x, y int, itemIDs []int64) (*mirror.Resource, error) {
	doc, err := s.mir.World(ctx, worldID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	for i := range doc.Resources {
		r := &doc.Resources[i]
		if r.X != x || r.Y != y {
			continue
		}
		for _, id := range itemIDs {
			if r.ItemID == id {
				return r, nil
			}
		}
	}
	return nil, nil
}

func (s *Service) handleRequestWorldBuilding(ctx context.Context, in *packet.Inbound) error {
	data, err := packet.DecodeData[packet.RequestWorldBuildingData](in)
	if err != nil {
		return err
	}
	_, err = s.mir.InspectBuilding(ctx, in.WorldID, data.BuildingID, sessionOf(in))
	return err
}

func (s *Service) handleInspectBuilding(ctx context.Context, in *packet.Inbound) error {
	data, err := packet.DecodeData[packet.InspectBuildingData](in)
	if err != nil {
		return err
	}
	_, err = s.mir.InspectBuilding(ctx, in.WorldID, data.WorldBuildingID, sessionOf(in))
	return err
}

func (s *Service) handleDoneInspecting(ctx context.Context, in *packet.Inbound) error {
	data, err := packet.DecodeData[packet.InspectBuildingData](in)
	if err != nil {
		return err
	}
	return s.mir.DoneInspecting(ctx, in.WorldID, data.WorldBuildingID, sessionOf(in))
}

func (s *Service) handleMoveInventoryItem(ctx context.Context, in *packet.Inbound) error {
	data, err := packet.DecodeData[packet.RequestMoveInventoryItemData](in)
	if err != nil {
		return err
	}
	if data.Quantity <= 0 {
		s.log.Warn().Int64("quantity", data.Quantity).Msg("dropping non-positive inventory move")
		return nil
	}

	// Both building ends must exist before anything moves.
	for _, end := range []struct {
		id   int64
		kind string
	}{{data.FromID, data.FromKind}, {data.ToID, data.ToKind}} {
		if end.kind != durable.OwnerBuilding {
			continue
		}
		b, err := s.store.FindBuilding(ctx, end.id)
		if err != nil {
			return err
		}
		if b == nil {
			s.log.Warn().Int64("building", end.id).
				Msg("cannot move items: building does not exist")
			return nil
		}
	}

	if err := s.store.MoveInventory(ctx, data.FromID, data.FromKind, data.ToID, data.ToKind, data.ItemID, data.Quantity); err != nil {
		return err
	}

	playerInvolved := false
	for _, end := range []struct {
		id   int64
		kind string
	}{{data.FromID, data.FromKind}, {data.ToID, data.ToKind}} {
		if end.kind == durable.OwnerBuilding {
			if _, err := s.mir.RefreshBuilding(ctx, end.id, false); err != nil {
				return err
			}
		} else {
			playerInvolved = true
		}
	}
	if !playerInvolved {
		return nil
	}

	// Tell the mover's client its inventory changed so it can re-read.
	pkt, err := s.builder().
		Channel(in.WorldID).
		Type(packet.TypePlayerInventory).
		Target(sessionOf(in)).
		Data(data).
		Build()
	if err != nil {
		return err
	}
	return pkt.Publish(ctx)
}

func (s *Service) handleDestroyResource(ctx context.Context, in *packet.Inbound) error {
	data, err := packet.DecodeData[packet.RequestDestroyResourceData](in)
	if err != nil {
		return err
	}

	id := int64(data.ResourceEntityID)
	if err := s.store.DeleteResource(ctx, id); err != nil {
		if eris.Is(err, durable.ErrNotFound) {
			s.log.Warn().Int64("resource", id).Msg("cannot destroy resource that does not exist")
			return nil
		}
		return err
	}
	if err := s.mir.RemoveResource(ctx, in.WorldID, id); err != nil {
		return err
	}

	pkt, err := s.builder().
		Channel(in.WorldID).
		Type(packet.TypeRemoveEntity).
		Data(packet.RemoveEntityData{EntityIDs: []uint32{data.ResourceEntityID}}).
		Build()
	if err != nil {
		return err
	}
	return pkt.Publish(ctx)
}

// handleSyncEntity funnels bulk entity updates through the world's FIFO
// queue, then drains the backlog in order.
func (s *Service) handleSyncEntity(ctx context.Context, in *packet.Inbound) error {
	queued := packet.Queued{Type: in.Type, Target: in.Target, Sender: in.Sender, Data: in.Data}
	if err := s.queue.Enqueue(ctx, in.WorldID, queued); err != nil {
		return err
	}
	return s.DrainSync(ctx, in.WorldID)
}

// DrainSync applies the world's queued sync packets in arrival order. A bad
// entry is logged and skipped; the rest of the backlog still applies.
func (s *Service) DrainSync(ctx context.Context, worldID string) error {
	backlog, err := s.queue.DequeueAll(ctx, worldID)
	if err != nil {
		return err
	}
	for _, q := range backlog {
		if q.Type != packet.TypeSyncEntity {
			s.log.Warn().Str("type", string(q.Type)).Msg("non-sync packet on sync queue, skipping")
			continue
		}
		var data packet.SyncEntityData
		if err := json.Unmarshal(q.Data, &data); err != nil {
			s.log.Warn().Err(err).Msg("undecodable sync payload, skipping")
			continue
		}
		if err := s.sink.ApplySync(worldID, data); err != nil {
			s.log.Warn().Err(err).Msg("sync payload rejected")
		}
	}
	return nil
}
