package mirror

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingBuildingID is returned when an update patch does not name the
	// building it applies to.
	ErrMissingBuildingID = eris.New("building update requires a building id")
)

// Service owns the world mirror: it opens and closes world documents, serves
// building snapshots, applies narrow updates, and fans changed buildings out
// to their inspectors.
type Service struct {
	store DocumentStore
	src   Hydrator
	pub   Publisher
	log   zerolog.Logger
}

func NewService(store DocumentStore, src Hydrator, pub Publisher, log zerolog.Logger) *Service {
	return &Service{store: store, src: src, pub: pub, log: log.With().Str("component", "mirror").Logger()}
}

// OpenWorld makes a world's document available. Re-opening an open world
// hydrates again and overwrites the document, so a restarted process picks up
// durable-store changes; tick-local progress starts over from zero.
func (s *Service) OpenWorld(ctx context.Context, worldID string) (*Document, error) {
	doc, err := s.src.World(ctx, worldID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, eris.Errorf("world %s does not exist", worldID)
	}
	if err := s.store.PutWorld(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info().Str("world", worldID).
		Int("buildings", len(doc.Buildings)).
		Int("resources", len(doc.Resources)).
		Msg("opened world")
	return doc, nil
}

// CloseWorld drops a world's document. Tick-local progress is discarded; the
// durable store remains the source of truth for the next open.
func (s *Service) CloseWorld(ctx context.Context, worldID string) error {
	if err := s.store.DeleteWorld(ctx, worldID); err != nil {
		return err
	}
	s.log.Info().Str("world", worldID).Msg("closed world")
	return nil
}

// World returns an open world's document, or nil.
func (s *Service) World(ctx context.Context, worldID string) (*Document, error) {
	return s.store.World(ctx, worldID)
}

// Building returns a building snapshot, or nil when no open world holds it.
// Pass AnyWorld to search every open world.
func (s *Service) Building(ctx context.Context, worldID string, buildingID int64) (*Building, error) {
	return s.store.Building(ctx, worldID, buildingID)
}

// BuildingsByType returns every building of one type in a world.
func (s *Service) BuildingsByType(ctx context.Context, worldID string, typeID int64) ([]Building, error) {
	return s.store.BuildingsByType(ctx, worldID, typeID)
}

// UpdateBuilding shallow-merges a patch onto a mirrored building and fans the
// result out to the building's inspectors. Patching a building no open world
// holds is logged and dropped, not failed: the mirror may have been closed
// between the caller's read and its write.
func (s *Service) UpdateBuilding(ctx context.Context, worldID string, patch BuildingPatch) (*Building, error) {
	if patch.ID == 0 {
		return nil, ErrMissingBuildingID
	}
	current, err := s.store.Building(ctx, worldID, patch.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		s.log.Warn().Int64("building", patch.ID).Str("world", worldID).
			Msg("dropping update for building missing from mirror")
		return nil, nil
	}
	merged := merge(*current, patch)
	if err := s.store.PutBuilding(ctx, worldID, merged); err != nil {
		return nil, err
	}
	s.fanOut(ctx, worldID, &merged)
	return &merged, nil
}

// InspectBuilding subscribes a session to a building's updates and sends it
// the current snapshot. A session already inspecting is not added twice.
func (s *Service) InspectBuilding(ctx context.Context, worldID string, buildingID int64, sessionID string) (*Building, error) {
	b, err := s.store.Building(ctx, worldID, buildingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		s.log.Warn().Int64("building", buildingID).Str("session", sessionID).
			Msg("inspect request for building missing from mirror")
		return nil, nil
	}
	if !containsInspector(b.Inspectors, sessionID) {
		b.Inspectors = append(b.Inspectors, sessionID)
		if err := s.store.PutBuilding(ctx, worldID, *b); err != nil {
			return nil, err
		}
	}
	if err := s.pub.PublishBuilding(ctx, worldID, sessionID, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DoneInspecting unsubscribes a session from a building. Unsubscribing a
// session that is not inspecting is a no-op.
func (s *Service) DoneInspecting(ctx context.Context, worldID string, buildingID int64, sessionID string) error {
	b, err := s.store.Building(ctx, worldID, buildingID)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	kept := b.Inspectors[:0]
	for _, id := range b.Inspectors {
		if id != sessionID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(b.Inspectors) {
		return nil
	}
	b.Inspectors = kept
	return s.store.PutBuilding(ctx, worldID, *b)
}

// RefreshBuilding reloads one building from the durable store into the
// mirror. isNew appends the snapshot; otherwise the existing entry is
// replaced, keeping its inspector list. Inspectors are then notified.
func (s *Service) RefreshBuilding(ctx context.Context, buildingID int64, isNew bool) (*Building, error) {
	worldID, fresh, err := s.src.Building(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		s.log.Warn().Int64("building", buildingID).Msg("refresh requested for unknown building")
		return nil, nil
	}

	if isNew {
		if err := s.store.AppendBuilding(ctx, worldID, *fresh); err != nil {
			return nil, err
		}
	} else {
		current, err := s.store.Building(ctx, worldID, buildingID)
		if err != nil {
			return nil, err
		}
		if current != nil {
			fresh.Inspectors = current.Inspectors
			fresh.CurrentProcessingTicks = current.CurrentProcessingTicks
		}
		if err := s.store.PutBuilding(ctx, worldID, *fresh); err != nil {
			return nil, err
		}
	}
	s.fanOut(ctx, worldID, fresh)
	return fresh, nil
}

// RemoveBuilding drops a building from the mirror.
func (s *Service) RemoveBuilding(ctx context.Context, worldID string, buildingID int64) error {
	return s.store.RemoveBuilding(ctx, worldID, buildingID)
}

// AddPlayer records a connected player in the world document. Player entries
// are unique by id: re-adding replaces the existing entry.
func (s *Service) AddPlayer(ctx context.Context, worldID string, p Player) error {
	if err := s.store.RemovePlayer(ctx, worldID, p.ID); err != nil {
		return err
	}
	return s.store.AppendPlayer(ctx, worldID, p)
}

// RemovePlayer drops a player from the world document.
func (s *Service) RemovePlayer(ctx context.Context, worldID, playerID string) error {
	return s.store.RemovePlayer(ctx, worldID, playerID)
}

// Players returns a world's connected players.
func (s *Service) Players(ctx context.Context, worldID string) ([]Player, error) {
	return s.store.Players(ctx, worldID)
}

// PruneSession removes a disconnected session from every inspectors list in
// the world, so stale session ids never receive fan-out.
func (s *Service) PruneSession(ctx context.Context, worldID, sessionID string) error {
	doc, err := s.store.World(ctx, worldID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	for i := range doc.Buildings {
		if !containsInspector(doc.Buildings[i].Inspectors, sessionID) {
			continue
		}
		if err := s.DoneInspecting(ctx, worldID, doc.Buildings[i].ID, sessionID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveResource drops a depleted resource from the world document.
func (s *Service) RemoveResource(ctx context.Context, worldID string, resourceID int64) error {
	return s.store.RemoveResource(ctx, worldID, resourceID)
}

// fanOut sends one targeted snapshot to each inspector. Delivery failures are
// logged per session and do not stop the remaining sends.
func (s *Service) fanOut(ctx context.Context, worldID string, b *Building) {
	for _, session := range b.Inspectors {
		if err := s.pub.PublishBuilding(ctx, worldID, session, b); err != nil {
			s.log.Error().Err(err).
				Int64("building", b.ID).
				Str("session", session).
				Msg("failed to notify inspector")
		}
	}
}

func containsInspector(inspectors []string, sessionID string) bool {
	for _, id := range inspectors {
		if id == sessionID {
			return true
		}
	}
	return false
}
