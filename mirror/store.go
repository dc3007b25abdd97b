package mirror

import "context"

// AnyWorld can be passed as the world id to building lookups to search every
// open world for the building.
const AnyWorld = ""

// DocumentStore is the storage backend the mirror service reads and writes
// world documents through.
type DocumentStore interface {
	// PutWorld writes a full world document, replacing any existing one.
	PutWorld(ctx context.Context, doc *Document) error
	// World returns a world document, or nil when the world is not open.
	World(ctx context.Context, worldID string) (*Document, error)
	// DeleteWorld removes a world document. Removing an absent world is a
	// no-op.
	DeleteWorld(ctx context.Context, worldID string) error

	// Building returns a building snapshot, or nil when no open world holds
	// it. Pass AnyWorld to search across worlds.
	Building(ctx context.Context, worldID string, buildingID int64) (*Building, error)
	// BuildingsByType returns every building of one type in a world, in
	// document order.
	BuildingsByType(ctx context.Context, worldID string, typeID int64) ([]Building, error)
	// PutBuilding replaces one building snapshot in place.
	PutBuilding(ctx context.Context, worldID string, b Building) error
	// AppendBuilding appends a new building to a world's building list.
	AppendBuilding(ctx context.Context, worldID string, b Building) error
	// RemoveBuilding deletes one building from a world's building list.
	RemoveBuilding(ctx context.Context, worldID string, buildingID int64) error

	// AppendPlayer adds a player entry to a world.
	AppendPlayer(ctx context.Context, worldID string, p Player) error
	// RemovePlayer deletes a player entry. Removing an absent player is a
	// no-op.
	RemovePlayer(ctx context.Context, worldID string, playerID string) error
	// Players returns a world's connected players.
	Players(ctx context.Context, worldID string) ([]Player, error)

	// RemoveResource deletes one resource deposit from a world.
	RemoveResource(ctx context.Context, worldID string, resourceID int64) error
}
