// Package mirror maintains the shared world document realtime processes read
// and write: a fast mutable snapshot of each world's players, buildings, and
// resources, kept in the document store and rehydrated from the durable store
// on demand.
package mirror

import (
	"github.com/fabriq-online/fabriq/worldgen"
)

// TypeInfo is the slice of a building's canonical definition the realtime
// processes need per tick. It is a copy; the durable store owns the original.
type TypeInfo struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	ProcessingTicks  int64   `json:"processing_ticks"`
	OutputItemID     *int64  `json:"output_item_id"`
	OutputQuantity   int64   `json:"output_quantity"`
	TransferPerCycle int64   `json:"inventory_transfer_quantity_per_cycle"`
	PlacedOnItemIDs  []int64 `json:"items_to_be_placed_on"`
}

// InventorySlot is one slot of a mirrored inventory.
type InventorySlot struct {
	Slot     int    `json:"slot"`
	ItemID   *int64 `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

// Building is the mirror snapshot of one placed building.
type Building struct {
	ID                     int64           `json:"id"`
	Type                   TypeInfo        `json:"building"`
	X                      int             `json:"x"`
	Y                      int             `json:"y"`
	Rotation               int             `json:"rotation"`
	Active                 bool            `json:"active"`
	WorldResourceID        *int64          `json:"world_resource_id"`
	Inventory              []InventorySlot `json:"world_building_inventory"`
	OutputBuildingID       *int64          `json:"output_building_id"`
	OutputOffsetX          int             `json:"output_offset_x"`
	OutputOffsetY          int             `json:"output_offset_y"`
	CurrentProcessingTicks int64           `json:"current_processing_ticks"`
	Inspectors             []string        `json:"inspectors"`
}

// Player is a connected player's mirror entry, owned by the routing process.
type Player struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	X         int             `json:"x"`
	Y         int             `json:"y"`
	SocketID  string          `json:"socket_id"`
	Inventory []InventorySlot `json:"inventory"`
}

// Resource is a mirrored resource deposit.
type Resource struct {
	ID       int64  `json:"id"`
	ItemID   int64  `json:"item_id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Quantity int64  `json:"quantity"`
	WorldID  string `json:"world_id"`
}

// Document is one world's full mirror.
type Document struct {
	ID        string             `json:"id"`
	Players   []Player           `json:"players"`
	Buildings []Building         `json:"buildings"`
	Resources []Resource         `json:"resources"`
	HeightMap worldgen.HeightMap `json:"height_map"`
}

// BuildingPatch is the narrow update shape writers are allowed to apply to a
// mirrored building. Nil fields are preserved on merge; set fields replace
// the snapshot's value wholesale (shallow merge).
type BuildingPatch struct {
	ID                     int64
	Active                 *bool
	Rotation               *int
	CurrentProcessingTicks *int64
	Inventory              []InventorySlot
	OutputBuildingID       *int64
	OutputOffsetX          *int
	OutputOffsetY          *int
}

// merge applies the patch onto a copy of the snapshot.
func merge(b Building, patch BuildingPatch) Building {
	if patch.Active != nil {
		b.Active = *patch.Active
	}
	if patch.Rotation != nil {
		b.Rotation = *patch.Rotation
	}
	if patch.CurrentProcessingTicks != nil {
		b.CurrentProcessingTicks = *patch.CurrentProcessingTicks
	}
	if patch.Inventory != nil {
		b.Inventory = patch.Inventory
	}
	if patch.OutputBuildingID != nil {
		b.OutputBuildingID = patch.OutputBuildingID
	}
	if patch.OutputOffsetX != nil {
		b.OutputOffsetX = *patch.OutputOffsetX
	}
	if patch.OutputOffsetY != nil {
		b.OutputOffsetY = *patch.OutputOffsetY
	}
	return b
}
