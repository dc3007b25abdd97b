package durable

// InventoryOwnerKind distinguishes the two inventory owners sharing the
// inventory_rows table.
const (
	OwnerBuilding = "building"
	OwnerPlayer   = "player"
)

// InventorySlots is the fixed slot count of a building or player inventory.
const InventorySlots = 16

// Requirement is one (item, quantity) precondition a building type must hold
// in inventory before producing output.
type Requirement struct {
	ItemID   int64
	Quantity int64
}

// BuildingType is the canonical building definition.
type BuildingType struct {
	ID               int64
	Name             string
	ProcessingTicks  int64
	OutputItemID     *int64
	OutputQuantity   int64
	TransferPerCycle int64
	PlacedOnItemIDs  []int64
	Requirements     []Requirement
}

// WorldResource is a deposit a building can sit on.
type WorldResource struct {
	ID       int64
	WorldID  string
	ItemID   int64
	X, Y     int
	Quantity int64
}

// InventoryRow is one slot of an owner's inventory. ItemID is nil for an
// empty slot.
type InventoryRow struct {
	OwnerID   int64
	OwnerKind string
	Slot      int
	ItemID    *int64
	Quantity  int64
}

// WorldBuilding is a placed building instance. Relation fields are populated
// only when the finder was asked for them.
type WorldBuilding struct {
	ID               int64
	WorldID          string
	BuildingTypeID   int64
	X, Y             int
	Rotation         int
	Active           bool
	WorldResourceID  *int64
	OutputBuildingID *int64
	OutputOffsetX    int
	OutputOffsetY    int

	Type      *BuildingType
	Inventory []InventoryRow
	Resource  *WorldResource
}

// World is one simulation instance.
type World struct {
	ID   string
	Seed int64
}

// NewBuilding carries the fields of a placement request.
type NewBuilding struct {
	WorldID         string
	BuildingTypeID  int64
	X, Y            int
	Rotation        int
	WorldResourceID *int64
}

// BuildingFieldPatch updates mutable fields of a placed building. Nil fields
// are left untouched.
type BuildingFieldPatch struct {
	Active           *bool
	OutputBuildingID *int64
	OutputOffsetX    *int
	OutputOffsetY    *int
}
