package mirror

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fabriq-online/fabriq/durable"
	"github.com/fabriq-online/fabriq/worldgen"
)

// Hydrator loads mirror snapshots from the durable store.
type Hydrator interface {
	// World builds a full world document from durable state, or returns nil
	// when the world does not exist.
	World(ctx context.Context, worldID string) (*Document, error)
	// Building builds one building snapshot and reports the world it belongs
	// to, or returns nil when the building does not exist.
	Building(ctx context.Context, buildingID int64) (string, *Building, error)
}

// DurableHydrator reads world state out of Postgres and shapes it into mirror
// documents. Processing progress always starts at zero: it is tick-local
// state, not durable state.
type DurableHydrator struct {
	db        *durable.DB
	buildings *durable.BuildingRepo
}

var _ Hydrator = (*DurableHydrator)(nil)

func NewDurableHydrator(db *durable.DB) *DurableHydrator {
	return &DurableHydrator{db: db, buildings: durable.NewBuildingRepo(db)}
}

func snapshotType(t *durable.BuildingType) TypeInfo {
	return TypeInfo{
		ID:               t.ID,
		Name:             t.Name,
		ProcessingTicks:  t.ProcessingTicks,
		OutputItemID:     t.OutputItemID,
		OutputQuantity:   t.OutputQuantity,
		TransferPerCycle: t.TransferPerCycle,
		PlacedOnItemIDs:  t.PlacedOnItemIDs,
	}
}

func snapshotInventory(rows []durable.InventoryRow) []InventorySlot {
	out := make([]InventorySlot, 0, len(rows))
	for _, r := range rows {
		out = append(out, InventorySlot{Slot: r.Slot, ItemID: r.ItemID, Quantity: r.Quantity})
	}
	return out
}

func snapshotBuilding(wb *durable.WorldBuilding) Building {
	b := Building{
		ID:               wb.ID,
		X:                wb.X,
		Y:                wb.Y,
		Rotation:         wb.Rotation,
		Active:           wb.Active,
		WorldResourceID:  wb.WorldResourceID,
		Inventory:        snapshotInventory(wb.Inventory),
		OutputBuildingID: wb.OutputBuildingID,
		OutputOffsetX:    wb.OutputOffsetX,
		OutputOffsetY:    wb.OutputOffsetY,
		Inspectors:       []string{},
	}
	if wb.Type != nil {
		b.Type = snapshotType(wb.Type)
	}
	return b
}

func (h *DurableHydrator) World(ctx context.Context, worldID string) (*Document, error) {
	world, err := h.buildings.FindWorld(ctx, h.db.Pool, worldID)
	if err != nil {
		return nil, err
	}
	if world == nil {
		return nil, nil
	}

	placed, err := h.buildings.ListByWorld(ctx, h.db.Pool, worldID)
	if err != nil {
		return nil, err
	}
	resources, err := h.buildings.ListResources(ctx, h.db.Pool, worldID)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:        world.ID,
		Players:   []Player{},
		Buildings: make([]Building, 0, len(placed)),
		Resources: make([]Resource, 0, len(resources)),
		HeightMap: worldgen.Generate(world.Seed),
	}
	for _, wb := range placed {
		doc.Buildings = append(doc.Buildings, snapshotBuilding(wb))
	}
	for _, r := range resources {
		doc.Resources = append(doc.Resources, Resource{
			ID:       r.ID,
			ItemID:   r.ItemID,
			X:        r.X,
			Y:        r.Y,
			Quantity: r.Quantity,
			WorldID:  r.WorldID,
		})
	}
	return doc, nil
}

func (h *DurableHydrator) Building(ctx context.Context, buildingID int64) (string, *Building, error) {
	wb, err := h.buildings.FindByID(ctx, h.db.Pool, buildingID)
	if err != nil {
		return "", nil, eris.Wrapf(err, "failed to hydrate building %d", buildingID)
	}
	if wb == nil {
		return "", nil, nil
	}
	b := snapshotBuilding(wb)
	return wb.WorldID, &b, nil
}
