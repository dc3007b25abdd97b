package durable

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

var ErrNotFound = eris.New("record not found")

// BuildingRepo reads and writes placed buildings and their canonical types.
type BuildingRepo struct {
	db *DB
}

func NewBuildingRepo(db *DB) *BuildingRepo {
	return &BuildingRepo{db: db}
}

const worldBuildingColumns = `id, world_id, building_type_id, x, y, rotation, active,
       world_resource_id, output_building_id, output_offset_x, output_offset_y`

func scanWorldBuilding(row pgx.Row) (*WorldBuilding, error) {
	b := &WorldBuilding{}
	err := row.Scan(
		&b.ID, &b.WorldID, &b.BuildingTypeID, &b.X, &b.Y, &b.Rotation, &b.Active,
		&b.WorldResourceID, &b.OutputBuildingID, &b.OutputOffsetX, &b.OutputOffsetY,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan world building")
	}
	return b, nil
}

// FindByID loads a placed building with its type, requirements, inventory,
// and sited resource. Returns (nil, nil) when absent.
func (r *BuildingRepo) FindByID(ctx context.Context, q Querier, id int64) (*WorldBuilding, error) {
	b, err := scanWorldBuilding(q.QueryRow(ctx,
		`SELECT `+worldBuildingColumns+` FROM world_buildings WHERE id = $1`, id))
	if err != nil || b == nil {
		return b, err
	}

	if b.Type, err = r.FindType(ctx, q, b.BuildingTypeID); err != nil {
		return nil, err
	}
	if b.Inventory, err = findInventoryRows(ctx, q, b.ID, OwnerBuilding); err != nil {
		return nil, err
	}
	if b.WorldResourceID != nil {
		if b.Resource, err = r.findResource(ctx, q, *b.WorldResourceID); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// FindByWorldAndType loads every placed building of one type in one world,
// inventories included. The tick engine batches production per type.
func (r *BuildingRepo) FindByWorldAndType(ctx context.Context, q Querier, worldID string, typeID int64) ([]*WorldBuilding, error) {
	rows, err := q.Query(ctx,
		`SELECT `+worldBuildingColumns+` FROM world_buildings
		 WHERE world_id = $1 AND building_type_id = $2 ORDER BY id`, worldID, typeID)
	if err != nil {
		return nil, eris.Wrap(err, "query world buildings")
	}
	defer rows.Close()

	var out []*WorldBuilding
	for rows.Next() {
		b, err := scanWorldBuilding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate world buildings")
	}
	for _, b := range out {
		if b.Inventory, err = findInventoryRows(ctx, q, b.ID, OwnerBuilding); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListByWorld loads every placed building of a world with full relations,
// used for mirror hydration.
func (r *BuildingRepo) ListByWorld(ctx context.Context, q Querier, worldID string) ([]*WorldBuilding, error) {
	rows, err := q.Query(ctx,
		`SELECT id FROM world_buildings WHERE world_id = $1 ORDER BY id`, worldID)
	if err != nil {
		return nil, eris.Wrap(err, "query world building ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "scan world building id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate world building ids")
	}

	out := make([]*WorldBuilding, 0, len(ids))
	for _, id := range ids {
		b, err := r.FindByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if b != nil {
			out = append(out, b)
		}
	}
	return out, nil
}

// Create inserts a placed building and its empty inventory slots.
func (r *BuildingRepo) Create(ctx context.Context, q Querier, nb NewBuilding) (*WorldBuilding, error) {
	b, err := scanWorldBuilding(q.QueryRow(ctx,
		`INSERT INTO world_buildings (world_id, building_type_id, x, y, rotation, world_resource_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+worldBuildingColumns,
		nb.WorldID, nb.BuildingTypeID, nb.X, nb.Y, nb.Rotation, nb.WorldResourceID))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, eris.Wrap(ErrNotFound, "insert returned no row")
	}
	for slot := 0; slot < InventorySlots; slot++ {
		if _, err := q.Exec(ctx,
			`INSERT INTO inventory_rows (owner_id, owner_kind, slot) VALUES ($1, $2, $3)`,
			b.ID, OwnerBuilding, slot); err != nil {
			return nil, eris.Wrap(err, "seed inventory slots")
		}
	}
	return b, nil
}

// UpdateFields applies a partial update; nil patch fields are untouched.
func (r *BuildingRepo) UpdateFields(ctx context.Context, q Querier, id int64, patch BuildingFieldPatch) error {
	tag, err := q.Exec(ctx,
		`UPDATE world_buildings SET
		   active             = COALESCE($2, active),
		   output_building_id = COALESCE($3, output_building_id),
		   output_offset_x    = COALESCE($4, output_offset_x),
		   output_offset_y    = COALESCE($5, output_offset_y)
		 WHERE id = $1`,
		id, patch.Active, patch.OutputBuildingID, patch.OutputOffsetX, patch.OutputOffsetY)
	if err != nil {
		return eris.Wrap(err, "update world building")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a placed building and its inventory.
func (r *BuildingRepo) Delete(ctx context.Context, q Querier, id int64) error {
	if _, err := q.Exec(ctx,
		`DELETE FROM inventory_rows WHERE owner_id = $1 AND owner_kind = $2`,
		id, OwnerBuilding); err != nil {
		return eris.Wrap(err, "delete building inventory")
	}
	tag, err := q.Exec(ctx, `DELETE FROM world_buildings WHERE id = $1`, id)
	if err != nil {
		return eris.Wrap(err, "delete world building")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindType loads one canonical building type with requirements and placement
// item list.
func (r *BuildingRepo) FindType(ctx context.Context, q Querier, typeID int64) (*BuildingType, error) {
	bt := &BuildingType{}
	err := q.QueryRow(ctx,
		`SELECT id, name, processing_ticks, output_item_id, output_quantity,
		        inventory_transfer_quantity_per_cycle
		 FROM building_types WHERE id = $1`, typeID).
		Scan(&bt.ID, &bt.Name, &bt.ProcessingTicks, &bt.OutputItemID,
			&bt.OutputQuantity, &bt.TransferPerCycle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan building type")
	}

	reqRows, err := q.Query(ctx,
		`SELECT item_id, quantity FROM processing_requirements
		 WHERE building_type_id = $1 ORDER BY item_id`, typeID)
	if err != nil {
		return nil, eris.Wrap(err, "query processing requirements")
	}
	defer reqRows.Close()
	for reqRows.Next() {
		var req Requirement
		if err := reqRows.Scan(&req.ItemID, &req.Quantity); err != nil {
			return nil, eris.Wrap(err, "scan processing requirement")
		}
		bt.Requirements = append(bt.Requirements, req)
	}
	if err := reqRows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate processing requirements")
	}

	placeRows, err := q.Query(ctx,
		`SELECT item_id FROM building_type_placements
		 WHERE building_type_id = $1 ORDER BY item_id`, typeID)
	if err != nil {
		return nil, eris.Wrap(err, "query placement items")
	}
	defer placeRows.Close()
	for placeRows.Next() {
		var itemID int64
		if err := placeRows.Scan(&itemID); err != nil {
			return nil, eris.Wrap(err, "scan placement item")
		}
		bt.PlacedOnItemIDs = append(bt.PlacedOnItemIDs, itemID)
	}
	return bt, eris.Wrap(placeRows.Err(), "iterate placement items")
}

// FindTypeByItem resolves the building type a placeable item places, or nil
// when the item places nothing.
func (r *BuildingRepo) FindTypeByItem(ctx context.Context, q Querier, itemID int64) (*BuildingType, error) {
	var typeID *int64
	err := q.QueryRow(ctx,
		`SELECT building_type_id FROM items WHERE id = $1`, itemID).Scan(&typeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan item building link")
	}
	if typeID == nil {
		return nil, nil
	}
	return r.FindType(ctx, q, *typeID)
}

// ListTypes loads every canonical building type.
func (r *BuildingRepo) ListTypes(ctx context.Context, q Querier) ([]*BuildingType, error) {
	rows, err := q.Query(ctx, `SELECT id FROM building_types ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "query building types")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "scan building type id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate building types")
	}

	out := make([]*BuildingType, 0, len(ids))
	for _, id := range ids {
		bt, err := r.FindType(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if bt != nil {
			out = append(out, bt)
		}
	}
	return out, nil
}

// DeleteResource removes a depleted or destroyed resource deposit.
func (r *BuildingRepo) DeleteResource(ctx context.Context, q Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM world_resources WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "delete world resource %d", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BuildingRepo) findResource(ctx context.Context, q Querier, id int64) (*WorldResource, error) {
	res := &WorldResource{}
	err := q.QueryRow(ctx,
		`SELECT id, world_id, item_id, x, y, quantity FROM world_resources WHERE id = $1`, id).
		Scan(&res.ID, &res.WorldID, &res.ItemID, &res.X, &res.Y, &res.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan world resource")
	}
	return res, nil
}

// ListResources loads a world's resource deposits for mirror hydration.
func (r *BuildingRepo) ListResources(ctx context.Context, q Querier, worldID string) ([]WorldResource, error) {
	rows, err := q.Query(ctx,
		`SELECT id, world_id, item_id, x, y, quantity FROM world_resources
		 WHERE world_id = $1 ORDER BY id`, worldID)
	if err != nil {
		return nil, eris.Wrap(err, "query world resources")
	}
	defer rows.Close()

	var out []WorldResource
	for rows.Next() {
		var res WorldResource
		if err := rows.Scan(&res.ID, &res.WorldID, &res.ItemID, &res.X, &res.Y, &res.Quantity); err != nil {
			return nil, eris.Wrap(err, "scan world resource")
		}
		out = append(out, res)
	}
	return out, eris.Wrap(rows.Err(), "iterate world resources")
}

// FindWorld loads one world row. Returns (nil, nil) when absent.
func (r *BuildingRepo) FindWorld(ctx context.Context, q Querier, worldID string) (*World, error) {
	w := &World{}
	err := q.QueryRow(ctx, `SELECT id, seed FROM worlds WHERE id = $1`, worldID).
		Scan(&w.ID, &w.Seed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan world")
	}
	return w, nil
}
