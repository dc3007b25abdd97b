package durable

import (
	"context"

	"github.com/rotisserie/eris"
)

// InventoryRepo mutates the slotted inventories shared by buildings and
// players.
type InventoryRepo struct {
	db *DB
}

func NewInventoryRepo(db *DB) *InventoryRepo {
	return &InventoryRepo{db: db}
}

// Rows loads an owner's inventory in slot order.
func (r *InventoryRepo) Rows(ctx context.Context, q Querier, ownerID int64, ownerKind string) ([]InventoryRow, error) {
	return findInventoryRows(ctx, q, ownerID, ownerKind)
}

func findInventoryRows(ctx context.Context, q Querier, ownerID int64, ownerKind string) ([]InventoryRow, error) {
	rows, err := q.Query(ctx,
		`SELECT owner_id, owner_kind, slot, item_id, quantity FROM inventory_rows
		 WHERE owner_id = $1 AND owner_kind = $2 ORDER BY slot`, ownerID, ownerKind)
	if err != nil {
		return nil, eris.Wrap(err, "query inventory rows")
	}
	defer rows.Close()

	var out []InventoryRow
	for rows.Next() {
		var row InventoryRow
		if err := rows.Scan(&row.OwnerID, &row.OwnerKind, &row.Slot, &row.ItemID, &row.Quantity); err != nil {
			return nil, eris.Wrap(err, "scan inventory row")
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "iterate inventory rows")
}

// Adjust credits (positive delta) or debits (negative delta) an owner's
// holdings of one item and returns the remainder that could not be applied,
// carrying delta's sign: zero on full success, negative for an unmet debit,
// positive for a credit no slot could take.
//
// Credits merge into the slot already holding the item, then fall back to the
// lowest empty slot. Debits drain slots holding the item from the lowest slot
// up; a slot drained to zero is cleared back to empty.
func (r *InventoryRepo) Adjust(ctx context.Context, q Querier, ownerID int64, ownerKind string, itemID, delta int64) (int64, error) {
	rows, err := findInventoryRows(ctx, q, ownerID, ownerKind)
	if err != nil {
		return delta, err
	}

	apply := func(row InventoryRow) error {
		_, err := q.Exec(ctx,
			`UPDATE inventory_rows SET item_id = $4, quantity = $5
			 WHERE owner_id = $1 AND owner_kind = $2 AND slot = $3`,
			row.OwnerID, row.OwnerKind, row.Slot, row.ItemID, row.Quantity)
		return eris.Wrap(err, "update inventory row")
	}

	remaining := delta
	if delta > 0 {
		for _, row := range rows {
			if row.ItemID != nil && *row.ItemID == itemID {
				row.Quantity += remaining
				return 0, apply(row)
			}
		}
		for _, row := range rows {
			if row.ItemID == nil {
				id := itemID
				row.ItemID = &id
				row.Quantity = remaining
				return 0, apply(row)
			}
		}
		return remaining, nil
	}

	for _, row := range rows {
		if remaining == 0 {
			break
		}
		if row.ItemID == nil || *row.ItemID != itemID || row.Quantity == 0 {
			continue
		}
		take := -remaining
		if take > row.Quantity {
			take = row.Quantity
		}
		row.Quantity -= take
		remaining += take
		if row.Quantity == 0 {
			row.ItemID = nil
		}
		if err := apply(row); err != nil {
			return remaining, err
		}
	}
	return remaining, nil
}

// Move transfers quantity units of an item between two inventories inside the
// caller's transaction. Only what the source actually held moves; overflow
// the destination cannot take is credited back, so no units are created or
// destroyed.
func (r *InventoryRepo) Move(ctx context.Context, q Querier, fromID int64, fromKind string, toID int64, toKind string, itemID, quantity int64) error {
	if quantity <= 0 {
		return nil
	}
	shortfall, err := r.Adjust(ctx, q, fromID, fromKind, itemID, -quantity)
	if err != nil {
		return err
	}
	moved := quantity + shortfall
	if moved == 0 {
		return nil
	}
	overflow, err := r.Adjust(ctx, q, toID, toKind, itemID, moved)
	if err != nil {
		return err
	}
	if overflow > 0 {
		// Destination is full; put the overflow back.
		if _, err := r.Adjust(ctx, q, fromID, fromKind, itemID, overflow); err != nil {
			return err
		}
	}
	return nil
}
