// Package production runs the per-tick simulation: buildings whose processing
// interval elapses produce and consume inventory, finished output is moved
// along configured output links, and every change is written through the
// world mirror so inspectors see it.
package production

import (
	"github.com/rotisserie/eris"

	"github.com/fabriq-online/fabriq/durable"
	"github.com/fabriq-online/fabriq/mirror"
)

// ErrInvalidTransfer reports transfer bookkeeping that went negative. It is
// logged as a potential quantity leak and the transfer is aborted.
var ErrInvalidTransfer = eris.New("invalid inventory transfer")

func totalOf(slots []mirror.InventorySlot, itemID int64) int64 {
	var total int64
	for _, s := range slots {
		if s.ItemID != nil && *s.ItemID == itemID {
			total += s.Quantity
		}
	}
	return total
}

// meetsRequirements reports whether the inventory holds every required
// (item, quantity) pair. Quantities of one item may be spread across slots.
func meetsRequirements(slots []mirror.InventorySlot, reqs []durable.Requirement) bool {
	for _, req := range reqs {
		if totalOf(slots, req.ItemID) < req.Quantity {
			return false
		}
	}
	return true
}

// credit adds quantity of an item to the inventory, merging into the first
// slot already holding the item, then falling back to the lowest empty slot.
// The remainder that fit nowhere is returned.
func credit(slots []mirror.InventorySlot, itemID, quantity int64) int64 {
	if quantity <= 0 {
		return 0
	}
	for i := range slots {
		if slots[i].ItemID != nil && *slots[i].ItemID == itemID {
			slots[i].Quantity += quantity
			return 0
		}
	}
	for i := range slots {
		if slots[i].ItemID == nil {
			id := itemID
			slots[i].ItemID = &id
			slots[i].Quantity = quantity
			return 0
		}
	}
	return quantity
}

// debit removes quantity of an item, draining lower slots first. Slots that
// reach zero are cleared. Debiting more than the inventory holds fails
// without mutating anything.
func debit(slots []mirror.InventorySlot, itemID, quantity int64) error {
	if totalOf(slots, itemID) < quantity {
		return eris.Wrapf(ErrInvalidTransfer, "inventory holds too little of item %d", itemID)
	}
	remaining := quantity
	for i := range slots {
		if remaining == 0 {
			break
		}
		if slots[i].ItemID == nil || *slots[i].ItemID != itemID {
			continue
		}
		take := slots[i].Quantity
		if take > remaining {
			take = remaining
		}
		slots[i].Quantity -= take
		remaining -= take
		if slots[i].Quantity == 0 {
			slots[i].ItemID = nil
		}
	}
	return nil
}

// movedItem records one (item, quantity) moved between two inventories, so
// the durable store can replay the same movement.
type movedItem struct {
	ItemID   int64
	Quantity int64
}

// transfer moves up to capacity units from src to dst, walking src's
// non-empty slots in order and taking min(remaining capacity, slot quantity)
// from each. Units the destination cannot hold stay in their source slot.
// The capacity counter reaching a negative value is a logic error.
func transfer(src, dst []mirror.InventorySlot, capacity int64) ([]movedItem, error) {
	remaining := capacity
	var moved []movedItem
	for i := range src {
		if remaining == 0 {
			break
		}
		if remaining < 0 {
			return nil, eris.Wrapf(ErrInvalidTransfer, "transfer capacity went negative (%d)", remaining)
		}
		if src[i].ItemID == nil || src[i].Quantity == 0 {
			continue
		}
		amount := src[i].Quantity
		if amount > remaining {
			amount = remaining
		}
		leftover := credit(dst, *src[i].ItemID, amount)
		placed := amount - leftover
		if placed == 0 {
			continue
		}
		moved = append(moved, movedItem{ItemID: *src[i].ItemID, Quantity: placed})
		src[i].Quantity -= placed
		remaining -= placed
		if src[i].Quantity == 0 {
			src[i].ItemID = nil
		}
	}
	return moved, nil
}

func cloneSlots(slots []mirror.InventorySlot) []mirror.InventorySlot {
	out := make([]mirror.InventorySlot, len(slots))
	copy(out, slots)
	for i := range out {
		if out[i].ItemID != nil {
			id := *out[i].ItemID
			out[i].ItemID = &id
		}
	}
	return out
}
