package production

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fabriq-online/fabriq/durable"
	"github.com/fabriq-online/fabriq/mirror"
)

// WorldView is the slice of the mirror service the engine reads and writes.
type WorldView interface {
	World(ctx context.Context, worldID string) (*mirror.Document, error)
	BuildingsByType(ctx context.Context, worldID string, typeID int64) ([]mirror.Building, error)
	Building(ctx context.Context, worldID string, buildingID int64) (*mirror.Building, error)
	UpdateBuilding(ctx context.Context, worldID string, patch mirror.BuildingPatch) (*mirror.Building, error)
}

// TypeSource serves the building-type catalog.
type TypeSource interface {
	Types(ctx context.Context) ([]*durable.BuildingType, error)
}

// Ledger applies inventory movements to the durable store.
type Ledger interface {
	Adjust(ctx context.Context, q durable.Querier, ownerID int64, ownerKind string, itemID, delta int64) (int64, error)
	Move(ctx context.Context, q durable.Querier, fromID int64, fromKind string, toID int64, toKind string, itemID, quantity int64) error
}

// TxRunner scopes a function to one durable-store transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(q durable.Querier) error) error
}

// Notifier is told when a building finishes a processing interval.
type Notifier interface {
	BuildingFinished(ctx context.Context, worldID string, buildingID int64) error
}

// Engine evaluates one world's production each tick. Buildings of a type
// whose processing interval divides the tick produce, consume, and push
// output along their output links; results are committed to the durable
// store per type batch and then written through the mirror.
type Engine struct {
	worldID     string
	view        WorldView
	types       TypeSource
	ledger      Ledger
	tx          TxRunner
	notify      Notifier
	log         zerolog.Logger
	parallelism int

	inert atomic.Int64
}

// defaultParallelism bounds how many buildings of one batch are evaluated at
// once.
const defaultParallelism = 10

func NewEngine(worldID string, view WorldView, types TypeSource, ledger Ledger, tx TxRunner, notify Notifier, log zerolog.Logger, parallelism int) *Engine {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Engine{
		worldID:     worldID,
		view:        view,
		types:       types,
		ledger:      ledger,
		tx:          tx,
		notify:      notify,
		log:         log.With().Str("component", "production").Str("world", worldID).Logger(),
		parallelism: parallelism,
	}
}

// InertEvaluations counts buildings evaluated whose type defines no output,
// no requirements, and no sited resource. They are skipped, not failed.
func (e *Engine) InertEvaluations() int64 { return e.inert.Load() }

type itemDelta struct {
	ItemID int64
	Delta  int64
}

type moveRecord struct {
	From, To int64
	ItemID   int64
	Quantity int64
}

// outcome is one building's computed result for the current tick.
type outcome struct {
	building *mirror.Building
	slots    []mirror.InventorySlot
	adjusts  []itemDelta
	produced bool
	changed  bool
}

// Tick evaluates every building type due at the given tick, then advances
// processing progress on every building that did not finish. A failing type
// batch is logged and skipped; one type's fault never aborts the tick.
func (e *Engine) Tick(ctx context.Context, tick int64) error {
	types, err := e.types.Types(ctx)
	if err != nil {
		return err
	}

	doc, err := e.view.World(ctx, e.worldID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	resourceItems := map[int64]int64{}
	for _, r := range doc.Resources {
		resourceItems[r.ID] = r.ItemID
	}

	finished := map[int64]bool{}
	for _, t := range types {
		if t.ProcessingTicks <= 0 || tick%t.ProcessingTicks != 0 {
			continue
		}
		if err := e.processType(ctx, t, resourceItems, finished); err != nil {
			e.log.Error().Err(err).Int64("building_type", t.ID).Int64("tick", tick).
				Msg("production batch failed")
		}
	}

	e.advanceProgress(ctx, doc, finished)
	return nil
}

// advanceProgress bumps CurrentProcessingTicks on every building still mid
// cycle, so inspectors watch progress climb between finishes. Buildings that
// produced this tick were already reset to zero.
func (e *Engine) advanceProgress(ctx context.Context, doc *mirror.Document, finished map[int64]bool) {
	for i := range doc.Buildings {
		b := &doc.Buildings[i]
		if b.Type.ProcessingTicks <= 0 || finished[b.ID] {
			continue
		}
		progress := b.CurrentProcessingTicks + 1
		patch := mirror.BuildingPatch{ID: b.ID, CurrentProcessingTicks: &progress}
		if _, err := e.view.UpdateBuilding(ctx, e.worldID, patch); err != nil {
			e.log.Error().Err(err).Int64("building", b.ID).Msg("failed to advance processing progress")
		}
	}
}

func (e *Engine) processType(ctx context.Context, t *durable.BuildingType, resourceItems map[int64]int64, finished map[int64]bool) error {
	batch, err := e.view.BuildingsByType(ctx, e.worldID, t.ID)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	results := make([]*outcome, len(batch))
	var moves []moveRecord
	// Destination buildings outside this batch whose inventories a transfer
	// touched, keyed by id.
	outside := map[int64]*outcome{}

	err = e.tx.WithTx(ctx, func(q durable.Querier) error {
		var g errgroup.Group
		g.SetLimit(e.parallelism)
		for i := range batch {
			i := i
			g.Go(func() error {
				results[i] = e.evaluate(&batch[i], t, resourceItems)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		// Transfer phase. Sequential: destinations may be shared between
		// sources, and the durable connection cannot be used concurrently.
		byID := map[int64]*outcome{}
		for _, o := range results {
			byID[o.building.ID] = o
		}
		for _, o := range results {
			if o.building.OutputBuildingID == nil || t.TransferPerCycle <= 0 {
				continue
			}
			dstID := *o.building.OutputBuildingID
			dst := byID[dstID]
			if dst == nil {
				dst = outside[dstID]
			}
			if dst == nil {
				snap, err := e.view.Building(ctx, e.worldID, dstID)
				if err != nil {
					return err
				}
				if snap == nil {
					e.log.Warn().Int64("building", o.building.ID).Int64("output", dstID).
						Msg("output building missing from mirror, skipping transfer")
					continue
				}
				dst = &outcome{building: snap, slots: cloneSlots(snap.Inventory)}
				outside[dstID] = dst
			}
			moved, err := transfer(o.slots, dst.slots, t.TransferPerCycle)
			if err != nil {
				e.log.Error().Err(err).Int64("building", o.building.ID).
					Msg("potential quantity leak, transfer aborted")
				continue
			}
			for _, m := range moved {
				moves = append(moves, moveRecord{From: o.building.ID, To: dstID, ItemID: m.ItemID, Quantity: m.Quantity})
				o.changed = true
				dst.changed = true
			}
		}

		for _, o := range results {
			for _, adj := range o.adjusts {
				if _, err := e.ledger.Adjust(ctx, q, o.building.ID, durable.OwnerBuilding, adj.ItemID, adj.Delta); err != nil {
					return err
				}
			}
		}
		for _, m := range moves {
			if err := e.ledger.Move(ctx, q, m.From, durable.OwnerBuilding, m.To, durable.OwnerBuilding, m.ItemID, m.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The batch is committed; publish the new inventories and notify.
	zero := int64(0)
	flush := func(o *outcome) {
		if !o.changed {
			return
		}
		patch := mirror.BuildingPatch{ID: o.building.ID, Inventory: o.slots}
		if o.produced {
			patch.CurrentProcessingTicks = &zero
		}
		if _, err := e.view.UpdateBuilding(ctx, e.worldID, patch); err != nil {
			e.log.Error().Err(err).Int64("building", o.building.ID).
				Msg("failed to mirror production result")
		}
	}
	for _, o := range results {
		flush(o)
		if o.produced {
			finished[o.building.ID] = true
		}
		if o.produced && e.notify != nil {
			if err := e.notify.BuildingFinished(ctx, e.worldID, o.building.ID); err != nil {
				e.log.Error().Err(err).Int64("building", o.building.ID).
					Msg("failed to announce finished building")
			}
		}
	}
	for _, o := range outside {
		flush(o)
	}
	return nil
}

// evaluate computes one building's production for this tick in memory. It is
// pure with respect to shared state, so the batch can run it in parallel.
func (e *Engine) evaluate(b *mirror.Building, t *durable.BuildingType, resourceItems map[int64]int64) *outcome {
	o := &outcome{building: b, slots: cloneSlots(b.Inventory)}

	switch {
	case len(t.Requirements) == 0 && t.OutputItemID != nil:
		e.produce(o, *t.OutputItemID, t.OutputQuantity)

	case len(t.Requirements) == 0 && b.WorldResourceID != nil:
		itemID, ok := resourceItems[*b.WorldResourceID]
		if !ok {
			e.log.Warn().Int64("building", b.ID).Int64("resource", *b.WorldResourceID).
				Msg("sited resource missing from mirror")
			return o
		}
		e.produce(o, itemID, t.OutputQuantity)

	case len(t.Requirements) > 0 && t.OutputItemID != nil:
		if !meetsRequirements(o.slots, t.Requirements) {
			return o
		}
		for _, req := range t.Requirements {
			if err := debit(o.slots, req.ItemID, req.Quantity); err != nil {
				e.log.Error().Err(err).Int64("building", b.ID).Msg("requirement debit failed")
				return &outcome{building: b, slots: cloneSlots(b.Inventory)}
			}
			o.adjusts = append(o.adjusts, itemDelta{ItemID: req.ItemID, Delta: -req.Quantity})
			o.changed = true
		}
		e.produce(o, *t.OutputItemID, t.OutputQuantity)

	default:
		e.inert.Add(1)
		e.log.Debug().Int64("building", b.ID).Int64("building_type", t.ID).
			Msg("inert building type, nothing to produce")
	}
	return o
}

// produce credits the output into the outcome's inventory. Output that does
// not fit is not produced at all, so the durable store and the mirror agree.
func (e *Engine) produce(o *outcome, itemID, quantity int64) {
	if quantity <= 0 {
		return
	}
	leftover := credit(o.slots, itemID, quantity)
	made := quantity - leftover
	if made <= 0 {
		e.log.Debug().Int64("building", o.building.ID).Int64("item", itemID).
			Msg("inventory full, output discarded")
		return
	}
	o.adjusts = append(o.adjusts, itemDelta{ItemID: itemID, Delta: made})
	o.produced = true
	o.changed = true
}
