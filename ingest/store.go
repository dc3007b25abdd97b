package ingest

import (
	"context"

	"github.com/fabriq-online/fabriq/durable"
)

// Store is the slice of the durable store the ingest handlers validate
// against and write through.
type Store interface {
	FindBuilding(ctx context.Context, id int64) (*durable.WorldBuilding, error)
	FindTypeByItem(ctx context.Context, itemID int64) (*durable.BuildingType, error)
	CreateBuilding(ctx context.Context, nb durable.NewBuilding) (*durable.WorldBuilding, error)
	UpdateBuildingFields(ctx context.Context, id int64, patch durable.BuildingFieldPatch) error
	MoveInventory(ctx context.Context, fromID int64, fromKind string, toID int64, toKind string, itemID, quantity int64) error
	DeleteResource(ctx context.Context, id int64) error
}

type durableStore struct {
	db          *durable.DB
	buildings   *durable.BuildingRepo
	inventories *durable.InventoryRepo
}

var _ Store = (*durableStore)(nil)

func NewDurableStore(db *durable.DB) Store {
	return &durableStore{
		db:          db,
		buildings:   durable.NewBuildingRepo(db),
		inventories: durable.NewInventoryRepo(db),
	}
}

func (s *durableStore) FindBuilding(ctx context.Context, id int64) (*durable.WorldBuilding, error) {
	return s.buildings.FindByID(ctx, s.db.Pool, id)
}

func (s *durableStore) FindTypeByItem(ctx context.Context, itemID int64) (*durable.BuildingType, error) {
	return s.buildings.FindTypeByItem(ctx, s.db.Pool, itemID)
}

func (s *durableStore) CreateBuilding(ctx context.Context, nb durable.NewBuilding) (*durable.WorldBuilding, error) {
	var created *durable.WorldBuilding
	err := s.db.WithTx(ctx, func(q durable.Querier) error {
		var err error
		created, err = s.buildings.Create(ctx, q, nb)
		return err
	})
	return created, err
}

func (s *durableStore) UpdateBuildingFields(ctx context.Context, id int64, patch durable.BuildingFieldPatch) error {
	return s.buildings.UpdateFields(ctx, s.db.Pool, id, patch)
}

func (s *durableStore) MoveInventory(ctx context.Context, fromID int64, fromKind string, toID int64, toKind string, itemID, quantity int64) error {
	return s.db.WithTx(ctx, func(q durable.Querier) error {
		return s.inventories.Move(ctx, q, fromID, fromKind, toID, toKind, itemID, quantity)
	})
}

func (s *durableStore) DeleteResource(ctx context.Context, id int64) error {
	return s.buildings.DeleteResource(ctx, s.db.Pool, id)
}
