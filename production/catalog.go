package production

import (
	"context"
	"sync"

	"github.com/fabriq-online/fabriq/durable"
)

// Catalog serves the building-type catalog out of the durable store. Types
// are static configuration, so they are loaded once and kept.
type Catalog struct {
	db   *durable.DB
	repo *durable.BuildingRepo

	once  sync.Once
	types []*durable.BuildingType
	err   error
}

var _ TypeSource = (*Catalog)(nil)

func NewCatalog(db *durable.DB) *Catalog {
	return &Catalog{db: db, repo: durable.NewBuildingRepo(db)}
}

func (c *Catalog) Types(ctx context.Context) ([]*durable.BuildingType, error) {
	c.once.Do(func() {
		c.types, c.err = c.repo.ListTypes(ctx, c.db.Pool)
	})
	return c.types, c.err
}
