package ecs

import (
	"github.com/rotisserie/eris"
)

var (
	ErrCapacityExceeded   = eris.New("entity capacity exceeded")
	ErrComponentRedefined = eris.New("component name already defined")
	ErrTooManyComponents  = eris.New("component limit reached")
	ErrUnknownField       = eris.New("unknown component field")
)

// EntityID is the identifier of an entity within a Store. IDs are dense
// integers below the store's capacity; freed IDs are reused.
type EntityID uint32

// maxComponents bounds the number of component kinds a store can hold. The
// membership set of an entity is a single uint64 bitmask.
const maxComponents = 64

// Store is a fixed-capacity arena of entities plus typed-array component
// storage. It is not safe for concurrent use; each simulation process owns
// exactly one store.
type Store struct {
	capacity int
	live     []bool
	masks    []uint64

	components map[string]*Component
	nextBit    int

	// firstFree is a low-water mark for the id scan. CreateEntity always
	// returns the lowest free id, so the scan can start here.
	firstFree int
}

// NewStore creates an arena with room for capacity entities. All component
// kinds must be defined before the first entity is created.
func NewStore(capacity int) *Store {
	return &Store{
		capacity:   capacity,
		live:       make([]bool, capacity),
		masks:      make([]uint64, capacity),
		components: make(map[string]*Component),
	}
}

// Capacity returns the fixed entity capacity of the store.
func (s *Store) Capacity() int { return s.capacity }

// CreateEntity claims the lowest free entity id. The new entity has no
// components. Returns ErrCapacityExceeded when the arena is full; the store
// itself remains usable.
func (s *Store) CreateEntity() (EntityID, error) {
	for i := s.firstFree; i < s.capacity; i++ {
		if !s.live[i] {
			s.live[i] = true
			s.masks[i] = 0
			s.firstFree = i + 1
			return EntityID(i), nil
		}
	}
	return 0, ErrCapacityExceeded
}

// RemoveEntity frees the id and clears its component membership. Removing an
// id that is already free is a no-op. Field values are left in place; they
// must not be read until the id is re-created and re-initialized.
func (s *Store) RemoveEntity(id EntityID) {
	i := int(id)
	if i >= s.capacity || !s.live[i] {
		return
	}
	s.live[i] = false
	s.masks[i] = 0
	if i < s.firstFree {
		s.firstFree = i
	}
}

// Alive reports whether the id is currently claimed.
func (s *Store) Alive(id EntityID) bool {
	return int(id) < s.capacity && s.live[id]
}

// Clear frees every entity. Component definitions survive.
func (s *Store) Clear() {
	for i := range s.live {
		s.live[i] = false
		s.masks[i] = 0
	}
	s.firstFree = 0
}

// AddComponent adds the component to the entity's membership set. Field data
// is not zeroed; the caller is expected to initialize every field it will
// later read.
func (s *Store) AddComponent(c *Component, id EntityID) {
	if !s.Alive(id) {
		return
	}
	s.masks[id] |= c.mask()
}

// RemoveComponent removes the component from the entity's membership set.
// Field data is left as-is; reading it after removal is undefined.
func (s *Store) RemoveComponent(c *Component, id EntityID) {
	if !s.Alive(id) {
		return
	}
	s.masks[id] &^= c.mask()
}

// HasComponent reports component membership for a live entity.
func (s *Store) HasComponent(c *Component, id EntityID) bool {
	return s.Alive(id) && s.masks[id]&c.mask() != 0
}
