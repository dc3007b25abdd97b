package mirror

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// MemoryStore keeps world documents in process memory. It backs tests and
// single-process deployments that run without a document database.
type MemoryStore struct {
	mu     sync.RWMutex
	worlds map[string]*Document
}

var _ DocumentStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{worlds: map[string]*Document{}}
}

// cloneDocument round-trips through JSON so callers never alias stored state.
func cloneDocument(doc *Document) (*Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "failed to copy world document")
	}
	out := new(Document)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, eris.Wrap(err, "failed to copy world document")
	}
	return out, nil
}

func (s *MemoryStore) PutWorld(_ context.Context, doc *Document) error {
	stored, err := cloneDocument(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worlds[doc.ID] = stored
	return nil
}

func (s *MemoryStore) World(_ context.Context, worldID string) (*Document, error) {
	s.mu.RLock()
	doc, ok := s.worlds[worldID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return cloneDocument(doc)
}

func (s *MemoryStore) DeleteWorld(_ context.Context, worldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.worlds, worldID)
	return nil
}

// withWorld runs fn against the stored document under the write lock.
func (s *MemoryStore) withWorld(worldID string, fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.worlds[worldID]
	if !ok {
		return eris.Errorf("world %s is not open", worldID)
	}
	return fn(doc)
}

func (s *MemoryStore) Building(_ context.Context, worldID string, buildingID int64) (*Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, doc := range s.worlds {
		if worldID != AnyWorld && id != worldID {
			continue
		}
		for i := range doc.Buildings {
			if doc.Buildings[i].ID == buildingID {
				b := doc.Buildings[i]
				b.Inventory = append([]InventorySlot(nil), b.Inventory...)
				b.Inspectors = append([]string(nil), b.Inspectors...)
				return &b, nil
			}
		}
	}
	return nil, nil
}

func (s *MemoryStore) BuildingsByType(_ context.Context, worldID string, typeID int64) ([]Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.worlds[worldID]
	if !ok {
		return nil, nil
	}
	var out []Building
	for i := range doc.Buildings {
		if doc.Buildings[i].Type.ID != typeID {
			continue
		}
		b := doc.Buildings[i]
		b.Inventory = append([]InventorySlot(nil), b.Inventory...)
		b.Inspectors = append([]string(nil), b.Inspectors...)
		out = append(out, b)
	}
	return out, nil
}

func (s *MemoryStore) PutBuilding(_ context.Context, worldID string, b Building) error {
	return s.withWorld(worldID, func(doc *Document) error {
		for i := range doc.Buildings {
			if doc.Buildings[i].ID == b.ID {
				doc.Buildings[i] = b
				return nil
			}
		}
		return eris.Errorf("building %d is not in world %s", b.ID, worldID)
	})
}

func (s *MemoryStore) AppendBuilding(_ context.Context, worldID string, b Building) error {
	return s.withWorld(worldID, func(doc *Document) error {
		doc.Buildings = append(doc.Buildings, b)
		return nil
	})
}

func (s *MemoryStore) RemoveBuilding(_ context.Context, worldID string, buildingID int64) error {
	return s.withWorld(worldID, func(doc *Document) error {
		for i := range doc.Buildings {
			if doc.Buildings[i].ID == buildingID {
				doc.Buildings = append(doc.Buildings[:i], doc.Buildings[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

func (s *MemoryStore) AppendPlayer(_ context.Context, worldID string, p Player) error {
	return s.withWorld(worldID, func(doc *Document) error {
		doc.Players = append(doc.Players, p)
		return nil
	})
}

func (s *MemoryStore) RemovePlayer(_ context.Context, worldID string, playerID string) error {
	return s.withWorld(worldID, func(doc *Document) error {
		for i := range doc.Players {
			if doc.Players[i].ID == playerID {
				doc.Players = append(doc.Players[:i], doc.Players[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

func (s *MemoryStore) Players(_ context.Context, worldID string) ([]Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.worlds[worldID]
	if !ok {
		return nil, nil
	}
	return append([]Player(nil), doc.Players...), nil
}

func (s *MemoryStore) RemoveResource(_ context.Context, worldID string, resourceID int64) error {
	return s.withWorld(worldID, func(doc *Document) error {
		for i := range doc.Resources {
			if doc.Resources[i].ID == resourceID {
				doc.Resources = append(doc.Resources[:i], doc.Resources[i+1:]...)
				return nil
			}
		}
		return nil
	})
}
