package ecs

import "sort"

// SnapshotFormat identifies the row-triple encoding in sync packets, so a
// consumer can reject buffers produced by a different serializer.
const SnapshotFormat = "ecs_rows_v1"

// Row is one serialized (component, field, value) triple of an entity. The
// bulk entity-sync packets carry slices of these pre-encoded; the packet
// layer treats the bytes as opaque.
type Row struct {
	Component string `json:"c"`
	Field     string `json:"f"`
	Value     int64  `json:"v"`
}

// Snapshot is a full copy of one entity's component data.
type Snapshot struct {
	Entity EntityID `json:"eid"`
	Rows   []Row    `json:"rows"`
}

// SerializeEntity copies every component field of a live entity into a
// snapshot. Packets carry these copies, never references into the store.
func (s *Store) SerializeEntity(id EntityID) Snapshot {
	snap := Snapshot{Entity: id}
	if !s.Alive(id) {
		return snap
	}
	for _, name := range s.componentNames() {
		c := s.components[name]
		if s.masks[id]&c.mask() == 0 {
			continue
		}
		for _, field := range c.fieldNames() {
			v, _ := c.Get(id, field)
			snap.Rows = append(snap.Rows, Row{Component: name, Field: field, Value: v})
		}
	}
	return snap
}

// DeserializeEntity writes a snapshot into the store at the snapshot's id,
// claiming the id if it is free and rebuilding component membership from the
// rows. Unknown components or fields in the snapshot are skipped.
func (s *Store) DeserializeEntity(snap Snapshot) {
	i := int(snap.Entity)
	if i >= s.capacity {
		return
	}
	if !s.live[i] {
		s.live[i] = true
		if i == s.firstFree {
			s.firstFree = i + 1
		}
	}
	s.masks[i] = 0
	for _, row := range snap.Rows {
		c, ok := s.components[row.Component]
		if !ok {
			continue
		}
		if err := c.Set(snap.Entity, row.Field, row.Value); err != nil {
			continue
		}
		s.masks[i] |= c.mask()
	}
}

func (s *Store) componentNames() []string {
	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool {
		return s.components[names[a]].bit < s.components[names[b]].bit
	})
	return names
}
