package ecs

import "sort"

// FieldKind selects the width and signedness of one component field. Fields
// are stored in flat typed slices of the store's capacity, indexed directly
// by entity id.
type FieldKind uint8

const (
	I8 FieldKind = iota
	U8
	I16
	U16
	I32
	U32
)

// Schema maps field names to their storage kind.
type Schema map[string]FieldKind

// Component is one registered component kind. All instances of the kind share
// the same column arrays; membership is tracked per entity in the store.
type Component struct {
	name   string
	bit    int
	fields map[string]*column
}

// Name returns the component's registered name.
func (c *Component) Name() string { return c.name }

func (c *Component) mask() uint64 { return 1 << uint(c.bit) }

// column is a single field's backing array. Only the slice matching the
// declared kind is allocated.
type column struct {
	kind FieldKind
	i8   []int8
	u8   []uint8
	i16  []int16
	u16  []uint16
	i32  []int32
	u32  []uint32
}

func newColumn(kind FieldKind, capacity int) *column {
	col := &column{kind: kind}
	switch kind {
	case I8:
		col.i8 = make([]int8, capacity)
	case U8:
		col.u8 = make([]uint8, capacity)
	case I16:
		col.i16 = make([]int16, capacity)
	case U16:
		col.u16 = make([]uint16, capacity)
	case I32:
		col.i32 = make([]int32, capacity)
	case U32:
		col.u32 = make([]uint32, capacity)
	}
	return col
}

func (col *column) set(id EntityID, v int64) {
	switch col.kind {
	case I8:
		col.i8[id] = int8(v)
	case U8:
		col.u8[id] = uint8(v)
	case I16:
		col.i16[id] = int16(v)
	case U16:
		col.u16[id] = uint16(v)
	case I32:
		col.i32[id] = int32(v)
	case U32:
		col.u32[id] = uint32(v)
	}
}

func (col *column) get(id EntityID) int64 {
	switch col.kind {
	case I8:
		return int64(col.i8[id])
	case U8:
		return int64(col.u8[id])
	case I16:
		return int64(col.i16[id])
	case U16:
		return int64(col.u16[id])
	case I32:
		return int64(col.i32[id])
	case U32:
		return int64(col.u32[id])
	}
	return 0
}

// DefineComponent registers a component kind with the given field schema.
// Component names are unique within a store; redefining one returns
// ErrComponentRedefined.
func (s *Store) DefineComponent(name string, schema Schema) (*Component, error) {
	if _, ok := s.components[name]; ok {
		return nil, ErrComponentRedefined
	}
	if s.nextBit >= maxComponents {
		return nil, ErrTooManyComponents
	}
	c := &Component{
		name:   name,
		bit:    s.nextBit,
		fields: make(map[string]*column, len(schema)),
	}
	for field, kind := range schema {
		c.fields[field] = newColumn(kind, s.capacity)
	}
	s.nextBit++
	s.components[name] = c
	return c, nil
}

// Component returns a registered component kind by name, or nil.
func (s *Store) Component(name string) *Component {
	return s.components[name]
}

// Set writes a field value for the entity, truncated to the field's declared
// width. Writing an unknown field returns ErrUnknownField; membership is not
// checked, matching the caller-initializes contract of AddComponent.
func (c *Component) Set(id EntityID, field string, v int64) error {
	col, ok := c.fields[field]
	if !ok {
		return ErrUnknownField
	}
	col.set(id, v)
	return nil
}

// Get reads a field value for the entity. The result is only meaningful while
// the entity holds this component.
func (c *Component) Get(id EntityID, field string) (int64, error) {
	col, ok := c.fields[field]
	if !ok {
		return 0, ErrUnknownField
	}
	return col.get(id), nil
}

// fieldNames returns the schema's field names in stable order for
// serialization.
func (c *Component) fieldNames() []string {
	names := make([]string, 0, len(c.fields))
	for name := range c.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
