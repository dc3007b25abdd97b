package ecs_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/fabriq-online/fabriq/ecs"
)

func TestSerializeRoundTrip(t *testing.T) {
	src := ecs.NewStore(16)
	pos, err := src.DefineComponent("position", ecs.Schema{"x": ecs.I16, "y": ecs.I16})
	assert.NilError(t, err)
	tag, err := src.DefineComponent("tag", ecs.Schema{"kind": ecs.U8})
	assert.NilError(t, err)

	id, err := src.CreateEntity()
	assert.NilError(t, err)
	src.AddComponent(pos, id)
	src.AddComponent(tag, id)
	assert.NilError(t, pos.Set(id, "x", -12))
	assert.NilError(t, pos.Set(id, "y", 99))
	assert.NilError(t, tag.Set(id, "kind", 7))

	snap := src.SerializeEntity(id)
	assert.Equal(t, id, snap.Entity)
	assert.Equal(t, 3, len(snap.Rows))

	// A second store with the same component registry reconstructs the
	// entity, membership included.
	dst := ecs.NewStore(16)
	dpos, err := dst.DefineComponent("position", ecs.Schema{"x": ecs.I16, "y": ecs.I16})
	assert.NilError(t, err)
	dtag, err := dst.DefineComponent("tag", ecs.Schema{"kind": ecs.U8})
	assert.NilError(t, err)

	dst.DeserializeEntity(snap)
	assert.Assert(t, dst.Alive(id))
	assert.Assert(t, dst.HasComponent(dpos, id))
	assert.Assert(t, dst.HasComponent(dtag, id))
	x, err := dpos.Get(id, "x")
	assert.NilError(t, err)
	assert.Equal(t, int64(-12), x)
	kind, err := dtag.Get(id, "kind")
	assert.NilError(t, err)
	assert.Equal(t, int64(7), kind)
}

func TestSerializeDeadEntityIsEmpty(t *testing.T) {
	s := ecs.NewStore(4)
	snap := s.SerializeEntity(2)
	assert.Equal(t, ecs.EntityID(2), snap.Entity)
	assert.Equal(t, 0, len(snap.Rows))
}

func TestDeserializeSkipsUnknownComponents(t *testing.T) {
	s := ecs.NewStore(4)
	known, err := s.DefineComponent("known", ecs.Schema{"v": ecs.I8})
	assert.NilError(t, err)

	s.DeserializeEntity(ecs.Snapshot{
		Entity: 1,
		Rows: []ecs.Row{
			{Component: "mystery", Field: "v", Value: 3},
			{Component: "known", Field: "v", Value: 5},
		},
	})

	assert.Assert(t, s.Alive(1))
	assert.Assert(t, s.HasComponent(known, 1))
	v, err := known.Get(1, "v")
	assert.NilError(t, err)
	assert.Equal(t, int64(5), v)
}
