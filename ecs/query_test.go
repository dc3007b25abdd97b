package ecs_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/fabriq-online/fabriq/ecs"
)

func queryFixture(t *testing.T) (*ecs.Store, *ecs.Component, *ecs.Component) {
	t.Helper()
	s := ecs.NewStore(32)
	a, err := s.DefineComponent("a", ecs.Schema{"v": ecs.I8})
	assert.NilError(t, err)
	b, err := s.DefineComponent("b", ecs.Schema{"v": ecs.I8})
	assert.NilError(t, err)
	return s, a, b
}

func TestQueryReturnsOnlyEntitiesWithAllComponents(t *testing.T) {
	s, a, b := queryFixture(t)

	both := s.DefineQuery(a, b)

	var withBoth []ecs.EntityID
	for i := 0; i < 9; i++ {
		id, err := s.CreateEntity()
		assert.NilError(t, err)
		switch i % 3 {
		case 0:
			s.AddComponent(a, id)
		case 1:
			s.AddComponent(b, id)
		case 2:
			s.AddComponent(a, id)
			s.AddComponent(b, id)
			withBoth = append(withBoth, id)
		}
	}

	assert.DeepEqual(t, withBoth, both.Entities())

	// Removing one of the two components drops the entity from the result.
	s.RemoveComponent(a, withBoth[0])
	assert.DeepEqual(t, withBoth[1:], both.Entities())
}

func TestQueryResultsAreAscending(t *testing.T) {
	s, a, _ := queryFixture(t)

	for i := 0; i < 8; i++ {
		id, err := s.CreateEntity()
		assert.NilError(t, err)
		s.AddComponent(a, id)
	}
	s.RemoveEntity(2)
	s.RemoveEntity(5)

	got := s.DefineQuery(a).Entities()
	for i := 1; i < len(got); i++ {
		assert.Assert(t, got[i-1] < got[i])
	}
	assert.Equal(t, 6, len(got))
}

func TestEmptyQueryMatchesNothing(t *testing.T) {
	s, a, _ := queryFixture(t)

	id, err := s.CreateEntity()
	assert.NilError(t, err)
	s.AddComponent(a, id)

	assert.Equal(t, 0, len(s.DefineQuery().Entities()))
}

func TestEnterReportsSetDifferenceAgainstPreviousSnapshot(t *testing.T) {
	s, a, _ := queryFixture(t)

	q := s.DefineQuery(a)

	first, err := s.CreateEntity()
	assert.NilError(t, err)
	s.AddComponent(a, first)

	assert.DeepEqual(t, []ecs.EntityID{first}, q.Enter())
	// No changes since the last poll: nothing enters.
	assert.Equal(t, 0, len(q.Enter()))

	second, err := s.CreateEntity()
	assert.NilError(t, err)
	s.AddComponent(a, second)

	assert.DeepEqual(t, []ecs.EntityID{second}, q.Enter())
	assert.DeepEqual(t, []ecs.EntityID{first, second}, q.Latest())
}

func TestEnterIsComputedAgainstSnapshotsNotIntermediateStates(t *testing.T) {
	s, a, _ := queryFixture(t)

	q := s.DefineQuery(a)

	id, err := s.CreateEntity()
	assert.NilError(t, err)
	s.AddComponent(a, id)
	q.Entities()

	// Leave and re-enter between polls.
	s.RemoveComponent(a, id)
	s.AddComponent(a, id)

	// The id was in the previous snapshot, so it does not re-enter.
	assert.Equal(t, 0, len(q.Enter()))

	s.RemoveComponent(a, id)
	q.Entities()
	s.AddComponent(a, id)
	assert.DeepEqual(t, []ecs.EntityID{id}, q.Enter())
}
