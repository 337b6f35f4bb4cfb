package entity

import (
	"errors"
	"testing"

	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *proto.MemoryCatalog {
	t.Helper()
	c := proto.NewMemoryCatalog()
	require.NoError(t, c.AddEntity(&proto.EntityPrototype{
		Name:   "orc",
		Bounds: proto.BoundsPrototype{Shape: "capsule", Radius: 20, HalfHeight: 40, Collision: "blocking"},
	}))
	require.NoError(t, c.AddEntity(&proto.EntityPrototype{
		Name:   "hero",
		Avatar: true,
		Bounds: proto.BoundsPrototype{Radius: 25},
	}))
	return c
}

func TestManagerCreateAssignsIncreasingIds(t *testing.T) {
	m := NewManager(newTestCatalog(t))

	a, err := m.Create(Settings{Prototype: "orc", Position: vec.New(1, 2, 3)})
	require.NoError(t, err)
	b, err := m.Create(Settings{Prototype: "orc"})
	require.NoError(t, err)

	assert.Less(t, a.ID(), b.ID(), "идентификаторы должны возрастать")
	assert.Equal(t, physics.InvalidCollisionId, a.CollisionID())
	assert.Equal(t, vec.New(1, 2, 3), a.Bounds().Center)
	assert.True(t, a.CanCollide())
	assert.Equal(t, 2, m.Count())
}

func TestManagerCreateUnknownPrototype(t *testing.T) {
	m := NewManager(newTestCatalog(t))
	_, err := m.Create(Settings{Prototype: "dragon"})
	assert.True(t, errors.Is(err, ErrUnknownPrototype))
}

func TestManagerDestroy(t *testing.T) {
	m := NewManager(newTestCatalog(t))
	e, err := m.Create(Settings{Prototype: "orc"})
	require.NoError(t, err)

	assert.True(t, m.Destroy(e.ID()))
	assert.False(t, m.Destroy(e.ID()), "повторное удаление должно провалиться")
	_, ok := m.Get(e.ID())
	assert.False(t, ok)
}

func TestAvatarIsPlayerOwned(t *testing.T) {
	m := NewManager(newTestCatalog(t))
	hero, err := m.Create(Settings{Prototype: "hero"})
	require.NoError(t, err)
	assert.True(t, hero.IsAvatar())
	assert.True(t, hero.IsPlayerOwned())
}

func TestInRegionAndSimulation(t *testing.T) {
	m := NewManager(newTestCatalog(t))
	a, _ := m.Create(Settings{Prototype: "orc"})
	b, _ := m.Create(Settings{Prototype: "orc"})
	_, _ = m.Create(Settings{Prototype: "orc"})

	a.SetInWorld(7, true)
	b.SetInWorld(7, true)
	assert.Equal(t, []*WorldEntity{a, b}, m.InRegion(7))

	calls := 0
	a.OnSimulationChanged = func(*WorldEntity, bool) { calls++ }
	assert.True(t, a.SetSimulated(true))
	assert.False(t, a.SetSimulated(true), "повторное включение ничего не меняет")
	assert.Equal(t, 1, calls)

	a.SetPosition(vec.New(10, 0, 0))
	assert.Equal(t, vec.New(10, 0, 0), a.Bounds().Center)
}
