package proto

import (
	"errors"
	"testing"

	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
regions:
  - name: town
    level: 10
    generator:
      kind: static_area
      start_area: plaza
      areas:
        - area: plaza
          origin: {x: 0, y: 0, z: 0}
cells:
  - name: plaza_cell
    walls: NS
    bounds:
      min: {x: -256, y: -256, z: -64}
      max: {x: 256, y: 256, z: 64}
    navi_patch:
      walkable:
        - bounds: {min: {x: -256, y: -256, z: 0}, max: {x: 256, y: 256, z: 0}}
    markers:
      - kind: hotspot
        entity: portal
        guid: 77
        position: {x: 10, y: 0, z: 0}
  - name: measured_cell
    playable_area: 1000
    bounds:
      min: {x: 0, y: 0, z: 0}
      max: {x: 10, y: 10, z: 10}
areas:
  - name: plaza
    population: townsfolk
    generator:
      kind: single_cell
      cell: plaza_cell
entities:
  - name: portal
    bounds: {shape: sphere, radius: 30}
  - name: citizen
    bounds: {shape: capsule, radius: 20, half_height: 40, collision: blocking}
populations:
  - name: townsfolk
    density: 1
    entries:
      - entity: citizen
        weight: 1
        count: 3
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	region, ok := c.Region("town")
	require.True(t, ok)
	assert.Equal(t, RegionGeneratorStaticArea, region.Generator.Kind)
	assert.Equal(t, Ref("plaza"), region.Generator.StartArea)

	cell, ok := c.Cell("plaza_cell")
	require.True(t, ok)
	assert.Equal(t, WallsN|WallsS, cell.Walls)
	assert.Equal(t, -1.0, cell.PlayableArea, "незаданная площадь должна быть -1")
	assert.Equal(t, -1.0, cell.SpawnableArea)
	require.Len(t, cell.NaviPatch.Walkable, 1)
	assert.Equal(t, vec.New(256, 256, 0), cell.NaviPatch.Walkable[0].Bounds.Max)
	require.Len(t, cell.Markers, 1)
	assert.Equal(t, uint64(77), cell.Markers[0].Guid)

	measured, _ := c.Cell("measured_cell")
	assert.Equal(t, 1000.0, measured.PlayableArea)
	assert.Equal(t, -1.0, measured.SpawnableArea)

	assert.Equal(t, []Ref{"town"}, c.RegionNames())
}

func TestParseCatalogRejectsUnknownRefs(t *testing.T) {
	_, err := ParseCatalog([]byte(`
areas:
  - name: broken
    generator: {kind: single_cell, cell: missing}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	c := NewMemoryCatalog()
	require.NoError(t, c.AddEntity(&EntityPrototype{Name: "a"}))
	err := c.AddEntity(&EntityPrototype{Name: "a"})
	assert.True(t, errors.Is(err, ErrDuplicatePrototype))
}

func TestBoundsPrototypeBuild(t *testing.T) {
	b, err := BoundsPrototype{Shape: "capsule", Radius: 20, HalfHeight: 40, Collision: "blocking", BlocksLineOfSight: true}.
		Build(vec.New(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, physics.ShapeCapsule, b.Shape)
	assert.Equal(t, physics.CollisionBlocking, b.Collision)
	assert.True(t, b.BlocksLineOfSight)
	assert.Equal(t, vec.New(1, 2, 3), b.Center)

	_, err = BoundsPrototype{Shape: "torus"}.Build(vec.Zero)
	assert.Error(t, err)
}

func TestParseWalls(t *testing.T) {
	w, err := ParseWalls("wn")
	require.NoError(t, err)
	assert.Equal(t, WallsN|WallsW, w)
	assert.Equal(t, "NW", w.String())

	w, err = ParseWalls("-")
	require.NoError(t, err)
	assert.Equal(t, WallsNone, w)

	_, err = ParseWalls("NX")
	assert.Error(t, err)
}
