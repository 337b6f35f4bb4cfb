package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
	"github.com/stretchr/testify/require"
)

const testCatalogYAML = `
regions:
  - name: town
    level: 10
    generator:
      kind: static_area
      start_area: plaza
      areas:
        - area: plaza
          origin: {x: 0, y: 0, z: 0}
    missions:
      - name: escort
        area: plaza
        population:
          - entity: citizen
            count: 2
      - name: lost
        area: room
  - name: dungeon
    private: true
    generator:
      kind: sequence
      spacing: 0
      sequence: [room, room, room]
  - name: hub
    generator:
      kind: static_area
      areas:
        - area: hub
  - name: warren
    generator:
      kind: static_area
      areas:
        - area: warren
  - name: broken
    generator:
      kind: static_area
      areas:
        - area: void
cells:
  - name: plaza_cell
    bounds:
      min: {x: -256, y: -256, z: -64}
      max: {x: 256, y: 256, z: 64}
    navi_patch:
      walkable:
        - bounds: {min: {x: -256, y: -256, z: 0}, max: {x: 256, y: 256, z: 0}}
      blockers:
        - bounds: {min: {x: 100, y: -20, z: 0}, max: {x: 120, y: 20, z: 50}}
    markers:
      - kind: hotspot
        entity: portal
        guid: 77
        position: {x: -200, y: -200, z: 0}
      - kind: entity
        entity: statue
        position: {x: -100, y: 150, z: 0}
      - kind: spawn
        entity: citizen
        position: {x: 50, y: 50, z: 0}
  - name: room_cell
    bounds:
      min: {x: -128, y: -128, z: -64}
      max: {x: 128, y: 128, z: 64}
    navi_patch:
      walkable:
        - bounds: {min: {x: -128, y: -128, z: 0}, max: {x: 128, y: 128, z: 0}}
  - name: dead_end
    walls: ESW
    bounds:
      min: {x: -128, y: -128, z: -64}
      max: {x: 128, y: 128, z: 64}
    navi_patch:
      walkable:
        - bounds: {min: {x: -128, y: -128, z: 0}, max: {x: 128, y: 128, z: 0}}
  - name: bad_corridor
    walls: EW
    bounds:
      min: {x: 10, y: 10, z: 10}
      max: {x: -10, y: -10, z: -10}
  - name: bad_cell
    bounds:
      min: {x: 10, y: 10, z: 10}
      max: {x: -10, y: -10, z: -10}
areas:
  - name: plaza
    population: townsfolk
    generator: {kind: single_cell, cell: plaza_cell}
  - name: room
    generator: {kind: single_cell, cell: room_cell}
  - name: void
    generator: {kind: single_cell, cell: bad_cell}
  - name: hub
    generator: {kind: single_cell, cell: room_cell}
    sub_areas:
      - area: room
        origin: {x: 600, y: 0, z: 0}
  - name: warren
    generator:
      kind: cell_grid
      cell_set: [dead_end, bad_corridor]
      cell_size: 256
      width: 3
      height: 1
      fill_threshold: -10
entities:
  - name: portal
    bounds: {shape: sphere, radius: 30}
  - name: statue
    bounds: {shape: capsule, radius: 20, half_height: 40, collision: blocking, blocks_spawns: true, blocks_line_of_sight: true}
  - name: citizen
    bounds: {shape: capsule, radius: 10, half_height: 40, collision: blocking}
  - name: hero
    avatar: true
    bounds: {shape: capsule, radius: 10, half_height: 40, collision: blocking}
  - name: crate
    bounds: {shape: box, half_width: 10, half_length: 10, half_height: 10, collision: blocking, blocks_line_of_sight: true}
populations:
  - name: townsfolk
    entries:
      - entity: citizen
        weight: 1
        count: 3
`

// testBounds границы пустого региона без генерации
var testBounds = physics.NewAabb(vec.New(-512, -512, -64), vec.New(512, 512, 64))

func newTestCatalog(t *testing.T) *proto.MemoryCatalog {
	t.Helper()
	c, err := proto.ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err, "тестовый каталог должен разбираться")
	return c
}

func newTestManager(t *testing.T, opts ...ManagerOption) *RegionManager {
	t.Helper()
	opts = append([]ManagerOption{WithLogger(logging.GetComponentLogger("region-test"))}, opts...)
	m := NewRegionManager(newTestCatalog(t), DefaultManagerConfig(), opts...)
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m
}

// newTownRegion сгенерированный регион town
func newTownRegion(t *testing.T, m *RegionManager) *Region {
	t.Helper()
	r := m.CreateRegion(context.Background(), RegionSettings{
		InstanceAddress: m.AllocateRegionId(),
		Prototype:       "town",
		Seed:            42,
		GenerateAreas:   true,
	})
	require.NotNil(t, r, "регион town должен генерироваться")
	return r
}

// newBlankRegion регион с индексами, но без областей
func newBlankRegion(t *testing.T, m *RegionManager) *Region {
	t.Helper()
	r := m.CreateRegion(context.Background(), RegionSettings{
		InstanceAddress: m.AllocateRegionId(),
		Prototype:       "town",
		Seed:            7,
		Bounds:          testBounds,
	})
	require.NotNil(t, r, "пустой регион должен создаваться")
	return r
}

// fakeClock управляемые часы для проверки простоя
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memoryArchiveStore хранилище архивов в памяти
type memoryArchiveStore struct {
	mu    sync.Mutex
	saved map[uint64][]byte
}

func newMemoryArchiveStore() *memoryArchiveStore {
	return &memoryArchiveStore{saved: make(map[uint64][]byte)}
}

func (s *memoryArchiveStore) SaveArchive(ctx context.Context, id uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[id] = append([]byte(nil), data...)
	return nil
}

func (s *memoryArchiveStore) LoadArchive(ctx context.Context, id uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.saved[id]
	if !ok {
		return nil, ErrRegionNotFound
	}
	return data, nil
}

// failingGenerator генератор, который никогда не создает областей
type failingGenerator struct{}

func (failingGenerator) GenerateRegion(log *logging.Logger, seed int64, region *Region) bool {
	return false
}

func (failingGenerator) StartArea() *Area { return nil }
