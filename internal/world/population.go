package world

import (
	"math"
	"math/rand"

	"github.com/annel0/mmo-region/internal/entity"
	"github.com/annel0/mmo-region/internal/navi"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
	opensimplex "github.com/ojrac/opensimplex-go"
)

const (
	// populationAreaUnit площадь, к которой относится плотность прототипа
	populationAreaUnit = 10000.0
	// populationNoiseScale масштаб шума плотности в единицах региона
	populationNoiseScale = 512.0
)

// SpawnSpec отложенный спавн сущности
type SpawnSpec struct {
	Entity   proto.Ref
	Position vec.Vec3
	// Radius разброс позиции; 0 означает точную позицию
	Radius float64
}

// SpawnScheduler очередь спавнов ячейки. Спавны выполняются,
// когда ячейка впервые попадает в зону интереса игрока.
type SpawnScheduler struct {
	cell    *Cell
	pending []SpawnSpec
	spawned []uint64
}

// Schedule ставит спавн в очередь
func (s *SpawnScheduler) Schedule(spec SpawnSpec) {
	s.pending = append(s.pending, spec)
}

// Pending число ожидающих спавнов
func (s *SpawnScheduler) Pending() int { return len(s.pending) }

// Spawned ID созданных планировщиком сущностей
func (s *SpawnScheduler) Spawned() []uint64 { return s.spawned }

// Clear отбрасывает очередь
func (s *SpawnScheduler) Clear() {
	s.pending = nil
	s.spawned = nil
}

// ScheduleSpawns выполняет все ожидающие спавны и возвращает число созданных сущностей
func (s *SpawnScheduler) ScheduleSpawns() int {
	if len(s.pending) == 0 {
		return 0
	}
	region := s.cell.Region()
	if region.IsShuttingDown() {
		return 0
	}

	pending := s.pending
	s.pending = nil
	created := 0
	for _, spec := range pending {
		pos, ok := s.resolvePosition(region, spec)
		if !ok {
			region.log.Debug("🌱 Cell %d: нет места для %s около (%.0f, %.0f)", s.cell.id, spec.Entity, spec.Position.X, spec.Position.Y)
			continue
		}
		e := region.CreateEntity(entity.Settings{Prototype: spec.Entity, Position: pos})
		if e == nil {
			continue
		}
		s.spawned = append(s.spawned, e.ID())
		created++
	}
	if created > 0 {
		region.log.Debug("🌱 Cell %d: заспавнено %d из %d", s.cell.id, created, len(pending))
	}
	return created
}

func (s *SpawnScheduler) resolvePosition(region *Region, spec SpawnSpec) (vec.Vec3, bool) {
	if spec.Radius <= 0 {
		return spec.Position, true
	}
	p, ok := region.Catalog().Entity(spec.Entity)
	if !ok {
		return vec.Zero, false
	}
	bounds, err := p.Bounds.Build(spec.Position)
	if err != nil {
		return vec.Zero, false
	}
	return region.ChooseRandomPositionNearPoint(PositionQuery{
		Origin:        spec.Position,
		MaxRadius:     spec.Radius,
		Bounds:        bounds,
		PathFlags:     navi.PathFlagsWalk,
		PositionFlags: PositionCheckCanBeBlockedEntity | PositionCheckPreferNoEntity,
		BlockingFlags: BlockingCheckSelf | BlockingCheckSpawns,
	})
}

// PopulationManager распределяет популяцию областей по планировщикам ячеек
type PopulationManager struct {
	region     *Region
	noise      opensimplex.Noise
	rng        *rand.Rand
	schedulers map[uint32]*SpawnScheduler
}

// NewPopulationManager создает менеджер популяции региона
func NewPopulationManager(region *Region) *PopulationManager {
	return &PopulationManager{
		region:     region,
		schedulers: make(map[uint32]*SpawnScheduler),
	}
}

// InitializeForRegion готовит шум и генератор случайных чисел от seed региона
func (pm *PopulationManager) InitializeForRegion() bool {
	pm.noise = opensimplex.NewNormalized(pm.region.randomSeed)
	pm.rng = rand.New(rand.NewSource(pm.region.randomSeed ^ 0x5f3759df))
	return true
}

// SchedulerForCell планировщик ячейки, создается при первом обращении
func (pm *PopulationManager) SchedulerForCell(c *Cell) *SpawnScheduler {
	s, ok := pm.schedulers[c.id]
	if !ok {
		s = &SpawnScheduler{cell: c}
		pm.schedulers[c.id] = s
	}
	return s
}

// PendingSpawns суммарное число ожидающих спавнов
func (pm *PopulationManager) PendingSpawns() int {
	total := 0
	for _, s := range pm.schedulers {
		total += s.Pending()
	}
	return total
}

// DensityAt значение шума плотности в точке, [0, 1)
func (pm *PopulationManager) DensityAt(p vec.Vec3) float64 {
	return pm.noise.Eval2(p.X/populationNoiseScale, p.Y/populationNoiseScale)
}

// AddPopulationArea раскладывает таблицу популяции области по ячейкам.
// Число спавнов ячейки зависит от ее площади для спавна и шума плотности.
func (pm *PopulationManager) AddPopulationArea(area *Area) int {
	pop := area.Population()
	if pop == nil || len(pop.Entries) == 0 {
		return 0
	}

	scheduled := 0
	cells := area.Cells()
	if pop.Density > 0 {
		for _, c := range cells {
			n := pm.DensityAt(c.RegionPosition())
			count := int(math.Round(pop.Density * c.SpawnableNavArea() / populationAreaUnit * (0.5 + n)))
			for i := 0; i < count; i++ {
				entry, ok := pm.pickEntry(pop.Entries)
				if !ok {
					break
				}
				pm.scheduleInCell(c, entry.Entity)
				scheduled++
			}
		}
	}
	scheduled += pm.distributeCounts(cells, pop.Entries)
	return scheduled
}

// AddMissionPopulation добавляет популяцию миссии в область
func (pm *PopulationManager) AddMissionPopulation(area *Area, entries []proto.PopulationEntry) int {
	return pm.distributeCounts(area.Cells(), entries)
}

// AddMarkerSpawn планирует спавн по маркеру. Маркер без сущности берет ее из таблицы области.
func (pm *PopulationManager) AddMarkerSpawn(c *Cell, m proto.MarkerPrototype) bool {
	ref := m.Entity
	if !ref.IsValid() {
		pop := c.area.Population()
		if pop == nil {
			return false
		}
		entry, ok := pm.pickEntry(pop.Entries)
		if !ok {
			return false
		}
		ref = entry.Entity
	}
	pm.SchedulerForCell(c).Schedule(SpawnSpec{Entity: ref, Position: m.Position})
	return true
}

// distributeCounts раздает фиксированные Count записей ячейкам пропорционально площади спавна
func (pm *PopulationManager) distributeCounts(cells []*Cell, entries []proto.PopulationEntry) int {
	total := 0.0
	for _, c := range cells {
		total += c.SpawnableNavArea()
	}
	if total <= 0 {
		return 0
	}

	scheduled := 0
	for _, entry := range entries {
		for i := 0; i < entry.Count; i++ {
			pick := pm.rng.Float64() * total
			for _, c := range cells {
				pick -= c.SpawnableNavArea()
				if pick < 0 {
					pm.scheduleInCell(c, entry.Entity)
					scheduled++
					break
				}
			}
		}
	}
	return scheduled
}

func (pm *PopulationManager) scheduleInCell(c *Cell, ref proto.Ref) {
	b := c.RegionBounds()
	radius := math.Min(b.Width(), b.Length()) / 2
	pm.SchedulerForCell(c).Schedule(SpawnSpec{
		Entity:   ref,
		Position: vec.New(b.Center().X, b.Center().Y, c.RegionPosition().Z),
		Radius:   radius,
	})
}

// pickEntry взвешенный выбор записи; записи без веса не участвуют
func (pm *PopulationManager) pickEntry(entries []proto.PopulationEntry) (proto.PopulationEntry, bool) {
	total := 0.0
	for _, e := range entries {
		if e.Weight > 0 {
			total += e.Weight
		}
	}
	if total <= 0 {
		return proto.PopulationEntry{}, false
	}
	pick := pm.rng.Float64() * total
	var last proto.PopulationEntry
	for _, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		last = e
		pick -= e.Weight
		if pick < 0 {
			return e, true
		}
	}
	return last, true
}

// Shutdown отбрасывает все очереди
func (pm *PopulationManager) Shutdown() {
	for _, s := range pm.schedulers {
		s.Clear()
	}
	clear(pm.schedulers)
}
