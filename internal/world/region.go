package world

import (
	"fmt"
	"iter"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/annel0/mmo-region/internal/entity"
	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/navi"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/spatial"
	"github.com/annel0/mmo-region/internal/vec"
)

// RegionSettings параметры создания региона
type RegionSettings struct {
	InstanceAddress uint64
	Prototype       proto.Ref
	Seed            int64
	Bounds          physics.Aabb
	GenerateAreas   bool
	MatchNumber     int
	// Owner вид игрока для приватного экземпляра
	Owner *WorldView
	// MarkerFilter если задан, маркеры, для которых он вернул true, пропускаются
	MarkerFilter func(proto.MarkerPrototype) bool
}

// Region экземпляр мира: области, пространственные индексы, матрица коллизий и навигация
type Region struct {
	id        uint64
	manager   *RegionManager
	prototype *proto.RegionPrototype
	settings  RegionSettings
	log       *logging.Logger

	randomSeed int64
	rng        *rand.Rand

	bounds physics.Aabb
	status RegionStatus

	areas     map[uint32]*Area
	startArea *Area
	entities  map[uint64]*entity.WorldEntity

	cellPartition   *spatial.Quadtree[*Cell]
	entityPartition *EntityPartition

	collisionIds    physics.CollisionIdAllocator
	collisionMatrix *physics.CollisionMatrix

	naviMesh navi.Mesh

	missionManager    *MissionManager
	populationManager *PopulationManager
	uiDataProvider    *UIDataProvider
	objectiveGraph    *ObjectiveGraph
	progressionGraph  *RegionProgressionGraph
	pathCache         PathCache

	createdTime       time.Time
	visitedTime       time.Time
	shutdownRequested bool
	generationAttempt int
}

func newRegion(manager *RegionManager, id uint64) *Region {
	now := manager.now()
	return &Region{
		id:               id,
		manager:          manager,
		log:              manager.log,
		areas:            make(map[uint32]*Area),
		entities:         make(map[uint64]*entity.WorldEntity),
		collisionMatrix:  physics.NewCollisionMatrix(),
		progressionGraph: NewRegionProgressionGraph(),
		createdTime:      now,
		visitedTime:      now,
	}
}

func (r *Region) ID() uint64                                { return r.id }
func (r *Region) Prototype() *proto.RegionPrototype         { return r.prototype }
func (r *Region) Settings() RegionSettings                  { return r.settings }
func (r *Region) Seed() int64                               { return r.randomSeed }
func (r *Region) Bounds() physics.Aabb                      { return r.bounds }
func (r *Region) Status() RegionStatus                      { return r.status }
func (r *Region) StartArea() *Area                          { return r.startArea }
func (r *Region) NaviMesh() navi.Mesh                       { return r.naviMesh }
func (r *Region) Manager() *RegionManager                   { return r.manager }
func (r *Region) Catalog() proto.Catalog                    { return r.manager.catalog }
func (r *Region) MissionManager() *MissionManager           { return r.missionManager }
func (r *Region) PopulationManager() *PopulationManager     { return r.populationManager }
func (r *Region) UIDataProvider() *UIDataProvider           { return r.uiDataProvider }
func (r *Region) ObjectiveGraph() *ObjectiveGraph           { return r.objectiveGraph }
func (r *Region) ProgressionGraph() *RegionProgressionGraph { return r.progressionGraph }
func (r *Region) PathCache() *PathCache                     { return &r.pathCache }
func (r *Region) CreatedTime() time.Time                    { return r.createdTime }
func (r *Region) VisitedTime() time.Time                    { return r.visitedTime }
func (r *Region) MatchNumber() int                          { return r.settings.MatchNumber }
func (r *Region) IsShutdownRequested() bool                 { return r.shutdownRequested }
func (r *Region) GenerationAttempt() int                    { return r.generationAttempt }
func (r *Region) CellPartitionLen() int                     { return partitionLen(r.cellPartition) }

func partitionLen(q *spatial.Quadtree[*Cell]) int {
	if q == nil {
		return 0
	}
	return q.Len()
}

// PrototypeRef имя прототипа региона
func (r *Region) PrototypeRef() proto.Ref {
	if r.prototype == nil {
		return r.settings.Prototype
	}
	return r.prototype.Name
}

// Level уровень региона
func (r *Region) Level() int {
	if r.prototype == nil {
		return 0
	}
	return r.prototype.Level
}

// IsGenerated true после успешной генерации областей
func (r *Region) IsGenerated() bool { return r.status&RegionStatusGenerateAreas != 0 }

// IsShuttingDown true после начала Shutdown
func (r *Region) IsShuttingDown() bool { return r.status&RegionStatusShutdown != 0 }

// Visited отмечает посещение региона игроком
func (r *Region) Visited() {
	r.visitedTime = r.manager.now()
}

// RequestShutdown просит менеджер уничтожить регион при ближайшей очистке
func (r *Region) RequestShutdown() {
	r.shutdownRequested = true
}

func (r *Region) String() string {
	return fmt.Sprintf("Region[0x%X %s seed=%d]", r.id, r.PrototypeRef(), r.randomSeed)
}

// Initialize привязывает прототип и подсистемы и при необходимости генерирует области
func (r *Region) Initialize(settings RegionSettings) bool {
	p, ok := r.Catalog().Region(settings.Prototype)
	if !ok {
		r.log.Warn("⚠️ Region 0x%X: неизвестный прототип %q", r.id, settings.Prototype)
		return false
	}
	r.prototype = p
	r.settings = settings
	r.randomSeed = settings.Seed
	r.rng = rand.New(rand.NewSource(settings.Seed))
	r.naviMesh = navi.NewPatchMesh()

	r.populationManager = NewPopulationManager(r)
	r.missionManager = NewMissionManager(r)
	r.uiDataProvider = NewUIDataProvider(r)
	r.objectiveGraph = NewObjectiveGraph(r)
	r.populationManager.InitializeForRegion()
	r.missionManager.InitializeForRegion()
	r.uiDataProvider.InitializeForRegion()

	if !settings.Bounds.IsZero() && !r.SetBound(settings.Bounds) {
		return false
	}
	if settings.GenerateAreas {
		return r.GenerateAreas()
	}
	return true
}

// SetBound фиксирует границы региона и создает индексы и навигационную сетку.
// Границы меняются только пока индексы пусты.
func (r *Region) SetBound(bounds physics.Aabb) bool {
	if !bounds.IsValid() || bounds.Volume() <= 0 {
		r.log.Warn("⚠️ %s: недопустимые границы %s", r, bounds)
		return false
	}
	if bounds == r.bounds {
		return true
	}
	if r.cellPartition != nil && (r.cellPartition.Len() > 0 || r.entityPartition.Len() > 0) {
		r.log.Warn("⚠️ %s: границы нельзя менять после заполнения индексов", r)
		return false
	}

	r.bounds = bounds
	r.cellPartition = spatial.NewQuadtree(bounds, cellPartitionMinRadius, func(c *Cell) physics.Aabb { return c.regionBounds })
	r.entityPartition = NewEntityPartition(bounds)
	if !r.naviMesh.Initialize(bounds, r.manager.config.NaviCellSize, r.String()) {
		r.log.Warn("⚠️ %s: навигационная сетка не инициализирована", r)
		return false
	}

	// ячейки, созданные до появления индекса, индексируются здесь
	for _, area := range r.Areas() {
		for _, c := range area.Cells() {
			c.addToPartition()
		}
	}
	return true
}

// GenerateAreas конвейер генерации областей
func (r *Region) GenerateAreas() bool {
	if r.status&RegionStatusGenerateAreas != 0 {
		r.log.Warn("⚠️ %s: области уже сгенерированы", r)
		return false
	}
	r.status |= RegionStatusGenerateAreas

	generator, err := r.manager.newGenerator(r.prototype.Generator)
	if err != nil {
		r.log.Warn("⚠️ %s: %v", r, err)
		return false
	}
	if !generator.GenerateRegion(r.log, r.randomSeed, r) {
		r.log.Warn("⚠️ %s: генератор не создал области", r)
		return false
	}
	r.startArea = generator.StartArea()

	for _, area := range r.Areas() {
		if !r.createSubAreas(area, 0) {
			return false
		}
	}

	bound := physics.InvertedLimit
	for _, area := range r.Areas() {
		bound = bound.Union(area.RegionBounds())
	}
	if !r.SetBound(bound) {
		return false
	}

	ids := r.areaIDs()
	success := r.generateAllAreas(generator, ids, GenerateFlagBackground|GenerateFlagPostInitialize|GenerateFlagNavi)
	if !success {
		return false
	}

	if !r.GenerateNaviMesh() {
		return false
	}
	success = r.generateAllAreas(generator, r.areaIDs(), GenerateFlagPathCollection)
	if !success {
		return false
	}

	r.progressionGraph.Build(r.startArea)
	r.objectiveGraph.Build()
	if !r.missionManager.GenerateMissionPopulation() {
		return false
	}

	return r.generateAllAreas(generator, r.areaIDs(), GenerateFlagPopulation|GenerateFlagPostGenerate)
}

func (r *Region) generateAllAreas(generator RegionGenerator, ids []uint32, flags GenerateFlag) bool {
	success := true
	for _, area := range r.Areas() {
		success = area.Generate(generator, ids, flags) && success
	}
	return success
}

// GenerateNaviMesh строит навигационную сетку из вшитых патчей
func (r *Region) GenerateNaviMesh() bool {
	if r.naviMesh == nil || !r.naviMesh.GenerateMesh() {
		r.log.Warn("⚠️ %s: не удалось построить навигационную сетку", r)
		return false
	}
	return true
}

// maxSubAreaDepth предел вложенности подобластей
const maxSubAreaDepth = 8

// createSubAreas создает подобласти parent по каталогу. Вызывается до расчета
// границ региона, чтобы подобласти вошли в объединение.
func (r *Region) createSubAreas(parent *Area, depth int) bool {
	if len(parent.prototype.SubAreas) == 0 {
		return true
	}
	if depth >= maxSubAreaDepth {
		r.log.Warn("⚠️ %s: вложенность подобластей %s превышает %d", r, parent.prototype.Name, maxSubAreaDepth)
		return false
	}
	for _, entry := range parent.prototype.SubAreas {
		sub := r.CreateArea(entry.Area, parent.AreaToRegion(entry.Origin), parent)
		if sub == nil {
			return false
		}
		parent.subAreas = append(parent.subAreas, sub)
		if !r.createSubAreas(sub, depth+1) {
			return false
		}
	}
	return true
}

// CreateArea создает и инициализирует область
func (r *Region) CreateArea(ref proto.Ref, origin vec.Vec3, parent *Area) *Area {
	area := newArea(r.manager.AllocateAreaId(), r)
	if !area.Initialize(AreaSettings{Prototype: ref, Origin: origin, Parent: parent}) {
		return nil
	}
	if !r.AddArea(area) {
		return nil
	}
	return area
}

// AddArea регистрирует область
func (r *Region) AddArea(area *Area) bool {
	if area == nil || area.region != r {
		r.log.Warn("⚠️ %s: попытка добавить чужую область", r)
		return false
	}
	if _, exists := r.areas[area.id]; exists {
		r.log.Warn("⚠️ %s: область %d уже существует", r, area.id)
		return false
	}
	r.areas[area.id] = area
	return true
}

// GetAreaById область по ID
func (r *Region) GetAreaById(id uint32) *Area {
	return r.areas[id]
}

// AreaCount число областей
func (r *Region) AreaCount() int { return len(r.areas) }

// Areas области по возрастанию ID
func (r *Region) Areas() []*Area {
	areas := make([]*Area, 0, len(r.areas))
	for _, a := range r.areas {
		areas = append(areas, a)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].id < areas[j].id })
	return areas
}

func (r *Region) areaIDs() []uint32 {
	ids := make([]uint32, 0, len(r.areas))
	for _, a := range r.Areas() {
		ids = append(ids, a.id)
	}
	return ids
}

// IterateAreas области, пересекающие объем; nil означает все
func (r *Region) IterateAreas(bound physics.Volume) iter.Seq[*Area] {
	return func(yield func(*Area) bool) {
		for _, a := range r.Areas() {
			if bound != nil && !bound.IntersectsAabb(a.regionBounds) {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// IterateCellsInVolume ячейки, пересекающие объем
func (r *Region) IterateCellsInVolume(v physics.Volume) iter.Seq[*Cell] {
	if r.cellPartition == nil {
		return func(func(*Cell) bool) {}
	}
	return r.cellPartition.IterateInVolume(v)
}

// GetCellAtPosition ячейка, содержащая точку в проекции XY
func (r *Region) GetCellAtPosition(p vec.Vec3) *Cell {
	probe := physics.Aabb{
		Min: vec.New(p.X, p.Y, -math.MaxFloat64),
		Max: vec.New(p.X, p.Y, math.MaxFloat64),
	}
	var best *Cell
	for c := range r.IterateCellsInVolume(probe) {
		if c.IntersectsXY(p) && (best == nil || c.id < best.id) {
			best = c
		}
	}
	return best
}

// GetAreaAtPosition область, содержащая точку
func (r *Region) GetAreaAtPosition(p vec.Vec3) *Area {
	if c := r.GetCellAtPosition(p); c != nil {
		return c.area
	}
	for _, a := range r.Areas() {
		if a.regionBounds.IntersectsXY(p) {
			return a
		}
	}
	return nil
}

// GetDistanceToClosestAreaBounds расстояние в плоскости до ближайшей области
func (r *Region) GetDistanceToClosestAreaBounds(p vec.Vec3) float64 {
	best := math.MaxFloat64
	for _, a := range r.areas {
		best = math.Min(best, a.regionBounds.DistanceToPoint2D(p))
	}
	return best
}

// filterMarker true, если маркер нужно пропустить
func (r *Region) filterMarker(m proto.MarkerPrototype) bool {
	return r.settings.MarkerFilter != nil && r.settings.MarkerFilter(m)
}

// Shutdown уничтожает содержимое региона в фиксированном порядке.
// Повторный вызов ничего не делает.
func (r *Region) Shutdown() {
	if r.IsShuttingDown() {
		return
	}
	r.status |= RegionStatusShutdown

	for _, e := range r.Entities() {
		if e.IsPlayerOwned() {
			r.ExitWorld(e)
			continue
		}
		if e.IsHotspot() {
			// хотспоты уничтожаются вместе с ячейками
			continue
		}
		r.DestroyEntity(e)
	}

	if r.missionManager != nil {
		r.missionManager.Shutdown()
	}
	if r.populationManager != nil {
		r.populationManager.Shutdown()
	}
	if r.uiDataProvider != nil {
		r.uiDataProvider.Shutdown()
	}
	if r.objectiveGraph != nil {
		r.objectiveGraph.Shutdown()
	}

	if r.naviMesh != nil {
		r.naviMesh.Release()
	}

	for _, area := range r.Areas() {
		area.destroy()
	}
	clear(r.areas)
	r.startArea = nil
	r.pathCache.Clear()
}
