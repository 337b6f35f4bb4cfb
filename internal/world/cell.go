package world

import (
	"sort"

	"github.com/annel0/mmo-region/internal/entity"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
)

// unsetNavArea признак незаданной навигационной площади
const unsetNavArea = -1.0

// CellSettings параметры создания ячейки
type CellSettings struct {
	Prototype         proto.Ref
	PositionInArea    vec.Vec3
	OrientationInArea vec.Orientation
	Connections       []uint32
}

// Cell листовая пространственная единица региона. Принадлежит ровно одной области.
type Cell struct {
	id        uint32
	area      *Area
	prototype *proto.CellPrototype

	areaPosition    vec.Vec3
	areaOrientation vec.Orientation
	transform       vec.Transform
	regionBounds    physics.Aabb
	walls           proto.Walls

	playableNavArea  float64
	spawnableNavArea float64

	connections map[uint32]struct{}

	hotspots         map[uint64]*entity.WorldEntity
	hotspotOccupants map[uint64]map[uint64]struct{}

	numInterestedPlayers int
	indexed              bool
}

func newCell(id uint32, area *Area) *Cell {
	return &Cell{
		id:               id,
		area:             area,
		playableNavArea:  unsetNavArea,
		spawnableNavArea: unsetNavArea,
		connections:      make(map[uint32]struct{}),
	}
}

func (c *Cell) ID() uint32                       { return c.id }
func (c *Cell) Area() *Area                      { return c.area }
func (c *Cell) Region() *Region                  { return c.area.region }
func (c *Cell) Prototype() *proto.CellPrototype  { return c.prototype }
func (c *Cell) RegionBounds() physics.Aabb       { return c.regionBounds }
func (c *Cell) Transform() vec.Transform         { return c.transform }
func (c *Cell) AreaPosition() vec.Vec3           { return c.areaPosition }
func (c *Cell) AreaOrientation() vec.Orientation { return c.areaOrientation }
func (c *Cell) Walls() proto.Walls               { return c.walls }
func (c *Cell) Type() CellType                   { return BuildTypeFromWalls(c.walls) }
func (c *Cell) NumInterestedPlayers() int        { return c.numInterestedPlayers }

// RegionPosition позиция ячейки в координатах региона
func (c *Cell) RegionPosition() vec.Vec3 { return c.transform.Translation }

// PlayableNavArea играбельная площадь; 0 пока не задана
func (c *Cell) PlayableNavArea() float64 {
	if c.playableNavArea == unsetNavArea {
		return 0
	}
	return c.playableNavArea
}

// SpawnableNavArea площадь для спавна; 0 пока не задана
func (c *Cell) SpawnableNavArea() float64 {
	if c.spawnableNavArea == unsetNavArea {
		return 0
	}
	return c.spawnableNavArea
}

// HasNavAreaMetrics true, если обе площади известны
func (c *Cell) HasNavAreaMetrics() bool {
	return c.playableNavArea != unsetNavArea && c.spawnableNavArea != unsetNavArea
}

// Initialize привязывает прототип и вычисляет преобразование.
// false при недопустимом прототипе; область продолжает генерацию без ячейки.
func (c *Cell) Initialize(settings CellSettings) bool {
	region := c.Region()
	p, ok := region.Catalog().Cell(settings.Prototype)
	if !ok {
		region.log.Warn("⚠️ Cell %d: неизвестный прототип %q", c.id, settings.Prototype)
		return false
	}
	if !p.Bounds.IsValid() {
		region.log.Warn("⚠️ Cell %d: прототип %s с недопустимыми границами %s", c.id, p.Name, p.Bounds)
		return false
	}

	c.prototype = p
	c.playableNavArea = p.PlayableArea
	c.spawnableNavArea = p.SpawnableArea
	if c.spawnableNavArea == unsetNavArea && c.playableNavArea != unsetNavArea {
		c.spawnableNavArea = c.playableNavArea
	}

	for _, id := range settings.Connections {
		c.connections[id] = struct{}{}
	}

	c.SetAreaPosition(settings.PositionInArea, settings.OrientationInArea)
	return true
}

// SetAreaPosition пересчитывает преобразование и границы.
// Проиндексированная ячейка переиндексируется.
func (c *Cell) SetAreaPosition(pos vec.Vec3, orientation vec.Orientation) {
	partition := c.Region().cellPartition
	wasIndexed := c.indexed && partition != nil
	if wasIndexed {
		partition.Remove(c)
	}

	c.areaPosition = pos
	c.areaOrientation = orientation
	c.transform = vec.BuildTransform(c.area.Origin().Add(pos), orientation)
	c.regionBounds = c.prototype.Bounds.Transform(c.transform).RoundToNearestInteger()
	c.walls = WallsRotate(c.prototype.Walls, yawSteps(orientation.Yaw))

	if wasIndexed {
		c.indexed = partition.Insert(c)
	}
}

// addToPartition индексирует ячейку в регионе
func (c *Cell) addToPartition() bool {
	partition := c.Region().cellPartition
	if partition == nil || c.indexed {
		return false
	}
	c.indexed = partition.Insert(c)
	return c.indexed
}

func (c *Cell) removeFromPartition() {
	if c.indexed && c.Region().cellPartition != nil {
		c.Region().cellPartition.Remove(c)
	}
	c.indexed = false
}

// IntersectsXY проверяет попадание точки в проекцию ячейки
func (c *Cell) IntersectsXY(p vec.Vec3) bool {
	return c.regionBounds.IntersectsXY(p)
}

// Connections связанные ячейки по возрастанию ID
func (c *Cell) Connections() []uint32 {
	ids := make([]uint32, 0, len(c.connections))
	for id := range c.connections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsConnectedTo проверяет одностороннюю связь с ячейкой id
func (c *Cell) IsConnectedTo(id uint32) bool {
	_, ok := c.connections[id]
	return ok
}

// AddNavigationDataToRegion вшивает навигационный патч и геометрию пропов в сетку региона
func (c *Cell) AddNavigationDataToRegion() bool {
	region := c.Region()
	if !c.area.IsGenerated(GenerateFlagBackground) {
		region.log.Warn("⚠️ Cell %d: область %d без этапа Background, навигация не добавлена", c.id, c.area.ID())
		return false
	}
	mesh := region.NaviMesh()
	if mesh == nil {
		return false
	}
	if !mesh.Stitch(c.prototype.NaviPatch, c.transform) {
		region.log.Warn("⚠️ Cell %d: не удалось вшить навигационный патч", c.id)
		return false
	}
	if !c.prototype.PropPatch.IsEmpty() {
		mesh.StitchProps(c.prototype.PropPatch, c.transform)
	}
	return true
}

// measureNavArea заполняет незаданные площади по сгенерированной сетке
func (c *Cell) measureNavArea() {
	if c.HasNavAreaMetrics() {
		return
	}
	mesh := c.Region().NaviMesh()
	if mesh == nil {
		return
	}
	area := mesh.CalcSpawnableArea(c.regionBounds)
	if c.playableNavArea == unsetNavArea {
		c.playableNavArea = area
	}
	if c.spawnableNavArea == unsetNavArea {
		c.spawnableNavArea = area
	}
}

// instanceInitializeSet создает сущности из маркеров ячейки
func (c *Cell) instanceInitializeSet() int {
	region := c.Region()
	created := 0
	for _, m := range c.prototype.Markers {
		if m.Kind != proto.MarkerEntity || region.filterMarker(m) {
			continue
		}
		settings := entity.Settings{
			Prototype:   m.Entity,
			Position:    c.transform.Apply(m.Position),
			Orientation: vec.Orientation{Yaw: m.Orientation.Yaw + c.transform.Yaw},
		}
		if region.CreateEntity(settings) != nil {
			created++
		}
	}
	return created
}

// spawnMarkers маркеры спавна в координатах региона
func (c *Cell) spawnMarkers() []proto.MarkerPrototype {
	var result []proto.MarkerPrototype
	for _, m := range c.prototype.Markers {
		if m.Kind != proto.MarkerSpawn || c.Region().filterMarker(m) {
			continue
		}
		m.Position = c.transform.Apply(m.Position)
		result = append(result, m)
	}
	return result
}

// OnAddedToAOI учитывает интерес игрока. Первый игрок запускает отложенные спавны.
func (c *Cell) OnAddedToAOI() {
	c.numInterestedPlayers++
	if c.numInterestedPlayers != 1 {
		return
	}
	region := c.Region()
	if pm := region.PopulationManager(); pm != nil {
		pm.SchedulerForCell(c).ScheduleSpawns()
	}
	region.RefreshSimulationInVolume(c.regionBounds)
}

// OnRemovedFromAOI снимает интерес игрока
func (c *Cell) OnRemovedFromAOI() {
	if c.numInterestedPlayers == 0 {
		c.Region().log.Warn("⚠️ Cell %d: счетчик интереса уже равен нулю", c.id)
		return
	}
	c.numInterestedPlayers--
	if c.numInterestedPlayers == 0 {
		c.Region().RefreshSimulationInVolume(c.regionBounds)
	}
}

// OnHotspotEnter регистрирует вход сущности в хотспот guid
func (c *Cell) OnHotspotEnter(guid uint64, other *entity.WorldEntity) bool {
	hotspot := c.getOrCreateHotspot(guid)
	if hotspot == nil {
		return false
	}
	if c.hotspotOccupants == nil {
		c.hotspotOccupants = make(map[uint64]map[uint64]struct{})
	}
	occupants, ok := c.hotspotOccupants[guid]
	if !ok {
		occupants = make(map[uint64]struct{})
		c.hotspotOccupants[guid] = occupants
	}
	occupants[other.ID()] = struct{}{}
	return true
}

// OnHotspotLeave регистрирует выход сущности из хотспота guid
func (c *Cell) OnHotspotLeave(guid uint64, other *entity.WorldEntity) bool {
	hotspot := c.getOrCreateHotspot(guid)
	if hotspot == nil {
		return false
	}
	occupants := c.hotspotOccupants[guid]
	if _, ok := occupants[other.ID()]; !ok {
		return false
	}
	delete(occupants, other.ID())
	return true
}

// Hotspot возвращает уже созданный хотспот
func (c *Cell) Hotspot(guid uint64) (*entity.WorldEntity, bool) {
	h, ok := c.hotspots[guid]
	return h, ok
}

// HotspotOccupants число сущностей внутри хотспота
func (c *Cell) HotspotOccupants(guid uint64) int {
	return len(c.hotspotOccupants[guid])
}

func (c *Cell) getOrCreateHotspot(guid uint64) *entity.WorldEntity {
	if h, ok := c.hotspots[guid]; ok {
		return h
	}
	region := c.Region()
	if region.IsShuttingDown() {
		return nil
	}

	for _, m := range c.prototype.Markers {
		if m.Kind != proto.MarkerHotspot || m.Guid != guid {
			continue
		}
		h := region.CreateEntity(entity.Settings{
			Prototype:   m.Entity,
			Position:    c.transform.Apply(m.Position),
			HotspotGuid: guid,
			NoCollide:   true,
		})
		if h == nil {
			return nil
		}
		if c.hotspots == nil {
			c.hotspots = make(map[uint64]*entity.WorldEntity)
		}
		c.hotspots[guid] = h
		return h
	}

	region.log.Warn("⚠️ Cell %d: хотспот %d не найден среди маркеров", c.id, guid)
	return nil
}

// shutdown уничтожает хотспоты и убирает ячейку из индекса
func (c *Cell) shutdown() {
	region := c.Region()
	guids := make([]uint64, 0, len(c.hotspots))
	for guid := range c.hotspots {
		guids = append(guids, guid)
	}
	sort.Slice(guids, func(i, j int) bool { return guids[i] < guids[j] })
	for _, guid := range guids {
		region.DestroyEntity(c.hotspots[guid])
	}
	c.hotspots = nil
	c.hotspotOccupants = nil
	c.removeFromPartition()
}
