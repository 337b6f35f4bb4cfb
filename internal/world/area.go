package world

import (
	"math/rand"
	"sort"

	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
)

// ConnectPosition роль точки соединения в цепочке областей
type ConnectPosition int

const (
	ConnectPositionOne ConnectPosition = iota
	ConnectPositionBegin
	ConnectPositionInside
	ConnectPositionEnd
)

func (p ConnectPosition) String() string {
	switch p {
	case ConnectPositionOne:
		return "One"
	case ConnectPositionBegin:
		return "Begin"
	case ConnectPositionInside:
		return "Inside"
	case ConnectPositionEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// AreaConnectionPoint точка соединения с соседней областью
type AreaConnectionPoint struct {
	Position      vec.Vec3
	ConnectedArea *Area
	Kind          ConnectPosition
}

// AreaSettings параметры создания области
type AreaSettings struct {
	Prototype proto.Ref
	Origin    vec.Vec3
	Parent    *Area
}

// Area владеет ячейками и управляет их поэтапной генерацией
type Area struct {
	id        uint32
	region    *Region
	prototype *proto.AreaPrototype
	parent    *Area
	subAreas  []*Area

	origin       vec.Vec3
	localBounds  physics.Aabb
	regionBounds physics.Aabb

	generator AreaGenerator
	status    GenerateFlag
	rng       *rand.Rand

	cells       map[uint32]*Cell
	connections []AreaConnectionPoint

	population       *proto.PopulationPrototype
	playableNavArea  float64
	spawnableNavArea float64
}

func newArea(id uint32, region *Region) *Area {
	return &Area{
		id:     id,
		region: region,
		cells:  make(map[uint32]*Cell),
	}
}

func (a *Area) ID() uint32                             { return a.id }
func (a *Area) Region() *Region                        { return a.region }
func (a *Area) Prototype() *proto.AreaPrototype        { return a.prototype }
func (a *Area) PrototypeRef() proto.Ref                { return a.prototype.Name }
func (a *Area) Origin() vec.Vec3                       { return a.origin }
func (a *Area) LocalBounds() physics.Aabb              { return a.localBounds }
func (a *Area) RegionBounds() physics.Aabb             { return a.regionBounds }
func (a *Area) Status() GenerateFlag                   { return a.status }
func (a *Area) Parent() *Area                          { return a.parent }
func (a *Area) SubAreas() []*Area                      { return a.subAreas }
func (a *Area) Population() *proto.PopulationPrototype { return a.population }
func (a *Area) PlayableNavArea() float64               { return a.playableNavArea }
func (a *Area) SpawnableNavArea() float64              { return a.spawnableNavArea }
func (a *Area) CellCount() int                         { return len(a.cells) }

// Level уровень области с учетом смещения прототипа
func (a *Area) Level() int {
	return a.region.Level() + a.prototype.LevelOffset
}

// IsGenerated проверяет завершение этапа
func (a *Area) IsGenerated(phase GenerateFlag) bool {
	return a.status.Has(phase)
}

// AreaToRegion переводит локальную точку в координаты региона
func (a *Area) AreaToRegion(p vec.Vec3) vec.Vec3 {
	return p.Add(a.origin)
}

// Initialize привязывает прототип и генератор и вычисляет локальные границы
func (a *Area) Initialize(settings AreaSettings) bool {
	p, ok := a.region.Catalog().Area(settings.Prototype)
	if !ok {
		a.region.log.Warn("⚠️ Area %d: неизвестный прототип %q", a.id, settings.Prototype)
		return false
	}
	generator, err := newAreaGenerator(p.Generator)
	if err != nil {
		a.region.log.Warn("⚠️ Area %d (%s): %v", a.id, p.Name, err)
		return false
	}

	a.prototype = p
	a.parent = settings.Parent
	a.generator = generator
	a.rng = rand.New(rand.NewSource(a.region.randomSeed + int64(a.id)))
	if p.Population.IsValid() {
		a.population, _ = a.region.Catalog().Population(p.Population)
	}

	if !generator.Initialize(a) {
		a.region.log.Warn("⚠️ Area %d (%s): генератор не инициализирован", a.id, p.Name)
		return false
	}
	a.localBounds = generator.Bounds()
	a.origin = settings.Origin
	a.regionBounds = a.localBounds.Translate(a.origin)
	return true
}

// SetOrigin перемещает область вместе с точками соединения и ячейками
func (a *Area) SetOrigin(origin vec.Vec3) {
	delta := origin.Sub(a.origin)
	a.origin = origin
	a.regionBounds = a.localBounds.Translate(origin)

	for i := range a.connections {
		old := a.connections[i].Position
		a.connections[i].Position = old.Add(delta)
		other := a.connections[i].ConnectedArea
		for j := range other.connections {
			if other.connections[j].ConnectedArea == a && other.connections[j].Position.Equals(old) {
				other.connections[j].Position = old.Add(delta)
			}
		}
	}
	for _, cell := range a.Cells() {
		cell.SetAreaPosition(cell.areaPosition, cell.areaOrientation)
	}
}

// Cells ячейки области по возрастанию ID
func (a *Area) Cells() []*Cell {
	cells := make([]*Cell, 0, len(a.cells))
	for _, c := range a.cells {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].id < cells[j].id })
	return cells
}

// GetCell ячейка области по ID
func (a *Area) GetCell(id uint32) *Cell {
	return a.cells[id]
}

// GetCellAtPosition ячейка области, содержащая точку в проекции XY
func (a *Area) GetCellAtPosition(p vec.Vec3) *Cell {
	for _, c := range a.Cells() {
		if c.IntersectsXY(p) {
			return c
		}
	}
	return nil
}

// AddCell создает, инициализирует и регистрирует ячейку
func (a *Area) AddCell(settings CellSettings) *Cell {
	manager := a.region.manager
	cell := newCell(manager.AllocateCellId(), a)
	if !cell.Initialize(settings) {
		return nil
	}
	a.cells[cell.id] = cell
	manager.AddCell(cell)
	cell.addToPartition()
	return cell
}

// CreateCellConnection связывает две ячейки области парой односторонних связей
func (a *Area) CreateCellConnection(first, second uint32) bool {
	c1, c2 := a.cells[first], a.cells[second]
	if c1 == nil || c2 == nil || first == second {
		return false
	}
	c1.connections[second] = struct{}{}
	c2.connections[first] = struct{}{}
	return true
}

// Connections точки соединения области
func (a *Area) Connections() []AreaConnectionPoint {
	return a.connections
}

// IsConnectedTo проверяет наличие соединения с областью other
func (a *Area) IsConnectedTo(other *Area) bool {
	for _, c := range a.connections {
		if c.ConnectedArea == other {
			return true
		}
	}
	return false
}

// CreateConnection создает симметричную пару точек соединения
func CreateConnection(first, second *Area, position vec.Vec3, kind ConnectPosition) {
	first.connections = append(first.connections, AreaConnectionPoint{Position: position, ConnectedArea: second, Kind: kind})
	second.connections = append(second.connections, AreaConnectionPoint{Position: position, ConnectedArea: first, Kind: kind})
}

// DestroyAllConnections убирает эту область из всех связанных областей
func (a *Area) DestroyAllConnections() {
	for _, c := range a.connections {
		c.ConnectedArea.removeConnectionsTo(a)
	}
	a.connections = nil
}

func (a *Area) removeConnectionsTo(other *Area) {
	kept := a.connections[:0]
	for _, c := range a.connections {
		if c.ConnectedArea != other {
			kept = append(kept, c)
		}
	}
	a.connections = kept
}

// Generate раскладывает флаги по этапам. Все запрошенные этапы выполняются,
// результат истинен только если все они успешны.
func (a *Area) Generate(generator RegionGenerator, areas []uint32, flags GenerateFlag) bool {
	success := true
	if flags.Has(GenerateFlagBackground) {
		success = a.generateBackground() && success
	}
	if flags.Has(GenerateFlagPostInitialize) {
		success = a.postInitialize() && success
	}
	if flags.Has(GenerateFlagNavi) {
		success = a.generateNavi() && success
	}
	if flags.Has(GenerateFlagPathCollection) {
		success = a.generatePathCollection(generator) && success
	}
	if flags.Has(GenerateFlagPopulation) {
		success = a.generatePopulation() && success
	}
	if flags.Has(GenerateFlagPostGenerate) {
		success = a.postGenerate(areas) && success
	}
	return success
}

// beginPhase проверяет предшественника. done=true если этап уже выполнен.
func (a *Area) beginPhase(phase GenerateFlag) (done bool, ok bool) {
	if a.status.Has(phase) {
		return true, true
	}
	if pred := phasePredecessor(phase); pred != GenerateFlagNone && !a.status.Has(pred) {
		a.region.log.Warn("⚠️ Area %d (%s): этап %s требует %s", a.id, a.prototype.Name, phase, pred)
		return false, false
	}
	return false, true
}

// markPhase единственная точка изменения статуса
func (a *Area) markPhase(phase GenerateFlag) {
	a.status |= phase
}

func (a *Area) generateBackground() bool {
	done, ok := a.beginPhase(GenerateFlagBackground)
	if done || !ok {
		return ok
	}
	if a.generator == nil {
		a.region.log.Warn("⚠️ Area %d: генератор уже освобожден", a.id)
		return false
	}
	if !a.generator.Generate(a.rng.Int63(), a) {
		a.region.log.Warn("⚠️ Area %d (%s): генерация ячеек не удалась", a.id, a.prototype.Name)
		return false
	}

	for _, sub := range a.subAreas {
		if !sub.generateBackground() {
			return false
		}
	}

	a.markPhase(GenerateFlagBackground)
	return true
}

func (a *Area) postInitialize() bool {
	done, ok := a.beginPhase(GenerateFlagPostInitialize)
	if done || !ok {
		return ok
	}
	created := 0
	for _, c := range a.Cells() {
		created += c.instanceInitializeSet()
	}
	if created > 0 {
		a.region.log.Debug("🧱 Area %d: создано %d сущностей из маркеров", a.id, created)
	}
	a.markPhase(GenerateFlagPostInitialize)
	return true
}

func (a *Area) generateNavi() bool {
	done, ok := a.beginPhase(GenerateFlagNavi)
	if done || !ok {
		return ok
	}
	for _, c := range a.Cells() {
		if !c.AddNavigationDataToRegion() {
			return false
		}
	}
	a.markPhase(GenerateFlagNavi)
	return true
}

func (a *Area) generatePathCollection(generator RegionGenerator) bool {
	done, ok := a.beginPhase(GenerateFlagPathCollection)
	if done || !ok {
		return ok
	}

	a.playableNavArea, a.spawnableNavArea = 0, 0
	for _, c := range a.Cells() {
		c.measureNavArea()
		a.playableNavArea += c.PlayableNavArea()
		a.spawnableNavArea += c.SpawnableNavArea()
	}

	nodes := make([]PathNode, 0, len(a.connections))
	for _, conn := range a.connections {
		nodes = append(nodes, PathNode{AreaID: a.id, TargetAreaID: conn.ConnectedArea.id, Position: conn.Position, Kind: conn.Kind})
	}
	a.region.PathCache().Append(nodes...)

	a.markPhase(GenerateFlagPathCollection)
	return true
}

func (a *Area) generatePopulation() bool {
	done, ok := a.beginPhase(GenerateFlagPopulation)
	if done || !ok {
		return ok
	}
	if pm := a.region.PopulationManager(); pm != nil {
		pm.AddPopulationArea(a)
		for _, c := range a.Cells() {
			for _, m := range c.spawnMarkers() {
				pm.AddMarkerSpawn(c, m)
			}
		}
	}
	a.markPhase(GenerateFlagPopulation)
	return true
}

func (a *Area) postGenerate(areas []uint32) bool {
	done, ok := a.beginPhase(GenerateFlagPostGenerate)
	if done || !ok {
		return ok
	}
	a.generator = nil
	a.region.log.Debug("✅ Area %d (%s): %d ячеек, %d соединений, сгенерировано вместе с %d областями",
		a.id, a.prototype.Name, len(a.cells), len(a.connections), len(areas))
	a.markPhase(GenerateFlagPostGenerate)
	return true
}

// destroy разрывает соединения и удаляет ячейки из индекса и реестра менеджера
func (a *Area) destroy() {
	a.DestroyAllConnections()
	manager := a.region.manager
	for _, c := range a.Cells() {
		c.shutdown()
		manager.RemoveCell(c.id)
	}
	a.cells = make(map[uint32]*Cell)
	a.generator = nil
}
