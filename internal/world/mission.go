package world

import (
	"sort"

	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
)

// MissionState состояние миссии региона
type MissionState uint8

const (
	MissionStateInactive MissionState = iota
	MissionStateActive
	MissionStateCompleted
	MissionStateFailed
)

func (s MissionState) String() string {
	switch s {
	case MissionStateInactive:
		return "Inactive"
	case MissionStateActive:
		return "Active"
	case MissionStateCompleted:
		return "Completed"
	case MissionStateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Mission экземпляр миссии в регионе
type Mission struct {
	Prototype *proto.MissionPrototype
	State     MissionState
	Progress  int32
}

// MissionManager миссии региона и их популяция
type MissionManager struct {
	region   *Region
	missions map[proto.Ref]*Mission
}

// NewMissionManager создает менеджер миссий региона
func NewMissionManager(region *Region) *MissionManager {
	return &MissionManager{region: region, missions: make(map[proto.Ref]*Mission)}
}

// InitializeForRegion создает неактивные миссии из прототипа региона
func (m *MissionManager) InitializeForRegion() bool {
	p := m.region.Prototype()
	if p == nil {
		return false
	}
	for i := range p.Missions {
		mp := &p.Missions[i]
		m.missions[mp.Name] = &Mission{Prototype: mp}
	}
	return true
}

// Mission миссия по имени прототипа
func (m *MissionManager) Mission(name proto.Ref) (*Mission, bool) {
	mission, ok := m.missions[name]
	return mission, ok
}

// Missions миссии по имени
func (m *MissionManager) Missions() []*Mission {
	result := make([]*Mission, 0, len(m.missions))
	for _, mission := range m.missions {
		result = append(result, mission)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Prototype.Name < result[j].Prototype.Name })
	return result
}

// SetState меняет состояние миссии
func (m *MissionManager) SetState(name proto.Ref, state MissionState, progress int32) bool {
	mission, ok := m.missions[name]
	if !ok {
		return false
	}
	mission.State = state
	mission.Progress = progress
	return true
}

// GenerateMissionPopulation добавляет популяцию миссий в их области и активирует миссии.
// Миссия без подходящей области в этом регионе остается неактивной.
func (m *MissionManager) GenerateMissionPopulation() bool {
	pm := m.region.PopulationManager()
	for _, mission := range m.Missions() {
		mp := mission.Prototype
		matched := false
		for _, area := range m.region.Areas() {
			if mp.Area.IsValid() && area.PrototypeRef() != mp.Area {
				continue
			}
			matched = true
			if pm != nil && len(mp.Population) > 0 {
				pm.AddMissionPopulation(area, mp.Population)
			}
		}
		if !matched {
			m.region.log.Warn("⚠️ %s: миссия %s не нашла область %s", m.region, mp.Name, mp.Area)
			continue
		}
		mission.State = MissionStateActive
	}
	return true
}

// Shutdown сбрасывает миссии
func (m *MissionManager) Shutdown() {
	clear(m.missions)
}

// UIWidget значение виджета интерфейса региона
type UIWidget struct {
	Name  string
	Value int64
	Text  string
}

// UIDataProvider данные интерфейса, общие для всех игроков региона
type UIDataProvider struct {
	region  *Region
	widgets map[string]UIWidget
}

// NewUIDataProvider создает пустой провайдер
func NewUIDataProvider(region *Region) *UIDataProvider {
	return &UIDataProvider{region: region, widgets: make(map[string]UIWidget)}
}

func (u *UIDataProvider) InitializeForRegion() bool { return true }

// SetWidget создает или обновляет виджет
func (u *UIDataProvider) SetWidget(w UIWidget) {
	u.widgets[w.Name] = w
}

// Widget виджет по имени
func (u *UIDataProvider) Widget(name string) (UIWidget, bool) {
	w, ok := u.widgets[name]
	return w, ok
}

// Widgets виджеты по имени
func (u *UIDataProvider) Widgets() []UIWidget {
	result := make([]UIWidget, 0, len(u.widgets))
	for _, w := range u.widgets {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (u *UIDataProvider) Shutdown() { clear(u.widgets) }

// ObjectiveNode узел графа целей: точка соединения двух областей
type ObjectiveNode struct {
	ID       uint32
	Areas    [2]uint32
	Position vec.Vec3
	Kind     ConnectPosition
}

// ObjectiveGraph граф переходов между точками соединения областей.
// Узлы связаны, если у них есть общая область.
type ObjectiveGraph struct {
	region *Region
	nodes  []ObjectiveNode
	edges  map[uint32][]uint32
}

// NewObjectiveGraph создает пустой граф
func NewObjectiveGraph(region *Region) *ObjectiveGraph {
	return &ObjectiveGraph{region: region, edges: make(map[uint32][]uint32)}
}

// Build строит граф по соединениям областей региона
func (g *ObjectiveGraph) Build() {
	g.nodes = g.nodes[:0]
	clear(g.edges)

	byArea := make(map[uint32][]uint32)
	for _, area := range g.region.Areas() {
		for _, conn := range area.Connections() {
			other := conn.ConnectedArea.ID()
			if other < area.ID() {
				continue
			}
			id := uint32(len(g.nodes)) + 1
			g.nodes = append(g.nodes, ObjectiveNode{
				ID:       id,
				Areas:    [2]uint32{area.ID(), other},
				Position: conn.Position,
				Kind:     conn.Kind,
			})
			byArea[area.ID()] = append(byArea[area.ID()], id)
			byArea[other] = append(byArea[other], id)
		}
	}
	for _, n := range g.nodes {
		g.edges[n.ID] = nil
	}
	for _, ids := range byArea {
		for _, a := range ids {
			for _, b := range ids {
				if a != b {
					g.addEdge(a, b)
				}
			}
		}
	}
	for id := range g.edges {
		sort.Slice(g.edges[id], func(i, j int) bool { return g.edges[id][i] < g.edges[id][j] })
	}
}

func (g *ObjectiveGraph) addEdge(a, b uint32) {
	for _, n := range g.edges[a] {
		if n == b {
			return
		}
	}
	g.edges[a] = append(g.edges[a], b)
}

// Nodes узлы графа
func (g *ObjectiveGraph) Nodes() []ObjectiveNode { return g.nodes }

// Neighbors соседи узла по возрастанию ID
func (g *ObjectiveGraph) Neighbors(id uint32) []uint32 { return g.edges[id] }

// Hops минимальное число переходов между узлами; -1 если пути нет
func (g *ObjectiveGraph) Hops(from, to uint32) int {
	if _, ok := g.edges[from]; !ok {
		return -1
	}
	dist := map[uint32]int{from: 0}
	queue := []uint32{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return dist[cur]
		}
		for _, n := range g.edges[cur] {
			if _, seen := dist[n]; !seen {
				dist[n] = dist[cur] + 1
				queue = append(queue, n)
			}
		}
	}
	return -1
}

func (g *ObjectiveGraph) Shutdown() {
	g.nodes = nil
	clear(g.edges)
}
