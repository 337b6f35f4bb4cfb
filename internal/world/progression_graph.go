package world

import (
	"sort"

	"github.com/annel0/mmo-region/internal/vec"
)

// RegionProgressionGraph дерево обхода областей от стартовой
type RegionProgressionGraph struct {
	root     uint32
	links    map[uint32][]uint32
	previous map[uint32]uint32
}

// NewRegionProgressionGraph создает пустой граф
func NewRegionProgressionGraph() *RegionProgressionGraph {
	return &RegionProgressionGraph{
		links:    make(map[uint32][]uint32),
		previous: make(map[uint32]uint32),
	}
}

// Root стартовая область; 0 если граф пуст
func (g *RegionProgressionGraph) Root() uint32 { return g.root }

// SetRoot сбрасывает граф и задает корень
func (g *RegionProgressionGraph) SetRoot(id uint32) {
	g.root = id
	clear(g.links)
	clear(g.previous)
}

// AddLink добавляет ребро from -> to
func (g *RegionProgressionGraph) AddLink(from, to uint32) {
	g.links[from] = append(g.links[from], to)
	g.previous[to] = from
}

// Links следующие за областью
func (g *RegionProgressionGraph) Links(id uint32) []uint32 {
	return g.links[id]
}

// PreviousArea область, из которой игрок попадает в id
func (g *RegionProgressionGraph) PreviousArea(id uint32) (uint32, bool) {
	prev, ok := g.previous[id]
	return prev, ok
}

// Build строит граф обходом в ширину по соединениям областей
func (g *RegionProgressionGraph) Build(start *Area) {
	if start == nil {
		g.SetRoot(0)
		return
	}
	g.SetRoot(start.ID())
	visited := map[uint32]bool{start.ID(): true}
	queue := []*Area{start}
	for len(queue) > 0 {
		area := queue[0]
		queue = queue[1:]

		next := make([]*Area, 0, len(area.connections))
		for _, c := range area.connections {
			if !visited[c.ConnectedArea.ID()] {
				visited[c.ConnectedArea.ID()] = true
				next = append(next, c.ConnectedArea)
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i].ID() < next[j].ID() })
		for _, n := range next {
			g.AddLink(area.ID(), n.ID())
			queue = append(queue, n)
		}
	}
}

// PathNode точка перехода между областями
type PathNode struct {
	AreaID       uint32
	TargetAreaID uint32
	Position     vec.Vec3
	Kind         ConnectPosition
}

// PathCache точки перехода, собранные этапом PathCollection
type PathCache struct {
	nodes []PathNode
}

// Append добавляет узлы
func (c *PathCache) Append(nodes ...PathNode) {
	c.nodes = append(c.nodes, nodes...)
}

// Nodes все узлы в порядке добавления
func (c *PathCache) Nodes() []PathNode { return c.nodes }

// Len число узлов
func (c *PathCache) Len() int { return len(c.nodes) }

// Clear очищает кэш
func (c *PathCache) Clear() { c.nodes = nil }

// NodesFrom узлы, ведущие из области id
func (c *PathCache) NodesFrom(id uint32) []PathNode {
	var result []PathNode
	for _, n := range c.nodes {
		if n.AreaID == id {
			result = append(result, n)
		}
	}
	return result
}
