package world

import (
	"fmt"
	"math"

	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
	"github.com/aquilax/go-perlin"
)

// AreaGenerator стратегия заполнения области ячейками
type AreaGenerator interface {
	Initialize(area *Area) bool
	Bounds() physics.Aabb
	Generate(seed int64, area *Area) bool
}

// newAreaGenerator выбирает реализацию по тегу прототипа
func newAreaGenerator(p proto.AreaGeneratorPrototype) (AreaGenerator, error) {
	switch p.Kind {
	case proto.AreaGeneratorSingleCell:
		return &SingleCellAreaGenerator{proto: p}, nil
	case proto.AreaGeneratorCellGrid:
		return &CellGridGenerator{proto: p}, nil
	default:
		return nil, fmt.Errorf("неизвестный генератор области %q", p.Kind)
	}
}

// SingleCellAreaGenerator область из одной ячейки в начале координат
type SingleCellAreaGenerator struct {
	proto  proto.AreaGeneratorPrototype
	bounds physics.Aabb
}

func (g *SingleCellAreaGenerator) Initialize(area *Area) bool {
	cell, ok := area.region.Catalog().Cell(g.proto.Cell)
	if !ok {
		return false
	}
	g.bounds = cell.Bounds
	return g.bounds.IsValid()
}

func (g *SingleCellAreaGenerator) Bounds() physics.Aabb { return g.bounds }

// Generate false только если ячейка не создана: других ячеек в области нет
func (g *SingleCellAreaGenerator) Generate(seed int64, area *Area) bool {
	if area.AddCell(CellSettings{Prototype: g.proto.Cell}) == nil {
		area.region.log.Warn("⚠️ Area %d: ячейка %s не создана, область пуста", area.id, g.proto.Cell)
		return false
	}
	return true
}

// CellGridGenerator сетка ячеек, заполняемая шумом Перлина. Из заполненных слотов
// остается наибольшая связная компонента; тип ячейки выбирается по стенам.
type CellGridGenerator struct {
	proto  proto.AreaGeneratorPrototype
	bounds physics.Aabb
}

func (g *CellGridGenerator) Initialize(area *Area) bool {
	p := g.proto
	if p.Width <= 0 || p.Height <= 0 || p.CellSize <= 0 || len(p.CellSet) == 0 {
		return false
	}
	first, ok := area.region.Catalog().Cell(p.CellSet[0])
	if !ok {
		return false
	}
	g.bounds = physics.NewAabb(
		vec.New(0, 0, first.Bounds.Min.Z),
		vec.New(float64(p.Width)*p.CellSize, float64(p.Height)*p.CellSize, first.Bounds.Max.Z),
	)
	return true
}

func (g *CellGridGenerator) Bounds() physics.Aabb { return g.bounds }

// slotCenter центр слота в координатах области
func (g *CellGridGenerator) slotCenter(slot vec.Vec2) vec.Vec3 {
	return vec.New((float64(slot.X)+0.5)*g.proto.CellSize, (float64(slot.Y)+0.5)*g.proto.CellSize, 0)
}

// FillGrid вычисляет заполненные слоты для seed
func (g *CellGridGenerator) FillGrid(seed int64) []bool {
	p := g.proto
	alpha, beta, octaves := p.Alpha, p.Beta, p.Octaves
	if alpha == 0 {
		alpha = 2
	}
	if beta == 0 {
		beta = 2
	}
	if octaves == 0 {
		octaves = 3
	}
	noise := perlin.NewPerlin(alpha, beta, octaves, seed)

	filled := make([]bool, p.Width*p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			// сдвиг на полслота, в целых точках шум Перлина равен нулю
			v := (noise.Noise2D((float64(x)+0.5)/4, (float64(y)+0.5)/4) + 1) / 2
			filled[vec.Vec2{X: x, Y: y}.Index(p.Width)] = v >= p.FillThreshold
		}
	}
	return g.keepLargestComponent(filled)
}

func (g *CellGridGenerator) keepLargestComponent(filled []bool) []bool {
	w, h := g.proto.Width, g.proto.Height
	component := make([]int, len(filled))
	for i := range component {
		component[i] = -1
	}

	best, bestSize := -1, 0
	next := 0
	for start := range filled {
		if !filled[start] || component[start] >= 0 {
			continue
		}
		size := 0
		queue := []vec.Vec2{{X: start % w, Y: start / w}}
		component[start] = next
		for len(queue) > 0 {
			slot := queue[0]
			queue = queue[1:]
			size++
			for _, n := range slot.Neighbors4() {
				if !n.InBounds(w, h) {
					continue
				}
				idx := n.Index(w)
				if filled[idx] && component[idx] < 0 {
					component[idx] = next
					queue = append(queue, n)
				}
			}
		}
		if size > bestSize {
			best, bestSize = next, size
		}
		next++
	}

	result := make([]bool, len(filled))
	if best < 0 {
		// пустая сетка: оставляем центральный слот
		result[vec.Vec2{X: w / 2, Y: h / 2}.Index(w)] = true
		return result
	}
	for i := range filled {
		result[i] = component[i] == best
	}
	return result
}

// wallsForSlot стены слота: стороны без заполненного соседа
func (g *CellGridGenerator) wallsForSlot(filled []bool, slot vec.Vec2) proto.Walls {
	w, h := g.proto.Width, g.proto.Height
	dirs := [4]proto.Walls{proto.WallsN, proto.WallsE, proto.WallsS, proto.WallsW}
	var walls proto.Walls
	for i, n := range slot.Neighbors4() {
		if !n.InBounds(w, h) || !filled[n.Index(w)] {
			walls |= dirs[i]
		}
	}
	return walls
}

// chooseCell подбирает прототип и поворот ячейки под нужные стены
func (g *CellGridGenerator) chooseCell(catalog proto.Catalog, walls proto.Walls) (proto.Ref, int, bool) {
	for _, ref := range g.proto.CellSet {
		cell, ok := catalog.Cell(ref)
		if !ok {
			continue
		}
		for rot := 0; rot < 4; rot++ {
			if WallsRotate(cell.Walls, rot) == walls {
				return ref, rot, true
			}
		}
	}
	return proto.Invalid, 0, false
}

func (g *CellGridGenerator) Generate(seed int64, area *Area) bool {
	p := g.proto
	filled := g.FillGrid(seed)
	catalog := area.region.Catalog()

	slots := make(map[int]uint32)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			slot := vec.Vec2{X: x, Y: y}
			idx := slot.Index(p.Width)
			if !filled[idx] {
				continue
			}
			walls := g.wallsForSlot(filled, slot)
			ref, rot, ok := g.chooseCell(catalog, walls)
			if !ok {
				area.region.log.Warn("⚠️ CellGrid: нет ячейки со стенами %s в наборе", walls)
				return false
			}
			cell := area.AddCell(CellSettings{
				Prototype:         ref,
				PositionInArea:    g.slotCenter(slot),
				OrientationInArea: vec.Orientation{Yaw: float64(rot) * math.Pi / 2},
			})
			if cell == nil {
				area.region.log.Warn("⚠️ CellGrid: слот (%d, %d) пропущен, ячейка %s не создана", x, y, ref)
				continue
			}
			slots[idx] = cell.ID()
		}
	}

	for idx, id := range slots {
		slot := vec.Vec2{X: idx % p.Width, Y: idx / p.Width}
		for _, n := range slot.Neighbors4() {
			if !n.InBounds(p.Width, p.Height) {
				continue
			}
			if other, ok := slots[n.Index(p.Width)]; ok {
				area.CreateCellConnection(id, other)
			}
		}
	}
	return len(slots) > 0
}
