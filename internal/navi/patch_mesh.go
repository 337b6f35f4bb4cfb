package navi

import (
	"math"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/spatial"
	"github.com/annel0/mmo-region/internal/vec"
)

const (
	// minNodeRadius ограничение глубины индексов сетки
	minNodeRadius = 64.0
	// minSweepStep и maxSweepStep шаг протяжки по отрезку
	minSweepStep = 4.0
	maxSweepStep = 32.0
)

type meshRect struct {
	bounds    physics.Aabb
	flags     PathFlags
	component int
}

// PatchMesh навигационная сетка из прямоугольников, сшитых из патчей ячеек.
// Проходимые области и препятствия индексируются квадродеревьями.
type PatchMesh struct {
	bounds      physics.Aabb
	cellSize    float64
	owner       string
	initialized bool
	generated   bool

	rects    []*meshRect
	walkable *spatial.Quadtree[*meshRect]
	blockers *spatial.Quadtree[*meshRect]
}

// NewPatchMesh создает пустую неинициализированную сетку
func NewPatchMesh() *PatchMesh {
	return &PatchMesh{}
}

func rectBounds(r *meshRect) physics.Aabb { return r.bounds }

// Initialize готовит сетку для региона с границами bounds
func (m *PatchMesh) Initialize(bounds physics.Aabb, cellSize float64, owner string) bool {
	if !bounds.IsValid() || bounds.Volume() <= 0 {
		logging.Warn("⚠️ NaviMesh %s: недопустимые границы %s", owner, bounds)
		return false
	}
	m.Release()
	m.bounds = bounds
	m.cellSize = cellSize
	m.owner = owner
	m.walkable = spatial.NewQuadtree(bounds, minNodeRadius, rectBounds)
	m.blockers = spatial.NewQuadtree(bounds, minNodeRadius, rectBounds)
	m.initialized = true
	return true
}

// Release освобождает геометрию сетки
func (m *PatchMesh) Release() {
	m.rects = nil
	m.walkable = nil
	m.blockers = nil
	m.initialized = false
	m.generated = false
}

// IsMeshValid true после успешной генерации
func (m *PatchMesh) IsMeshValid() bool {
	return m.initialized && m.generated
}

// Bounds границы сетки
func (m *PatchMesh) Bounds() physics.Aabb {
	return m.bounds
}

// Stitch добавляет проходимые области и препятствия патча в пространстве региона
func (m *PatchMesh) Stitch(patch Patch, transform vec.Transform) bool {
	if !m.initialized {
		return false
	}
	for _, r := range patch.Walkable {
		mr := m.addRect(transformRect(r, transform))
		m.rects = append(m.rects, mr)
		m.walkable.Insert(mr)
	}
	for _, r := range patch.Blockers {
		m.blockers.Insert(m.addRect(transformRect(r, transform)))
	}
	m.generated = false
	return true
}

// StitchProps добавляет препятствия реквизита; проходимые области пропов игнорируются
func (m *PatchMesh) StitchProps(patch Patch, transform vec.Transform) bool {
	if !m.initialized {
		return false
	}
	for _, r := range patch.Blockers {
		m.blockers.Insert(m.addRect(transformRect(r, transform)))
	}
	m.generated = false
	return true
}

func (m *PatchMesh) addRect(r Rect) *meshRect {
	flags := r.Flags
	if flags == PathFlagsNone {
		flags = PathFlagsAll
	}
	return &meshRect{bounds: r.Bounds, flags: flags, component: -1}
}

// GenerateMesh строит связность проходимых областей
func (m *PatchMesh) GenerateMesh() bool {
	if !m.initialized {
		return false
	}

	parent := make([]int, len(m.rects))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	index := make(map[*meshRect]int, len(m.rects))
	for i, r := range m.rects {
		index[r] = i
	}

	for i, r := range m.rects {
		// соседние прямоугольники касаются гранями, поэтому расширяем на полединицы
		for other := range m.walkable.IterateInVolume(r.bounds.Expand(0.5)) {
			j := index[other]
			if j == i || !r.bounds.Expand(0.5).Intersects2D(other.bounds) {
				continue
			}
			a, b := find(i), find(j)
			if a != b {
				parent[a] = b
			}
		}
	}
	for i, r := range m.rects {
		r.component = find(i)
	}

	m.generated = true
	logging.Debug("🧭 NaviMesh %s: %d областей, %d препятствий", m.owner, len(m.rects), m.blockers.Len())
	return true
}

// Contains проверяет, что круг радиуса radius вокруг точки целиком на сетке
func (m *PatchMesh) Contains(point vec.Vec3, radius float64, flags PathFlags) bool {
	return m.validAt(point, radius, flags, SweepOptions{})
}

// Sweep протягивает круг от start к end. Возвращает результат, конечную допустимую
// позицию и нормаль препятствия при обрезке.
func (m *PatchMesh) Sweep(start, end vec.Vec3, radius float64, flags PathFlags, opts SweepOptions) (SweepResult, vec.Vec3, vec.Vec3) {
	if !m.initialized || !m.validAt(start, radius, flags, opts) {
		return SweepFailed, start, vec.Zero
	}

	dist := start.Distance2D(end)
	if dist < vec.Epsilon {
		return SweepSuccess, end, vec.Zero
	}

	step := math.Min(math.Max(radius, minSweepStep), maxSweepStep)
	steps := int(math.Ceil(dist / step))
	last := start
	for i := 1; i <= steps; i++ {
		p := vec.Lerp(start, end, float64(i)/float64(steps))
		if !m.validAt(p, radius, flags, opts) {
			normal := start.Sub(end).Normalize2D()
			return SweepClipped, last, normal
		}
		last = p
	}
	return SweepSuccess, end, vec.Zero
}

// CanPathTo проверяет, что обе точки на сетке и лежат в одной связной области
func (m *PatchMesh) CanPathTo(start, end vec.Vec3, radius float64, flags PathFlags) bool {
	if !m.initialized {
		return false
	}
	if !m.generated {
		m.GenerateMesh()
	}
	if !m.Contains(start, radius, flags) || !m.Contains(end, radius, flags) {
		return false
	}
	a := m.walkableAt(start, flags)
	b := m.walkableAt(end, flags)
	return a != nil && b != nil && a.component == b.component
}

// CalcSpawnableArea площадь пешеходной поверхности внутри bounds за вычетом препятствий
func (m *PatchMesh) CalcSpawnableArea(bounds physics.Aabb) float64 {
	if !m.initialized {
		return 0
	}
	area := 0.0
	for r := range m.walkable.IterateInVolume(flatten(bounds)) {
		if r.flags&PathFlagsWalk == 0 {
			continue
		}
		if in, ok := r.bounds.Intersection(flatten(bounds)); ok {
			area += in.Area2D()
		}
	}
	for r := range m.blockers.IterateInVolume(flatten(bounds)) {
		if r.flags&PathFlagsWalk == 0 {
			continue
		}
		if in, ok := r.bounds.Intersection(flatten(bounds)); ok {
			area -= in.Area2D()
		}
	}
	return math.Max(area, 0)
}

func (m *PatchMesh) validAt(p vec.Vec3, radius float64, flags PathFlags, opts SweepOptions) bool {
	if !m.initialized {
		return false
	}
	samples := [5]vec.Vec3{
		p,
		p.Add(vec.New(radius, 0, 0)),
		p.Add(vec.New(-radius, 0, 0)),
		p.Add(vec.New(0, radius, 0)),
		p.Add(vec.New(0, -radius, 0)),
	}
	for _, s := range samples {
		if m.walkableAt(s, flags) == nil || m.blockedAt(s, flags, opts) {
			return false
		}
	}
	return true
}

func (m *PatchMesh) walkableAt(p vec.Vec3, flags PathFlags) *meshRect {
	for r := range m.walkable.IterateInVolume(pointProbe(p)) {
		if r.flags&flags == flags && r.bounds.IntersectsXY(p) {
			return r
		}
	}
	return nil
}

func (m *PatchMesh) blockedAt(p vec.Vec3, flags PathFlags, opts SweepOptions) bool {
	for r := range m.blockers.IterateInVolume(pointProbe(p)) {
		if r.flags&flags == 0 || !r.bounds.IntersectsXY(p) {
			continue
		}
		if opts.HasMaxHeight && r.bounds.Max.Z < opts.MaxHeight {
			continue
		}
		return true
	}
	return false
}

// pointProbe вертикальная прямая через точку
func pointProbe(p vec.Vec3) physics.Aabb {
	return physics.Aabb{
		Min: vec.New(p.X, p.Y, -math.MaxFloat64),
		Max: vec.New(p.X, p.Y, math.MaxFloat64),
	}
}

func flatten(b physics.Aabb) physics.Aabb {
	b.Min.Z = -math.MaxFloat64
	b.Max.Z = math.MaxFloat64
	return b
}
