package navi

import (
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/vec"
)

// PathFlags типы перемещения, которые проверяются на навигационной сетке
type PathFlags uint32

const (
	PathFlagsNone  PathFlags = 0
	PathFlagsWalk  PathFlags = 1 << 0
	PathFlagsFly   PathFlags = 1 << 1
	PathFlagsPower PathFlags = 1 << 2
	PathFlagsSight PathFlags = 1 << 3

	PathFlagsAll = PathFlagsWalk | PathFlagsFly | PathFlagsPower | PathFlagsSight
)

// SweepResult результат протяжки по сетке
type SweepResult int

const (
	SweepSuccess SweepResult = iota
	SweepClipped
	SweepFailed
)

// String возвращает строковое представление результата
func (r SweepResult) String() string {
	switch r {
	case SweepSuccess:
		return "Success"
	case SweepClipped:
		return "Clipped"
	case SweepFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Rect прямоугольник патча. Для проходимых областей Flags перечисляет разрешенные
// типы перемещения, для препятствий блокируемые; 0 означает "все".
type Rect struct {
	Bounds physics.Aabb `yaml:"bounds"`
	Flags  PathFlags    `yaml:"flags"`
}

// Patch локальная навигационная геометрия ячейки
type Patch struct {
	Walkable []Rect `yaml:"walkable"`
	Blockers []Rect `yaml:"blockers"`
}

// IsEmpty true, если в патче нет геометрии
func (p Patch) IsEmpty() bool {
	return len(p.Walkable) == 0 && len(p.Blockers) == 0
}

// SweepOptions дополнительные ограничения протяжки
type SweepOptions struct {
	// MaxHeight если задан, препятствия ниже этой высоты не блокируют
	MaxHeight    float64
	HasMaxHeight bool
}

// Mesh навигационная сетка региона. Регион владеет сеткой эксклюзивно.
type Mesh interface {
	Initialize(bounds physics.Aabb, cellSize float64, owner string) bool
	Release()
	IsMeshValid() bool

	Stitch(patch Patch, transform vec.Transform) bool
	StitchProps(patch Patch, transform vec.Transform) bool
	GenerateMesh() bool

	Contains(point vec.Vec3, radius float64, flags PathFlags) bool
	Sweep(start, end vec.Vec3, radius float64, flags PathFlags, opts SweepOptions) (SweepResult, vec.Vec3, vec.Vec3)
	CanPathTo(start, end vec.Vec3, radius float64, flags PathFlags) bool
	CalcSpawnableArea(bounds physics.Aabb) float64
}

// transformRect переводит прямоугольник патча в пространство региона
func transformRect(r Rect, t vec.Transform) Rect {
	return Rect{Bounds: r.Bounds.Transform(t), Flags: r.Flags}
}
