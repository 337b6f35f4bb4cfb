package physics

import (
	"math"

	"github.com/annel0/mmo-region/internal/vec"
)

// BoundsShape форма границ сущности
type BoundsShape int

const (
	ShapeSphere BoundsShape = iota
	ShapeCapsule
	ShapeBox
)

// String возвращает строковое представление формы
func (s BoundsShape) String() string {
	switch s {
	case ShapeSphere:
		return "Sphere"
	case ShapeCapsule:
		return "Capsule"
	case ShapeBox:
		return "Box"
	default:
		return "Unknown"
	}
}

// CollisionType тип коллизии границ
type CollisionType int

const (
	CollisionNone CollisionType = iota
	CollisionOverlapping
	CollisionBlocking
)

// MovementPowerBlock какие силы перемещения блокирует сущность
type MovementPowerBlock int

const (
	MovementPowerBlockNone MovementPowerBlock = iota
	MovementPowerBlockGround
	MovementPowerBlockAll
)

// Bounds границы сущности. Сферы и капсулы в плоскости XY ведут себя как
// вертикальные цилиндры: окружность радиуса Radius и диапазон по Z.
type Bounds struct {
	Shape      BoundsShape
	Center     vec.Vec3
	Radius     float64 // для сферы и капсулы
	HalfHeight float64 // для капсулы и коробки
	HalfWidth  float64 // для коробки, по X
	HalfLength float64 // для коробки, по Y

	Collision            CollisionType
	BlocksSpawns         bool
	BlocksLanding        bool
	BlocksLineOfSight    bool
	BlocksMovementPowers MovementPowerBlock
}

// NewSphereBounds создает сферические границы
func NewSphereBounds(center vec.Vec3, radius float64) Bounds {
	return Bounds{Shape: ShapeSphere, Center: center, Radius: radius, Collision: CollisionOverlapping}
}

// NewCapsuleBounds создает вертикальную капсулу
func NewCapsuleBounds(center vec.Vec3, radius, halfHeight float64) Bounds {
	return Bounds{Shape: ShapeCapsule, Center: center, Radius: radius, HalfHeight: halfHeight, Collision: CollisionOverlapping}
}

// NewBoxBounds создает коробку, выровненную по осям
func NewBoxBounds(center vec.Vec3, halfWidth, halfLength, halfHeight float64) Bounds {
	return Bounds{Shape: ShapeBox, Center: center, HalfWidth: halfWidth, HalfLength: halfLength, HalfHeight: halfHeight, Collision: CollisionOverlapping}
}

// HalfExtents полуразмеры охватывающего AABB
func (b Bounds) HalfExtents() vec.Vec3 {
	switch b.Shape {
	case ShapeSphere:
		return vec.New(b.Radius, b.Radius, b.Radius)
	case ShapeCapsule:
		return vec.New(b.Radius, b.Radius, b.HalfHeight+b.Radius)
	default:
		return vec.New(b.HalfWidth, b.HalfLength, b.HalfHeight)
	}
}

// ToAabb охватывающий AABB
func (b Bounds) ToAabb() Aabb {
	e := b.HalfExtents()
	return Aabb{Min: b.Center.Sub(e), Max: b.Center.Add(e)}
}

// BoundHalfHeight полувысота по Z
func (b Bounds) BoundHalfHeight() float64 {
	return b.HalfExtents().Z
}

// Radius2D радиус в плоскости XY
func (b Bounds) Radius2D() float64 {
	if b.Shape == ShapeBox {
		return math.Sqrt(b.HalfWidth*b.HalfWidth + b.HalfLength*b.HalfLength)
	}
	return b.Radius
}

// WithCenter возвращает копию границ в новой позиции
func (b Bounds) WithCenter(center vec.Vec3) Bounds {
	b.Center = center
	return b
}

// IsCircular true для сферы и капсулы
func (b Bounds) IsCircular() bool {
	return b.Shape != ShapeBox
}

// zRange диапазон по Z
func (b Bounds) zRange() (float64, float64) {
	h := b.BoundHalfHeight()
	return b.Center.Z - h, b.Center.Z + h
}

// BoundingBox реализует Volume
func (b Bounds) BoundingBox() Aabb { return b.ToAabb() }

// IntersectsAabb реализует Volume
func (b Bounds) IntersectsAabb(box Aabb) bool {
	if b.IsCircular() {
		lo, hi := b.zRange()
		if lo > box.Max.Z || hi < box.Min.Z {
			return false
		}
		return box.DistanceToPoint2D(b.Center) <= b.Radius
	}
	return b.ToAabb().Intersects(box)
}

// Intersects проверяет пересечение двух границ
func (b Bounds) Intersects(other Bounds) bool {
	lo1, hi1 := b.zRange()
	lo2, hi2 := other.zRange()
	if lo1 > hi2 || hi1 < lo2 {
		return false
	}

	switch {
	case b.IsCircular() && other.IsCircular():
		r := b.Radius + other.Radius
		d := b.Center.Sub(other.Center)
		return d.X*d.X+d.Y*d.Y <= r*r
	case b.IsCircular():
		return other.ToAabb().DistanceToPoint2D(b.Center) <= b.Radius
	case other.IsCircular():
		return b.ToAabb().DistanceToPoint2D(other.Center) <= other.Radius
	default:
		return b.ToAabb().Intersects2D(other.ToAabb())
	}
}

// CanBeBlockedBy проверяет, могут ли эти границы быть заблокированы другими.
// selfBlocking учитывает собственный тип коллизии, otherBlocking означает,
// что флаги проверки уже признали другую сущность блокирующей.
func (b Bounds) CanBeBlockedBy(other Bounds, selfBlocking, otherBlocking bool) bool {
	if b.Collision == CollisionNone || other.Collision == CollisionNone {
		return false
	}
	if otherBlocking {
		return true
	}
	if selfBlocking && b.Collision == CollisionBlocking && other.Collision == CollisionBlocking {
		return true
	}
	return false
}
