package physics

import (
	"fmt"
	"math"

	"github.com/annel0/mmo-region/internal/vec"
)

// Aabb ограничивающий параллелепипед, выровненный по осям
type Aabb struct {
	Min vec.Vec3 `yaml:"min" json:"min"`
	Max vec.Vec3 `yaml:"max" json:"max"`
}

// Volume область пространства для запросов к пространственным индексам
type Volume interface {
	// BoundingBox охватывающий AABB для отсечения узлов дерева
	BoundingBox() Aabb
	// IntersectsAabb точная проверка пересечения с AABB элемента
	IntersectsAabb(box Aabb) bool
}

// ZeroAabb пустой AABB в начале координат
var ZeroAabb = Aabb{}

// InvertedLimit "вывернутый" AABB, нейтральный элемент для объединения
var InvertedLimit = Aabb{
	Min: vec.Vec3{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
	Max: vec.Vec3{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
}

// NewAabb создает AABB по двум углам
func NewAabb(min, max vec.Vec3) Aabb {
	return Aabb{Min: min, Max: max}
}

// AabbFromCenter создает AABB по центру и полуразмерам
func AabbFromCenter(center vec.Vec3, halfX, halfY, halfZ float64) Aabb {
	ext := vec.New(halfX, halfY, halfZ)
	return Aabb{Min: center.Sub(ext), Max: center.Add(ext)}
}

// Center центр AABB
func (a Aabb) Center() vec.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Extents полуразмеры AABB
func (a Aabb) Extents() vec.Vec3 {
	return a.Max.Sub(a.Min).Mul(0.5)
}

// Width размер по X
func (a Aabb) Width() float64 { return a.Max.X - a.Min.X }

// Length размер по Y
func (a Aabb) Length() float64 { return a.Max.Y - a.Min.Y }

// Height размер по Z
func (a Aabb) Height() float64 { return a.Max.Z - a.Min.Z }

// Volume объем AABB
func (a Aabb) Volume() float64 {
	if !a.IsValid() {
		return 0
	}
	return a.Width() * a.Length() * a.Height()
}

// Radius2D радиус описанной окружности в плоскости XY
func (a Aabb) Radius2D() float64 {
	e := a.Extents()
	return math.Sqrt(e.X*e.X + e.Y*e.Y)
}

// IsValid проверяет, что Min <= Max по всем осям и координаты конечны
func (a Aabb) IsValid() bool {
	for _, f := range [...]float64{a.Min.X, a.Min.Y, a.Min.Z, a.Max.X, a.Max.Y, a.Max.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return a.Min.X <= a.Max.X && a.Min.Y <= a.Max.Y && a.Min.Z <= a.Max.Z
}

// IsZero проверяет, что оба угла нулевые
func (a Aabb) IsZero() bool {
	return a.Min == vec.Zero && a.Max == vec.Zero
}

// Union объединение двух AABB
func (a Aabb) Union(b Aabb) Aabb {
	return Aabb{Min: vec.Min(a.Min, b.Min), Max: vec.Max(a.Max, b.Max)}
}

// Translate сдвигает AABB
func (a Aabb) Translate(offset vec.Vec3) Aabb {
	return Aabb{Min: a.Min.Add(offset), Max: a.Max.Add(offset)}
}

// Expand расширяет AABB на величину по всем осям
func (a Aabb) Expand(by float64) Aabb {
	d := vec.New(by, by, by)
	return Aabb{Min: a.Min.Sub(d), Max: a.Max.Add(d)}
}

// Transform охватывающий AABB после поворота по yaw и переноса
func (a Aabb) Transform(t vec.Transform) Aabb {
	corners := [4]vec.Vec3{
		vec.New(a.Min.X, a.Min.Y, a.Min.Z),
		vec.New(a.Max.X, a.Min.Y, a.Min.Z),
		vec.New(a.Min.X, a.Max.Y, a.Min.Z),
		vec.New(a.Max.X, a.Max.Y, a.Min.Z),
	}
	out := InvertedLimit
	for _, c := range corners {
		p := t.Apply(c)
		out = out.Union(Aabb{Min: p, Max: p})
	}
	out.Max.Z = out.Min.Z + a.Height()
	return out
}

// RoundToNearestInteger округляет углы до целых
func (a Aabb) RoundToNearestInteger() Aabb {
	return Aabb{Min: a.Min.Round(), Max: a.Max.Round()}
}

// Intersects проверяет пересечение двух AABB (касание считается пересечением)
func (a Aabb) Intersects(b Aabb) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// Intersects2D проверяет пересечение проекций на XY
func (a Aabb) Intersects2D(b Aabb) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y
}

// IntersectsXY проверяет попадание точки в проекцию на XY
func (a Aabb) IntersectsXY(p vec.Vec3) bool {
	return p.X >= a.Min.X && p.X <= a.Max.X && p.Y >= a.Min.Y && p.Y <= a.Max.Y
}

// ContainsPoint проверяет попадание точки внутрь AABB
func (a Aabb) ContainsPoint(p vec.Vec3) bool {
	return a.IntersectsXY(p) && p.Z >= a.Min.Z && p.Z <= a.Max.Z
}

// FullyContains проверяет, что b целиком лежит внутри a
func (a Aabb) FullyContains(b Aabb) bool {
	return b.Min.X >= a.Min.X && b.Max.X <= a.Max.X &&
		b.Min.Y >= a.Min.Y && b.Max.Y <= a.Max.Y &&
		b.Min.Z >= a.Min.Z && b.Max.Z <= a.Max.Z
}

// DistanceToPoint2D расстояние от точки до AABB в плоскости XY (0 внутри)
func (a Aabb) DistanceToPoint2D(p vec.Vec3) float64 {
	dx := math.Max(math.Max(a.Min.X-p.X, 0), p.X-a.Max.X)
	dy := math.Max(math.Max(a.Min.Y-p.Y, 0), p.Y-a.Max.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ClosestPoint ближайшая к p точка внутри AABB
func (a Aabb) ClosestPoint(p vec.Vec3) vec.Vec3 {
	return vec.Min(vec.Max(p, a.Min), a.Max)
}

// Area2D площадь проекции на XY
func (a Aabb) Area2D() float64 {
	if a.Width() <= 0 || a.Length() <= 0 {
		return 0
	}
	return a.Width() * a.Length()
}

// Intersection пересечение двух AABB; ok=false если пересечения нет
func (a Aabb) Intersection(b Aabb) (Aabb, bool) {
	r := Aabb{Min: vec.Max(a.Min, b.Min), Max: vec.Min(a.Max, b.Max)}
	if !r.IsValid() {
		return ZeroAabb, false
	}
	return r, true
}

// BoundingBox реализует Volume
func (a Aabb) BoundingBox() Aabb { return a }

// IntersectsAabb реализует Volume
func (a Aabb) IntersectsAabb(b Aabb) bool { return a.Intersects(b) }

func (a Aabb) String() string {
	return fmt.Sprintf("(%.1f,%.1f,%.1f)-(%.1f,%.1f,%.1f)",
		a.Min.X, a.Min.Y, a.Min.Z, a.Max.X, a.Max.Y, a.Max.Z)
}

// Sphere сферический объем запроса
type Sphere struct {
	Center vec.Vec3
	Radius float64
}

// BoundingBox реализует Volume
func (s Sphere) BoundingBox() Aabb {
	return AabbFromCenter(s.Center, s.Radius, s.Radius, s.Radius)
}

// IntersectsAabb реализует Volume
func (s Sphere) IntersectsAabb(b Aabb) bool {
	return b.ClosestPoint(s.Center).Sub(s.Center).LengthSquared() <= s.Radius*s.Radius
}
