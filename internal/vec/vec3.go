package vec

import "math"

// Epsilon допуск для сравнения координат
const Epsilon = 0.000001

// Vec3 представляет трехмерный вектор в координатах региона
type Vec3 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Zero нулевой вектор
var Zero = Vec3{}

// New создает вектор из компонент
func New(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3) Mul(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot скалярное произведение
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Dot2D скалярное произведение в плоскости XY
func (v Vec3) Dot2D(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Cross векторное произведение
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Length возвращает длину вектора
func (v Vec3) Length() float64 {
	return math.Sqrt(v.LengthSquared())
}

// LengthSquared возвращает квадрат длины
func (v Vec3) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Length2D возвращает длину проекции на XY
func (v Vec3) Length2D() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Normalize возвращает единичный вектор (нулевой для нулевого)
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l < Epsilon {
		return Zero
	}
	return v.Mul(1 / l)
}

// Normalize2D нормализует проекцию на XY, Z обнуляется
func (v Vec3) Normalize2D() Vec3 {
	l := v.Length2D()
	if l < Epsilon {
		return Zero
	}
	return Vec3{X: v.X / l, Y: v.Y / l}
}

// Flat возвращает вектор с обнулённой Z
func (v Vec3) Flat() Vec3 {
	return Vec3{X: v.X, Y: v.Y}
}

// Perp2D перпендикуляр в плоскости XY
func (v Vec3) Perp2D() Vec3 {
	return Vec3{X: -v.Y, Y: v.X}
}

// DistanceTo возвращает расстояние до другой точки
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Length()
}

// Distance2D возвращает расстояние в плоскости XY
func (v Vec3) Distance2D(other Vec3) float64 {
	return v.Sub(other).Length2D()
}

// IsNearZero проверяет близость к нулю
func (v Vec3) IsNearZero() bool {
	return v.LengthSquared() < Epsilon*Epsilon
}

// Equals проверяет равенство векторов с допуском
func (v Vec3) Equals(other Vec3) bool {
	return math.Abs(v.X-other.X) < Epsilon &&
		math.Abs(v.Y-other.Y) < Epsilon &&
		math.Abs(v.Z-other.Z) < Epsilon
}

// Round округляет компоненты до ближайшего целого
func (v Vec3) Round() Vec3 {
	return Vec3{X: math.Round(v.X), Y: math.Round(v.Y), Z: math.Round(v.Z)}
}

// Min покомпонентный минимум
func Min(a, b Vec3) Vec3 {
	return Vec3{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

// Max покомпонентный максимум
func Max(a, b Vec3) Vec3 {
	return Vec3{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// Lerp линейная интерполяция между a и b
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// FromAngle2D единичный вектор в плоскости XY для угла в радианах
func FromAngle2D(angle float64) Vec3 {
	return Vec3{X: math.Cos(angle), Y: math.Sin(angle)}
}
