package vec

import "math"

// Orientation ориентация в радианах, yaw вокруг оси Z
type Orientation struct {
	Yaw   float64 `yaml:"yaw" json:"yaw"`
	Pitch float64 `yaml:"pitch" json:"pitch"`
	Roll  float64 `yaml:"roll" json:"roll"`
}

// Transform упрощённое преобразование: поворот вокруг Z и перенос.
// Ячейки и маркеры в регионах поворачиваются только по yaw.
type Transform struct {
	Translation Vec3
	Yaw         float64
}

// Identity тождественное преобразование
func Identity() Transform {
	return Transform{}
}

// BuildTransform строит преобразование из позиции и ориентации
func BuildTransform(position Vec3, orientation Orientation) Transform {
	return Transform{Translation: position, Yaw: orientation.Yaw}
}

// Apply применяет преобразование к точке
func (t Transform) Apply(p Vec3) Vec3 {
	return t.Rotate(p).Add(t.Translation)
}

// Rotate поворачивает вектор без переноса
func (t Transform) Rotate(p Vec3) Vec3 {
	if t.Yaw == 0 {
		return p
	}
	s, c := math.Sincos(t.Yaw)
	return Vec3{X: p.X*c - p.Y*s, Y: p.X*s + p.Y*c, Z: p.Z}
}

// Compose возвращает t * other (сначала other, затем t)
func (t Transform) Compose(other Transform) Transform {
	return Transform{
		Translation: t.Apply(other.Translation),
		Yaw:         t.Yaw + other.Yaw,
	}
}

// Orientation возвращает ориентацию преобразования
func (t Transform) Orientation() Orientation {
	return Orientation{Yaw: t.Yaw}
}
