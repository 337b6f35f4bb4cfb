package physics

import (
	"math"

	"github.com/annel0/mmo-region/internal/vec"
)

// SweepHit результат непрерывной проверки столкновения
type SweepHit struct {
	Time   float64  // доля перемещения [0,1] до касания
	Normal vec.Vec3 // нормаль контакта в плоскости XY
}

// Sweep проверяет столкновение границ mover, движущихся на delta, с неподвижными target.
// Возвращает момент первого касания в долях delta.
func Sweep(mover Bounds, delta vec.Vec3, target Bounds) (SweepHit, bool) {
	if mover.Intersects(target) {
		n := mover.Center.Sub(target.Center).Normalize2D()
		if n.IsNearZero() {
			n = delta.Normalize2D().Mul(-1)
		}
		return SweepHit{Time: 0, Normal: n}, true
	}
	if delta.IsNearZero() {
		return SweepHit{}, false
	}

	if mover.IsCircular() && target.IsCircular() {
		return sweepCircles(mover, delta, target)
	}
	return sweepBoxes(mover, delta, target)
}

// sweepCircles луч против окружности радиуса r1+r2 в плоскости XY
func sweepCircles(mover Bounds, delta vec.Vec3, target Bounds) (SweepHit, bool) {
	r := mover.Radius + target.Radius
	m := mover.Center.Sub(target.Center).Flat()
	d := delta.Flat()

	a := d.Dot2D(d)
	if a < vec.Epsilon {
		return SweepHit{}, false
	}
	b := 2 * m.Dot2D(d)
	c := m.Dot2D(m) - r*r
	disc := b*b - 4*a*c
	if disc < 0 {
		return SweepHit{}, false
	}

	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t < 0 || t > 1 {
		return SweepHit{}, false
	}
	if !zOverlapAt(mover, delta, target, t) {
		return SweepHit{}, false
	}

	contact := m.Add(d.Mul(t))
	return SweepHit{Time: t, Normal: contact.Normalize2D()}, true
}

// sweepBoxes метод плит: луч из центра mover против AABB target,
// расширенного на полуразмеры mover (сумма Минковского для коробок).
func sweepBoxes(mover Bounds, delta vec.Vec3, target Bounds) (SweepHit, bool) {
	ext := mover.HalfExtents()
	box := target.ToAabb()
	box = Aabb{Min: box.Min.Sub(ext), Max: box.Max.Add(ext)}

	origin := [3]float64{mover.Center.X, mover.Center.Y, mover.Center.Z}
	dir := [3]float64{delta.X, delta.Y, delta.Z}
	lo := [3]float64{box.Min.X, box.Min.Y, box.Min.Z}
	hi := [3]float64{box.Max.X, box.Max.Y, box.Max.Z}

	tEnter, tExit := 0.0, 1.0
	enterAxis, enterSign := -1, 0.0
	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < vec.Epsilon {
			if origin[i] < lo[i] || origin[i] > hi[i] {
				return SweepHit{}, false
			}
			continue
		}
		inv := 1 / dir[i]
		t1 := (lo[i] - origin[i]) * inv
		t2 := (hi[i] - origin[i]) * inv
		sign := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1.0
		}
		if t1 > tEnter {
			tEnter = t1
			enterAxis = i
			enterSign = sign
		}
		tExit = math.Min(tExit, t2)
		if tEnter > tExit {
			return SweepHit{}, false
		}
	}

	var normal vec.Vec3
	switch enterAxis {
	case 0:
		normal = vec.New(enterSign, 0, 0)
	case 1:
		normal = vec.New(0, enterSign, 0)
	default:
		normal = delta.Normalize2D().Mul(-1)
	}
	return SweepHit{Time: tEnter, Normal: normal}, true
}

func zOverlapAt(mover Bounds, delta vec.Vec3, target Bounds, t float64) bool {
	moved := mover.WithCenter(mover.Center.Add(delta.Mul(t)))
	lo1, hi1 := moved.zRange()
	lo2, hi2 := target.zRange()
	return lo1 <= hi2 && hi1 >= lo2
}

// SweptAabb AABB, покрывающий весь путь границ
func SweptAabb(b Bounds, delta vec.Vec3) Aabb {
	start := b.ToAabb()
	return start.Union(start.Translate(delta))
}
