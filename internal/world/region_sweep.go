package world

import (
	"math"

	"github.com/annel0/mmo-region/internal/entity"
	"github.com/annel0/mmo-region/internal/navi"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/vec"
)

// sweepTieEpsilon допуск равенства времен попадания в единицах длины
const sweepTieEpsilon = 0.01

// SweepQuery параметры протяжки границ через индекс сущностей
type SweepQuery struct {
	Bounds   physics.Bounds
	Velocity vec.Vec3
	// MoverID сущность, которая не может столкнуться сама с собой
	MoverID uint64
	// BlocksHit решает, останавливает ли сущность протяжку; nil означает любую коллизию
	BlocksHit func(e *entity.WorldEntity) bool
	Context   SPContext
}

// SweepHit первая сущность на пути протяжки
type SweepHit struct {
	Entity   *entity.WorldEntity
	Time     float64
	Position vec.Vec3
	Normal   vec.Vec3
}

// SweepToFirstHitEntity ищет ближайшую по времени сущность на пути.
// Окно равенства отсчитывается от минимального времени попадания, внутри окна
// выигрывает сущность ближе к направлению движения, затем более раннее время.
func (r *Region) SweepToFirstHitEntity(q SweepQuery) (SweepHit, bool) {
	start := q.Bounds.Center
	length := q.Velocity.Length()
	dir := q.Velocity.Normalize2D()
	swept := physics.SweptAabb(q.Bounds, q.Velocity)

	type candidate struct {
		entity *entity.WorldEntity
		hit    physics.SweepHit
		dot    float64
	}
	var hits []candidate
	minTime := math.Inf(1)
	for e := range r.IterateEntitiesInVolume(swept, q.Context) {
		if e.ID() == q.MoverID || e.Bounds().Collision == physics.CollisionNone {
			continue
		}
		if q.BlocksHit != nil && !q.BlocksHit(e) {
			continue
		}
		hit, ok := physics.Sweep(q.Bounds, q.Velocity, e.Bounds())
		if !ok {
			continue
		}
		hits = append(hits, candidate{
			entity: e,
			hit:    hit,
			dot:    e.Position().Sub(start).Normalize2D().Dot2D(dir),
		})
		minTime = math.Min(minTime, hit.Time)
	}
	if len(hits) == 0 {
		return SweepHit{}, false
	}

	best := -1
	for i, c := range hits {
		if (c.hit.Time-minTime)*length >= sweepTieEpsilon {
			continue
		}
		if best >= 0 {
			b := hits[best]
			if c.dot < b.dot || (c.dot == b.dot && c.hit.Time >= b.hit.Time) {
				continue
			}
		}
		best = i
	}

	c := hits[best]
	return SweepHit{
		Entity:   c.entity,
		Time:     c.hit.Time,
		Position: start.Add(q.Velocity.Mul(c.hit.Time)),
		Normal:   c.hit.Normal,
	}, true
}

// LineOfSightQuery параметры проверки прямой видимости
type LineOfSightQuery struct {
	Start     vec.Vec3
	Target    vec.Vec3
	MoverID   uint64
	TargetID  uint64
	Radius    float64
	Padding   float64
	Height    float64
	PathFlags navi.PathFlags
}

// LineOfSightTo проверяет видимость цели: сначала по навигационной сетке
// с ограничением по высоте старшей точки, затем горизонтальной протяжкой по сущностям.
func (r *Region) LineOfSightTo(q LineOfSightQuery) bool {
	mesh := r.NaviMesh()
	if mesh == nil || !mesh.IsMeshValid() {
		return false
	}

	opts := navi.SweepOptions{MaxHeight: math.Max(q.Start.Z, q.Target.Z), HasMaxHeight: true}
	result, _, _ := mesh.Sweep(q.Start, q.Target, q.Radius, q.PathFlags, opts)
	if result != navi.SweepSuccess {
		return false
	}

	delta := q.Target.Sub(q.Start).Flat()
	if delta.IsNearZero() {
		return true
	}
	bounds := physics.NewCapsuleBounds(q.Start, q.Radius+q.Padding, q.Height/2)
	bounds.Collision = physics.CollisionBlocking
	_, blocked := r.SweepToFirstHitEntity(SweepQuery{
		Bounds:   bounds,
		Velocity: delta,
		MoverID:  q.MoverID,
		BlocksHit: func(e *entity.WorldEntity) bool {
			return e.ID() != q.TargetID && e.Bounds().BlocksLineOfSight
		},
		Context: SPContext{Flags: SPContextAll},
	})
	return !blocked
}
