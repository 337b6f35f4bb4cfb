package world

import (
	"math"

	"github.com/annel0/mmo-region/internal/navi"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/vec"
)

// defaultMaxPositionTests ограничение числа проверяемых точек по умолчанию
const defaultMaxPositionTests = 400

// PositionCheckFlags какие проверки проходит кандидат
type PositionCheckFlags uint32

const (
	PositionCheckCanBeBlockedEntity PositionCheckFlags = 1 << iota
	PositionCheckCanPathTo
	PositionCheckCanSweepTo
	PositionCheckPreferNoEntity
	PositionCheckInRadius
)

// BlockingCheckFlags какие свойства других сущностей считаются блокирующими
type BlockingCheckFlags uint32

const (
	BlockingCheckSelf BlockingCheckFlags = 1 << iota
	BlockingCheckSpawns
	BlockingCheckGroundMovementPowers
	BlockingCheckAllMovementPowers
	BlockingCheckLanding
)

// PositionQuery параметры поиска позиции около точки
type PositionQuery struct {
	Origin        vec.Vec3
	MinRadius     float64
	MaxRadius     float64
	Bounds        physics.Bounds
	MoverID       uint64
	PathFlags     navi.PathFlags
	PositionFlags PositionCheckFlags
	BlockingFlags BlockingCheckFlags
	// Predicate дополнительная проверка вызывающего; nil пропускает все
	Predicate func(p vec.Vec3) bool
	// MaxTests 0 означает значение из конфигурации менеджера
	MaxTests int
}

func (q PositionQuery) has(f PositionCheckFlags) bool { return q.PositionFlags&f != 0 }

// IsBoundsBlockedByEntity число сущностей, блокирующих границы.
// ignoreID исключает саму перемещаемую сущность.
func (r *Region) IsBoundsBlockedByEntity(bounds physics.Bounds, flags BlockingCheckFlags, ignoreID uint64) int {
	selfBlocking := flags&BlockingCheckSelf != 0
	blockers := 0
	for other := range r.IterateEntitiesInVolume(bounds.ToAabb(), SPContext{Flags: SPContextAll}) {
		if other.ID() == ignoreID {
			continue
		}
		ob := other.Bounds()
		otherBlocking := (flags&BlockingCheckSpawns != 0 && ob.BlocksSpawns) ||
			(flags&BlockingCheckGroundMovementPowers != 0 && ob.BlocksMovementPowers != physics.MovementPowerBlockNone) ||
			(flags&BlockingCheckAllMovementPowers != 0 && ob.BlocksMovementPowers == physics.MovementPowerBlockAll) ||
			(flags&BlockingCheckLanding != 0 && ob.BlocksLanding)
		if bounds.CanBeBlockedBy(ob, selfBlocking, otherBlocking) && bounds.Intersects(ob) {
			blockers++
		}
	}
	return blockers
}

// positionSearch состояние одного поиска
type positionSearch struct {
	region *Region
	mesh   navi.Mesh
	query  PositionQuery
	radius float64

	tests        int
	maxTests     int
	bestBlocked  vec.Vec3
	bestBlockers int
	hasBlocked   bool
}

// test проверяет точку по цепочке до первой неудачи
func (s *positionSearch) test(p vec.Vec3) bool {
	s.tests++
	q := s.query
	if !s.mesh.Contains(p, s.radius, q.PathFlags) {
		return false
	}
	if q.has(PositionCheckCanSweepTo) {
		result, _, _ := s.mesh.Sweep(q.Origin, p, s.radius, q.PathFlags, navi.SweepOptions{})
		if result != navi.SweepSuccess {
			return false
		}
	}
	if q.has(PositionCheckCanPathTo) && !s.mesh.CanPathTo(q.Origin, p, s.radius, q.PathFlags) {
		return false
	}
	if q.Predicate != nil && !q.Predicate(p) {
		return false
	}
	if q.has(PositionCheckCanBeBlockedEntity) || q.has(PositionCheckPreferNoEntity) {
		blockers := s.region.IsBoundsBlockedByEntity(q.Bounds.WithCenter(p), q.BlockingFlags, q.MoverID)
		if blockers > 0 {
			if q.has(PositionCheckPreferNoEntity) && (!s.hasBlocked || blockers < s.bestBlockers) {
				s.bestBlocked, s.bestBlockers, s.hasBlocked = p, blockers, true
			}
			return false
		}
	}
	return true
}

func (s *positionSearch) exhausted() bool { return s.tests >= s.maxTests }

// fallback результат после исчерпания лимита
func (s *positionSearch) fallback() (vec.Vec3, bool) {
	if s.query.has(PositionCheckPreferNoEntity) && s.hasBlocked {
		return s.bestBlocked, true
	}
	return s.query.Origin, false
}

func (r *Region) newPositionSearch(q PositionQuery) (*positionSearch, bool) {
	if q.has(PositionCheckCanPathTo) && q.has(PositionCheckCanSweepTo) {
		r.log.Warn("⚠️ %s: CanPathTo и CanSweepTo нельзя запрашивать вместе", r)
		return nil, false
	}
	mesh := r.NaviMesh()
	if mesh == nil || !mesh.IsMeshValid() {
		r.log.Warn("⚠️ %s: поиск позиции без навигационной сетки", r)
		return nil, false
	}
	if q.MinRadius < 0 || q.MaxRadius < q.MinRadius {
		r.log.Warn("⚠️ %s: недопустимый радиус поиска [%.1f, %.1f]", r, q.MinRadius, q.MaxRadius)
		return nil, false
	}

	maxTests := q.MaxTests
	if maxTests <= 0 {
		maxTests = r.manager.config.MaxPositionTests
	}
	if maxTests <= 0 {
		maxTests = defaultMaxPositionTests
	}
	return &positionSearch{
		region:   r,
		mesh:     mesh,
		query:    q,
		radius:   q.Bounds.Radius2D(),
		maxTests: maxTests,
	}, true
}

// ChooseRandomPositionNearPoint ищет случайную допустимую точку в кольце
// [MinRadius, MaxRadius] вокруг Origin. При неудаче возвращает Origin и false,
// а с PreferNoEntity наименее заблокированную найденную точку.
func (r *Region) ChooseRandomPositionNearPoint(q PositionQuery) (vec.Vec3, bool) {
	s, ok := r.newPositionSearch(q)
	if !ok {
		return q.Origin, false
	}
	return r.searchAround(s)
}

// ChoosePositionAtOrNearPoint сначала проверяет саму точку Origin, затем ищет рядом
func (r *Region) ChoosePositionAtOrNearPoint(q PositionQuery) (vec.Vec3, bool) {
	s, ok := r.newPositionSearch(q)
	if !ok {
		return q.Origin, false
	}
	if s.test(q.Origin) {
		return q.Origin, true
	}
	return r.searchAround(s)
}

func (r *Region) searchAround(s *positionSearch) (vec.Vec3, bool) {
	if s.query.has(PositionCheckInRadius) {
		return r.searchRings(s)
	}
	q := s.query
	minSq, maxSq := q.MinRadius*q.MinRadius, q.MaxRadius*q.MaxRadius
	for !s.exhausted() {
		angle := r.rng.Float64() * 2 * math.Pi
		dist := math.Sqrt(minSq + r.rng.Float64()*(maxSq-minSq))
		p := q.Origin.Add(vec.FromAngle2D(angle).Mul(dist))
		if s.test(p) {
			return p, true
		}
	}
	return s.fallback()
}

// searchRings обходит расширяющиеся кольца с шагом в диаметр границ
func (r *Region) searchRings(s *positionSearch) (vec.Vec3, bool) {
	q := s.query
	step := math.Max(s.radius*2, 1)
	for dist := q.MinRadius; dist <= q.MaxRadius && !s.exhausted(); dist += step {
		points := 1
		if dist > 0 {
			points = int(math.Ceil(2 * math.Pi * dist / step))
		}
		offset := r.rng.Float64() * 2 * math.Pi
		for k := 0; k < points && !s.exhausted(); k++ {
			angle := offset + float64(k)*2*math.Pi/float64(points)
			p := q.Origin.Add(vec.FromAngle2D(angle).Mul(dist))
			if s.test(p) {
				return p, true
			}
		}
	}
	return s.fallback()
}
