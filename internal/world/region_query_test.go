package world

import (
	"testing"

	"github.com/annel0/mmo-region/internal/entity"
	"github.com/annel0/mmo-region/internal/navi"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawn(t *testing.T, r *Region, ref proto.Ref, pos vec.Vec3) *entity.WorldEntity {
	t.Helper()
	e := r.CreateEntity(entity.Settings{Prototype: ref, Position: pos})
	require.NotNil(t, e, "сущность %s должна создаваться", ref)
	return e
}

func TestRegion_SweepTieBreak(t *testing.T) {
	m := newTestManager(t)
	r := newBlankRegion(t, m)

	off := spawn(t, r, "crate", vec.New(100, 15, 0))
	aligned := spawn(t, r, "crate", vec.New(100, -5, 0))

	q := SweepQuery{
		Bounds:   physics.NewBoxBounds(vec.Zero, 10, 10, 10),
		Velocity: vec.New(200, 0, 0),
	}
	hit, ok := r.SweepToFirstHitEntity(q)
	require.True(t, ok)
	assert.Same(t, aligned, hit.Entity, "при равном времени побеждает сущность ближе к направлению движения")
	assert.InDelta(t, 0.4, hit.Time, 1e-9)
	assert.InDelta(t, 80.0, hit.Position.X, 1e-9)

	q.BlocksHit = func(e *entity.WorldEntity) bool { return e != aligned }
	hit, ok = r.SweepToFirstHitEntity(q)
	require.True(t, ok)
	assert.Same(t, off, hit.Entity, "BlocksHit исключает сущность")

	q.BlocksHit = nil
	near := spawn(t, r, "crate", vec.New(60, 8, 0))
	hit, ok = r.SweepToFirstHitEntity(q)
	require.True(t, ok)
	assert.Same(t, near, hit.Entity, "более раннее время важнее направления")
	assert.InDelta(t, 0.2, hit.Time, 1e-9)

	q.MoverID = near.ID()
	hit, ok = r.SweepToFirstHitEntity(q)
	require.True(t, ok)
	assert.Same(t, aligned, hit.Entity, "сущность не сталкивается сама с собой")

	_, ok = r.SweepToFirstHitEntity(SweepQuery{
		Bounds:   physics.NewBoxBounds(vec.New(0, 300, 0), 10, 10, 10),
		Velocity: vec.New(200, 0, 0),
	})
	assert.False(t, ok, "на пути нет сущностей")
}

func TestRegion_SweepTieWindowDoesNotDrift(t *testing.T) {
	m := newTestManager(t)
	r := newBlankRegion(t, m)

	// Каждая следующая сущность отстает от предыдущей меньше чем на допуск,
	// но последняя отстает от первой больше чем на допуск.
	first := spawn(t, r, "crate", vec.New(100, 15, 0))
	middle := spawn(t, r, "crate", vec.New(100.006, 10, 0))
	late := spawn(t, r, "crate", vec.New(100.012, -5, 0))

	q := SweepQuery{
		Bounds:   physics.NewBoxBounds(vec.Zero, 10, 10, 10),
		Velocity: vec.New(200, 0, 0),
	}
	hit, ok := r.SweepToFirstHitEntity(q)
	require.True(t, ok)
	assert.Same(t, middle, hit.Entity, "окно равенства отсчитывается от самого раннего попадания")
	assert.NotSame(t, late, hit.Entity, "сущность за пределами окна не выигрывает по направлению")
	assert.InDelta(t, 0.40003, hit.Time, 1e-9)

	q.BlocksHit = func(e *entity.WorldEntity) bool { return e != middle }
	hit, ok = r.SweepToFirstHitEntity(q)
	require.True(t, ok)
	assert.Same(t, first, hit.Entity, "без средней сущности поздняя остается вне окна")
}

func TestRegion_LineOfSight(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)

	low := LineOfSightQuery{Start: vec.New(-50, 0, 10), Target: vec.New(200, 0, 10), Radius: 5, Height: 20, PathFlags: navi.PathFlagsWalk}
	assert.False(t, r.LineOfSightTo(low), "препятствие сетки выше линии взгляда")

	high := low
	high.Start.Z, high.Target.Z = 60, 60
	assert.True(t, r.LineOfSightTo(high), "препятствие ниже старшей точки не мешает")

	outside := high
	outside.Target = vec.New(400, 0, 60)
	assert.False(t, r.LineOfSightTo(outside), "цель вне сетки")

	crate := spawn(t, r, "crate", vec.New(0, 100, 0))
	q := LineOfSightQuery{Start: vec.New(-50, 100, 20), Target: vec.New(50, 100, 20), Radius: 5, Height: 40, PathFlags: navi.PathFlagsWalk}
	assert.False(t, r.LineOfSightTo(q), "ящик загораживает цель")

	q.TargetID = crate.ID()
	assert.True(t, r.LineOfSightTo(q), "сама цель не загораживает себя")

	citizen := spawn(t, r, "citizen", vec.New(0, -100, 0))
	q = LineOfSightQuery{Start: vec.New(-50, -100, 20), Target: vec.New(50, -100, 20), Radius: 5, Height: 40, PathFlags: navi.PathFlagsWalk}
	assert.True(t, r.LineOfSightTo(q), "%s не блокирует видимость", citizen)

	blank := newBlankRegion(t, m)
	assert.False(t, blank.LineOfSightTo(high), "без сгенерированной сетки видимости нет")
}

func TestRegion_ChooseRandomPositionNearPoint(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)

	bounds := physics.NewCapsuleBounds(vec.Zero, 10, 40)
	bounds.Collision = physics.CollisionBlocking
	origin := vec.New(0, -100, 0)

	for i := 0; i < 20; i++ {
		p, ok := r.ChooseRandomPositionNearPoint(PositionQuery{
			Origin:        origin,
			MinRadius:     10,
			MaxRadius:     50,
			Bounds:        bounds,
			PathFlags:     navi.PathFlagsWalk,
			PositionFlags: PositionCheckCanBeBlockedEntity | PositionCheckCanPathTo,
			BlockingFlags: BlockingCheckSelf,
		})
		require.True(t, ok)
		d := p.Distance2D(origin)
		assert.GreaterOrEqual(t, d, 10-1e-9)
		assert.LessOrEqual(t, d, 50+1e-9)
		assert.True(t, r.NaviMesh().Contains(p, 10, navi.PathFlagsWalk))
	}

	accepted := func(p vec.Vec3) bool { return p.X > 0 }
	p, ok := r.ChooseRandomPositionNearPoint(PositionQuery{
		Origin: origin, MaxRadius: 50, Bounds: bounds, PathFlags: navi.PathFlagsWalk, Predicate: accepted,
	})
	require.True(t, ok)
	assert.Greater(t, p.X, 0.0, "предикат вызывающего соблюдается")
}

func TestRegion_PositionSearchRejectsBadQueries(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)
	bounds := physics.NewSphereBounds(vec.Zero, 10)
	origin := vec.New(0, -100, 0)

	p, ok := r.ChooseRandomPositionNearPoint(PositionQuery{
		Origin: origin, MaxRadius: 50, Bounds: bounds, PathFlags: navi.PathFlagsWalk,
		PositionFlags: PositionCheckCanPathTo | PositionCheckCanSweepTo,
	})
	assert.False(t, ok, "CanPathTo и CanSweepTo несовместимы")
	assert.Equal(t, origin, p)

	_, ok = r.ChooseRandomPositionNearPoint(PositionQuery{Origin: origin, MinRadius: 50, MaxRadius: 10, Bounds: bounds})
	assert.False(t, ok, "MaxRadius меньше MinRadius")

	blank := newBlankRegion(t, m)
	_, ok = blank.ChooseRandomPositionNearPoint(PositionQuery{Origin: origin, MaxRadius: 50, Bounds: bounds})
	assert.False(t, ok, "без навигационной сетки")

	_, ok = r.ChooseRandomPositionNearPoint(PositionQuery{
		Origin: vec.New(2000, 2000, 0), MaxRadius: 10, Bounds: bounds, PathFlags: navi.PathFlagsWalk, MaxTests: 5,
	})
	assert.False(t, ok, "вне сетки кандидатов нет")
}

func TestRegion_ChoosePositionAtOrNearPoint(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)
	statue := r.Entities()[0]

	bounds := physics.NewCapsuleBounds(vec.Zero, 10, 40)
	bounds.Collision = physics.CollisionBlocking
	free := vec.New(0, -100, 0)

	p, ok := r.ChoosePositionAtOrNearPoint(PositionQuery{
		Origin: free, MaxRadius: 50, Bounds: bounds, PathFlags: navi.PathFlagsWalk,
		PositionFlags: PositionCheckCanBeBlockedEntity, BlockingFlags: BlockingCheckSelf,
	})
	require.True(t, ok)
	assert.Equal(t, free, p, "свободная точка возвращается как есть")

	p, ok = r.ChoosePositionAtOrNearPoint(PositionQuery{
		Origin: statue.Position(), MaxRadius: 100, Bounds: bounds, PathFlags: navi.PathFlagsWalk,
		PositionFlags: PositionCheckCanBeBlockedEntity, BlockingFlags: BlockingCheckSelf,
	})
	require.True(t, ok)
	assert.NotEqual(t, statue.Position(), p)
	assert.Equal(t, 0, r.IsBoundsBlockedByEntity(bounds.WithCenter(p), BlockingCheckSelf, 0))

	p, ok = r.ChoosePositionAtOrNearPoint(PositionQuery{
		Origin: statue.Position(), MaxRadius: 100, Bounds: bounds, PathFlags: navi.PathFlagsWalk,
		PositionFlags: PositionCheckPreferNoEntity, BlockingFlags: BlockingCheckSelf, MaxTests: 1,
	})
	assert.True(t, ok, "PreferNoEntity возвращает наименее заблокированную точку")
	assert.Equal(t, statue.Position(), p)

	p, ok = r.ChoosePositionAtOrNearPoint(PositionQuery{
		Origin: free, MinRadius: 0, MaxRadius: 100, Bounds: bounds, PathFlags: navi.PathFlagsWalk,
		PositionFlags: PositionCheckCanBeBlockedEntity | PositionCheckInRadius, BlockingFlags: BlockingCheckSelf,
	})
	require.True(t, ok)
	assert.Equal(t, free, p)
}

func TestRegion_SearchRingsSkipsBlockedCenter(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)
	statue := r.Entities()[0]

	bounds := physics.NewCapsuleBounds(vec.Zero, 10, 40)
	bounds.Collision = physics.CollisionBlocking
	p, ok := r.ChooseRandomPositionNearPoint(PositionQuery{
		Origin: statue.Position(), MaxRadius: 200, Bounds: bounds, PathFlags: navi.PathFlagsWalk,
		PositionFlags: PositionCheckCanBeBlockedEntity | PositionCheckInRadius, BlockingFlags: BlockingCheckSelf,
	})
	require.True(t, ok)
	d := p.Distance2D(statue.Position())
	assert.GreaterOrEqual(t, d, 20.0-1e-9, "кольца идут с шагом в диаметр границ")
	assert.LessOrEqual(t, d, 40.0+1e-9, "первое свободное кольцо")
}

func TestRegion_IsBoundsBlockedByEntity(t *testing.T) {
	m := newTestManager(t)
	r := newBlankRegion(t, m)

	statue := spawn(t, r, "statue", vec.New(0, 0, 0))
	citizen := spawn(t, r, "citizen", vec.New(200, 0, 0))

	probe := physics.NewSphereBounds(vec.Zero, 5)
	probe.Collision = physics.CollisionOverlapping
	assert.Equal(t, 0, r.IsBoundsBlockedByEntity(probe, BlockingCheckSelf, 0), "пересекающиеся границы не блокируют")
	assert.Equal(t, 1, r.IsBoundsBlockedByEntity(probe, BlockingCheckSpawns, 0), "статуя блокирует спавн")
	assert.Equal(t, 0, r.IsBoundsBlockedByEntity(probe, BlockingCheckSpawns, statue.ID()), "ignoreID исключает сущность")

	probe = citizen.Bounds().WithCenter(vec.New(205, 0, 0))
	assert.Equal(t, 1, r.IsBoundsBlockedByEntity(probe, BlockingCheckSelf, 0), "блокирующие границы блокируют друг друга")
	assert.Equal(t, 0, r.IsBoundsBlockedByEntity(probe, BlockingCheckSelf, citizen.ID()))
}

func TestRegion_CollisionDedup(t *testing.T) {
	m := newTestManager(t)
	r := newBlankRegion(t, m)

	a := spawn(t, r, "crate", vec.New(0, 0, 0))
	b := spawn(t, r, "crate", vec.New(5, 0, 0))
	spawn(t, r, "crate", vec.New(300, 0, 0))
	assert.Equal(t, 0, a.CollisionID(), "выдается наименьший свободный идентификатор")
	assert.Equal(t, 1, b.CollisionID())
	assert.Equal(t, 3, r.LiveCollisionIds())

	collect := func() []*entity.WorldEntity {
		var got []*entity.WorldEntity
		for e := range r.IterateNewCollisions(a) {
			got = append(got, e)
		}
		return got
	}
	got := collect()
	require.Len(t, got, 1)
	assert.Same(t, b, got[0])
	assert.Empty(t, collect(), "пара обрабатывается один раз за поколение")
	assert.False(t, r.CollideEntities(b, a), "матрица симметрична")

	r.ClearCollidedEntities()
	assert.Len(t, collect(), 1, "после очистки пара снова новая")

	r.DestroyEntity(a)
	assert.Equal(t, 2, r.LiveCollisionIds())
	c := spawn(t, r, "crate", vec.New(-300, 0, 0))
	assert.Equal(t, 0, c.CollisionID(), "освобожденный идентификатор переиспользуется")
}
