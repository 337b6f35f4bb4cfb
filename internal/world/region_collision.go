package world

import (
	"iter"

	"github.com/annel0/mmo-region/internal/entity"
)

// AcquireCollisionId выдает наименьший свободный идентификатор коллизии
func (r *Region) AcquireCollisionId() int {
	return r.collisionIds.Acquire()
}

// ReleaseCollisionId возвращает идентификатор в пул
func (r *Region) ReleaseCollisionId(id int) {
	if !r.collisionIds.Release(id) {
		r.log.Warn("⚠️ %s: повторное освобождение collision id %d", r, id)
	}
}

// LiveCollisionIds число занятых идентификаторов
func (r *Region) LiveCollisionIds() int { return r.collisionIds.Live() }

// CollideEntities true, если пара еще не обрабатывалась в текущем поколении
func (r *Region) CollideEntities(a, b *entity.WorldEntity) bool {
	return r.collisionMatrix.Collide(a.CollisionID(), b.CollisionID())
}

// ClearCollidedEntities начинает новое поколение матрицы
func (r *Region) ClearCollidedEntities() {
	r.collisionMatrix.Clear(r.collisionIds.HighWater())
}

// IterateNewCollisions сущности, пересекающиеся с e, пара с которыми
// встречается впервые с последней очистки матрицы
func (r *Region) IterateNewCollisions(e *entity.WorldEntity) iter.Seq[*entity.WorldEntity] {
	return func(yield func(*entity.WorldEntity) bool) {
		if !e.CanCollide() {
			return
		}
		bounds := e.Bounds()
		for other := range r.IterateEntitiesInVolume(e.RegionBounds(), SPContext{Flags: SPContextAll}) {
			if other == e || !other.CanCollide() || !bounds.Intersects(other.Bounds()) {
				continue
			}
			if r.CollideEntities(e, other) && !yield(other) {
				return
			}
		}
	}
}
