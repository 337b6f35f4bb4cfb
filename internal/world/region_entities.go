package world

import (
	"iter"
	"sort"

	"github.com/annel0/mmo-region/internal/entity"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/vec"
)

// CreateEntity создает сущность и вводит ее в мир региона
func (r *Region) CreateEntity(settings entity.Settings) *entity.WorldEntity {
	e, err := r.manager.entities.Create(settings)
	if err != nil {
		r.log.Warn("⚠️ %s: сущность не создана: %v", r, err)
		return nil
	}
	if !r.EnterWorld(e, settings.Position) {
		r.manager.entities.Destroy(e.ID())
		return nil
	}
	return e
}

// EnterWorld размещает сущность в регионе и индексирует ее
func (r *Region) EnterWorld(e *entity.WorldEntity, pos vec.Vec3) bool {
	if r.entityPartition == nil {
		r.log.Warn("⚠️ %s: индекс сущностей не создан, %s не размещена", r, e)
		return false
	}
	if e.IsInWorld() {
		r.log.Warn("⚠️ %s: %s уже в мире", r, e)
		return false
	}

	e.SetPosition(pos)
	if !r.entityPartition.Insert(e) {
		r.log.Warn("⚠️ %s: не удалось проиндексировать %s", r, e)
		return false
	}
	e.SetInWorld(r.id, true)
	if e.CanCollide() {
		e.SetCollisionID(r.AcquireCollisionId())
	}
	r.entities[e.ID()] = e
	r.UpdateSimulationState(e)
	return true
}

// ExitWorld убирает сущность из региона без уничтожения
func (r *Region) ExitWorld(e *entity.WorldEntity) bool {
	if _, ok := r.entities[e.ID()]; !ok {
		return false
	}
	r.entityPartition.Remove(e)
	if id := e.CollisionID(); id != physics.InvalidCollisionId {
		r.ReleaseCollisionId(id)
		e.SetCollisionID(physics.InvalidCollisionId)
	}
	e.SetSimulated(false)
	e.SetInWorld(r.id, false)
	delete(r.entities, e.ID())
	return true
}

// DestroyEntity выводит сущность из мира и удаляет ее из реестра
func (r *Region) DestroyEntity(e *entity.WorldEntity) {
	if e == nil {
		return
	}
	r.ExitWorld(e)
	r.manager.entities.Destroy(e.ID())
}

// MoveEntity перемещает сущность и обновляет индекс
func (r *Region) MoveEntity(e *entity.WorldEntity, pos vec.Vec3) bool {
	if _, ok := r.entities[e.ID()]; !ok {
		return false
	}
	e.SetPosition(pos)
	if !r.entityPartition.Update(e) {
		r.log.Warn("⚠️ %s: не удалось переиндексировать %s", r, e)
		return false
	}
	r.UpdateSimulationState(e)
	return true
}

// GetEntity сущность региона по ID
func (r *Region) GetEntity(id uint64) *entity.WorldEntity {
	return r.entities[id]
}

// EntityCount число сущностей в мире региона
func (r *Region) EntityCount() int { return len(r.entities) }

// Entities сущности региона по возрастанию ID
func (r *Region) Entities() []*entity.WorldEntity {
	result := make([]*entity.WorldEntity, 0, len(r.entities))
	for _, e := range r.entities {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// IterateEntitiesInVolume сущности, пересекающие объем, из разделов контекста
func (r *Region) IterateEntitiesInVolume(v physics.Volume, ctx SPContext) iter.Seq[*entity.WorldEntity] {
	if r.entityPartition == nil {
		return func(func(*entity.WorldEntity) bool) {}
	}
	return r.entityPartition.IterateInVolume(v, ctx)
}

// IterateAvatarsInVolume аватары, пересекающие объем
func (r *Region) IterateAvatarsInVolume(v physics.Volume) iter.Seq[*entity.WorldEntity] {
	if r.entityPartition == nil {
		return func(func(*entity.WorldEntity) bool) {}
	}
	return r.entityPartition.IterateAvatarsInVolume(v)
}

// isVolumeInterested true, если объем пересекает ячейку с заинтересованными игроками
func (r *Region) isVolumeInterested(v physics.Aabb) bool {
	for c := range r.IterateCellsInVolume(v) {
		if c.numInterestedPlayers > 0 {
			return true
		}
	}
	return false
}

// UpdateSimulationState пересчитывает флаг симуляции сущности.
// Аватары симулируются всегда, остальные только рядом с игроками.
func (r *Region) UpdateSimulationState(e *entity.WorldEntity) bool {
	simulated := e.IsInWorld() && (e.IsAvatar() || r.isVolumeInterested(e.RegionBounds()))
	return e.SetSimulated(simulated)
}

// RefreshSimulationInVolume пересчитывает симуляцию всех сущностей в объеме
func (r *Region) RefreshSimulationInVolume(v physics.Aabb) int {
	var batch []*entity.WorldEntity
	for e := range r.IterateEntitiesInVolume(v, SPContext{Flags: SPContextAll}) {
		batch = append(batch, e)
	}
	changed := 0
	for _, e := range batch {
		if r.UpdateSimulationState(e) {
			changed++
		}
	}
	return changed
}
