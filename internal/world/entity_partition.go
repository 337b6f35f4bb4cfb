package world

import (
	"iter"

	"github.com/annel0/mmo-region/internal/entity"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/spatial"
)

const (
	cellPartitionMinRadius   = 128.0
	entityPartitionMinRadius = 64.0
)

// SPContextFlags какие разделы индекса сущностей обходить
type SPContextFlags uint32

const (
	SPContextPrimary SPContextFlags = 1 << iota
	SPContextNotAffectedByPowers
	SPContextPlayerRestricted

	SPContextAll = SPContextPrimary | SPContextNotAffectedByPowers | SPContextPlayerRestricted
)

// SPContext контекст запроса к индексу сущностей. Нулевое значение означает основной раздел.
type SPContext struct {
	Flags SPContextFlags
}

func (c SPContext) flags() SPContextFlags {
	if c.Flags == 0 {
		return SPContextPrimary
	}
	return c.Flags
}

// EntityPartition индекс сущностей региона из нескольких квадродеревьев и списка аватаров
type EntityPartition struct {
	primary     *spatial.Quadtree[*entity.WorldEntity]
	notAffected *spatial.Quadtree[*entity.WorldEntity]
	restricted  *spatial.Quadtree[*entity.WorldEntity]
	avatars     []*entity.WorldEntity
}

func entityBounds(e *entity.WorldEntity) physics.Aabb { return e.RegionBounds() }

// NewEntityPartition создает индекс над границами региона
func NewEntityPartition(bounds physics.Aabb) *EntityPartition {
	return &EntityPartition{
		primary:     spatial.NewQuadtree(bounds, entityPartitionMinRadius, entityBounds),
		notAffected: spatial.NewQuadtree(bounds, entityPartitionMinRadius, entityBounds),
		restricted:  spatial.NewQuadtree(bounds, entityPartitionMinRadius, entityBounds),
	}
}

func (p *EntityPartition) treeFor(e *entity.WorldEntity) *spatial.Quadtree[*entity.WorldEntity] {
	switch {
	case e.IsPlayerRestricted():
		return p.restricted
	case e.IsNotAffectedByPowers():
		return p.notAffected
	default:
		return p.primary
	}
}

// Insert добавляет сущность в свой раздел; аватары также попадают в список
func (p *EntityPartition) Insert(e *entity.WorldEntity) bool {
	if !p.treeFor(e).Insert(e) {
		return false
	}
	if e.IsAvatar() {
		p.avatars = append(p.avatars, e)
	}
	return true
}

// Remove удаляет сущность
func (p *EntityPartition) Remove(e *entity.WorldEntity) bool {
	if !p.treeFor(e).Remove(e) {
		return false
	}
	if e.IsAvatar() {
		for i, a := range p.avatars {
			if a == e {
				p.avatars = append(p.avatars[:i], p.avatars[i+1:]...)
				break
			}
		}
	}
	return true
}

// Update переиндексирует сущность по текущим границам
func (p *EntityPartition) Update(e *entity.WorldEntity) bool {
	return p.treeFor(e).Update(e)
}

// Contains проверяет наличие сущности
func (p *EntityPartition) Contains(e *entity.WorldEntity) bool {
	return p.treeFor(e).Contains(e)
}

// Len число сущностей во всех разделах
func (p *EntityPartition) Len() int {
	return p.primary.Len() + p.notAffected.Len() + p.restricted.Len()
}

// IterateInVolume обходит разделы, выбранные контекстом
func (p *EntityPartition) IterateInVolume(v physics.Volume, ctx SPContext) iter.Seq[*entity.WorldEntity] {
	flags := ctx.flags()
	return func(yield func(*entity.WorldEntity) bool) {
		trees := [...]struct {
			flag SPContextFlags
			tree *spatial.Quadtree[*entity.WorldEntity]
		}{
			{SPContextPrimary, p.primary},
			{SPContextNotAffectedByPowers, p.notAffected},
			{SPContextPlayerRestricted, p.restricted},
		}
		for _, t := range trees {
			if flags&t.flag == 0 {
				continue
			}
			for e := range t.tree.IterateInVolume(v) {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// IterateAvatarsInVolume обходит только аватаров
func (p *EntityPartition) IterateAvatarsInVolume(v physics.Volume) iter.Seq[*entity.WorldEntity] {
	return func(yield func(*entity.WorldEntity) bool) {
		for _, a := range p.avatars {
			if v.IntersectsAabb(a.RegionBounds()) && !yield(a) {
				return
			}
		}
	}
}
