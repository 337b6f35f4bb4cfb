package entity

import (
	"fmt"

	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
)

// InvalidID нулевой идентификатор сущности
const InvalidID uint64 = 0

// Flags состояние сущности в мире
type Flags uint32

const (
	FlagInWorld Flags = 1 << iota
	FlagSimulated
	FlagPlayerOwned
	FlagNoCollide
	FlagNotAffectedByPowers
	FlagPlayerRestricted
	FlagAvatar
	FlagHotspot
)

// WorldEntity сущность, размещаемая в регионе
type WorldEntity struct {
	id          uint64
	prototype   *proto.EntityPrototype
	regionID    uint64
	position    vec.Vec3
	orientation vec.Orientation
	bounds      physics.Bounds
	flags       Flags
	collisionID int
	hotspotGuid uint64

	// OnSimulationChanged вызывается при смене флага Simulated
	OnSimulationChanged func(e *WorldEntity, simulated bool)
}

func (e *WorldEntity) ID() uint64                        { return e.id }
func (e *WorldEntity) Prototype() *proto.EntityPrototype { return e.prototype }
func (e *WorldEntity) PrototypeRef() proto.Ref           { return e.prototype.Name }
func (e *WorldEntity) RegionID() uint64                  { return e.regionID }
func (e *WorldEntity) Position() vec.Vec3                { return e.position }
func (e *WorldEntity) Orientation() vec.Orientation      { return e.orientation }
func (e *WorldEntity) Bounds() physics.Bounds            { return e.bounds }
func (e *WorldEntity) Flags() Flags                      { return e.flags }
func (e *WorldEntity) HotspotGuid() uint64               { return e.hotspotGuid }

// RegionBounds охватывающий AABB в координатах региона
func (e *WorldEntity) RegionBounds() physics.Aabb {
	return e.bounds.ToAabb()
}

// HasFlag проверяет флаг
func (e *WorldEntity) HasFlag(f Flags) bool { return e.flags&f != 0 }

func (e *WorldEntity) IsInWorld() bool             { return e.HasFlag(FlagInWorld) }
func (e *WorldEntity) IsSimulated() bool           { return e.HasFlag(FlagSimulated) }
func (e *WorldEntity) IsPlayerOwned() bool         { return e.HasFlag(FlagPlayerOwned) }
func (e *WorldEntity) IsAvatar() bool              { return e.HasFlag(FlagAvatar) }
func (e *WorldEntity) IsHotspot() bool             { return e.HasFlag(FlagHotspot) }
func (e *WorldEntity) IsPlayerRestricted() bool    { return e.HasFlag(FlagPlayerRestricted) }
func (e *WorldEntity) IsNotAffectedByPowers() bool { return e.HasFlag(FlagNotAffectedByPowers) }

// CanCollide true, если сущность участвует в коллизиях
func (e *WorldEntity) CanCollide() bool {
	return !e.HasFlag(FlagNoCollide) && e.bounds.Collision != physics.CollisionNone
}

// CollisionID идентификатор в матрице коллизий региона
func (e *WorldEntity) CollisionID() int { return e.collisionID }

// SetCollisionID назначается регионом при входе в мир
func (e *WorldEntity) SetCollisionID(id int) { e.collisionID = id }

// SetInWorld отмечает присутствие сущности в регионе
func (e *WorldEntity) SetInWorld(regionID uint64, inWorld bool) {
	if inWorld {
		e.regionID = regionID
		e.flags |= FlagInWorld
		return
	}
	e.flags &^= FlagInWorld
}

// SetPosition меняет позицию и центр границ. Переиндексацию выполняет регион.
func (e *WorldEntity) SetPosition(pos vec.Vec3) {
	e.position = pos
	e.bounds = e.bounds.WithCenter(pos)
}

// SetOrientation меняет ориентацию
func (e *WorldEntity) SetOrientation(o vec.Orientation) {
	e.orientation = o
}

// SetSimulated включает или выключает симуляцию. Возвращает true при изменении.
func (e *WorldEntity) SetSimulated(simulated bool) bool {
	if e.IsSimulated() == simulated {
		return false
	}
	if simulated {
		e.flags |= FlagSimulated
	} else {
		e.flags &^= FlagSimulated
	}
	if e.OnSimulationChanged != nil {
		e.OnSimulationChanged(e, simulated)
	}
	return true
}

func (e *WorldEntity) String() string {
	return fmt.Sprintf("Entity[%d %s @(%.1f,%.1f,%.1f)]", e.id, e.prototype.Name,
		e.position.X, e.position.Y, e.position.Z)
}
