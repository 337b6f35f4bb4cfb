package entity

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
)

// ErrUnknownPrototype прототип сущности отсутствует в каталоге
var ErrUnknownPrototype = errors.New("unknown entity prototype")

// Settings параметры создания сущности
type Settings struct {
	Prototype   proto.Ref
	Position    vec.Vec3
	Orientation vec.Orientation
	PlayerOwned bool
	HotspotGuid uint64
	NoCollide   bool
}

// Manager реестр сущностей процесса; идентификаторы уникальны и не переиспользуются
type Manager struct {
	mu       sync.RWMutex
	catalog  proto.Catalog
	entities map[uint64]*WorldEntity
	nextID   uint64
}

// NewManager создаёт новый менеджер сущностей
func NewManager(catalog proto.Catalog) *Manager {
	return &Manager{
		catalog:  catalog,
		entities: make(map[uint64]*WorldEntity),
		nextID:   1,
	}
}

// Create создает сущность вне мира
func (m *Manager) Create(settings Settings) (*WorldEntity, error) {
	p, ok := m.catalog.Entity(settings.Prototype)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrototype, settings.Prototype)
	}
	bounds, err := p.Bounds.Build(settings.Position)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", p.Name, err)
	}

	e := &WorldEntity{
		prototype:   p,
		position:    settings.Position,
		orientation: settings.Orientation,
		bounds:      bounds,
		collisionID: physics.InvalidCollisionId,
		hotspotGuid: settings.HotspotGuid,
	}
	if settings.PlayerOwned {
		e.flags |= FlagPlayerOwned
	}
	if settings.NoCollide {
		e.flags |= FlagNoCollide
	}
	if p.Avatar {
		e.flags |= FlagAvatar | FlagPlayerOwned
	}
	if p.NotAffectedByPowers {
		e.flags |= FlagNotAffectedByPowers
	}
	if p.PlayerRestricted {
		e.flags |= FlagPlayerRestricted
	}
	if settings.HotspotGuid != 0 {
		e.flags |= FlagHotspot
	}

	m.mu.Lock()
	e.id = m.nextID
	m.nextID++
	m.entities[e.id] = e
	m.mu.Unlock()
	return e, nil
}

// Destroy удаляет сущность из реестра. Сущность должна быть уже выведена из мира.
func (m *Manager) Destroy(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entities[id]; !exists {
		return false
	}
	delete(m.entities, id)
	return true
}

// Get возвращает сущность по ID
func (m *Manager) Get(id uint64) (*WorldEntity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok
}

// Count число живых сущностей
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// InRegion сущности региона в порядке создания
func (m *Manager) InRegion(regionID uint64) []*WorldEntity {
	m.mu.RLock()
	var result []*WorldEntity
	for _, e := range m.entities {
		if e.IsInWorld() && e.regionID == regionID {
			result = append(result, e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].id < result[j].id })
	return result
}

// GetStats возвращает статистику для админки
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inWorld, simulated, players := 0, 0, 0
	for _, e := range m.entities {
		if e.IsInWorld() {
			inWorld++
		}
		if e.IsSimulated() {
			simulated++
		}
		if e.IsPlayerOwned() {
			players++
		}
	}
	return map[string]interface{}{
		"total":        len(m.entities),
		"in_world":     inWorld,
		"simulated":    simulated,
		"player_owned": players,
	}
}
