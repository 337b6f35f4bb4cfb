package world

import (
	"sort"

	"github.com/annel0/mmo-region/internal/proto"
)

// WorldView личный взгляд игрока на мир: приватные экземпляры регионов,
// которые принадлежат только ему
type WorldView struct {
	id      uint64
	owner   string
	private map[proto.Ref]uint64
}

// NewWorldView создает вид игрока
func NewWorldView(id uint64, owner string) *WorldView {
	return &WorldView{id: id, owner: owner, private: make(map[proto.Ref]uint64)}
}

func (v *WorldView) ID() uint64    { return v.id }
func (v *WorldView) Owner() string { return v.owner }

// PrivateRegion ID приватного экземпляра прототипа
func (v *WorldView) PrivateRegion(ref proto.Ref) (uint64, bool) {
	id, ok := v.private[ref]
	return id, ok
}

// PrivateRegions ID всех приватных экземпляров по возрастанию
func (v *WorldView) PrivateRegions() []uint64 {
	ids := make([]uint64, 0, len(v.private))
	for _, id := range v.private {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (v *WorldView) addPrivate(ref proto.Ref, id uint64) { v.private[ref] = id }

func (v *WorldView) removePrivate(id uint64) {
	for ref, rid := range v.private {
		if rid == id {
			delete(v.private, ref)
		}
	}
}

// Connection подключение игрока к серверу. RegionID 0 означает, что игрок вне региона.
type Connection struct {
	ID        uint64
	WorldView *WorldView
	RegionID  uint64
}
