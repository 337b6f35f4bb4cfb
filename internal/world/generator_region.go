package world

import (
	"fmt"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
)

// RegionGenerator стратегия заполнения региона областями.
// GenerateRegion вызывается один раз на попытку.
type RegionGenerator interface {
	GenerateRegion(log *logging.Logger, seed int64, region *Region) bool
	StartArea() *Area
}

// newRegionGenerator выбирает реализацию по тегу прототипа
func newRegionGenerator(p proto.RegionGeneratorPrototype) (RegionGenerator, error) {
	switch p.Kind {
	case proto.RegionGeneratorStaticArea:
		return &StaticAreaRegionGenerator{proto: p}, nil
	case proto.RegionGeneratorSequence:
		return &SequenceRegionGenerator{proto: p}, nil
	default:
		return nil, fmt.Errorf("неизвестный генератор региона %q", p.Kind)
	}
}

// StaticAreaRegionGenerator размещает области в заданных точках
type StaticAreaRegionGenerator struct {
	proto     proto.RegionGeneratorPrototype
	startArea *Area
}

func (g *StaticAreaRegionGenerator) StartArea() *Area { return g.startArea }

func (g *StaticAreaRegionGenerator) GenerateRegion(log *logging.Logger, seed int64, region *Region) bool {
	if len(g.proto.Areas) == 0 {
		log.Warn("⚠️ StaticAreaRegionGenerator: регион %s без областей", region.PrototypeRef())
		return false
	}

	byRef := make(map[proto.Ref]*Area, len(g.proto.Areas))
	for _, entry := range g.proto.Areas {
		area := region.CreateArea(entry.Area, entry.Origin, nil)
		if area == nil {
			return false
		}
		if _, exists := byRef[entry.Area]; !exists {
			byRef[entry.Area] = area
		}
		if g.startArea == nil {
			g.startArea = area
		}
	}
	if start, ok := byRef[g.proto.StartArea]; ok {
		g.startArea = start
	}

	for _, link := range g.proto.Connections {
		from, to := byRef[link.From], byRef[link.To]
		if from == nil || to == nil {
			log.Warn("⚠️ StaticAreaRegionGenerator: соединение %s -> %s ссылается на неизвестную область", link.From, link.To)
			return false
		}
		pos := vec.Lerp(from.RegionBounds().Center(), to.RegionBounds().Center(), 0.5)
		CreateConnection(from, to, pos, ConnectPositionOne)
	}
	return true
}

// SequenceRegionGenerator выстраивает области цепочкой вдоль +X и соединяет соседние
type SequenceRegionGenerator struct {
	proto     proto.RegionGeneratorPrototype
	startArea *Area
}

func (g *SequenceRegionGenerator) StartArea() *Area { return g.startArea }

func (g *SequenceRegionGenerator) GenerateRegion(log *logging.Logger, seed int64, region *Region) bool {
	if len(g.proto.Sequence) == 0 {
		log.Warn("⚠️ SequenceRegionGenerator: пустая последовательность в %s", region.PrototypeRef())
		return false
	}

	var chain []*Area
	cursor := 0.0
	for _, ref := range g.proto.Sequence {
		area := region.CreateArea(ref, vec.Zero, nil)
		if area == nil {
			return false
		}
		local := area.LocalBounds()
		area.SetOrigin(vec.New(cursor-local.Min.X, -local.Center().Y, 0))
		cursor = area.RegionBounds().Max.X + g.proto.Spacing
		chain = append(chain, area)
	}
	g.startArea = chain[0]

	for i := 0; i+1 < len(chain); i++ {
		a, b := chain[i], chain[i+1]
		pos := vec.New((a.RegionBounds().Max.X+b.RegionBounds().Min.X)/2, 0, a.Origin().Z)
		CreateConnection(a, b, pos, sequenceConnectKind(i, len(chain)-1))
	}
	log.Debug("🔗 SequenceRegionGenerator: %d областей в цепочке", len(chain))
	return true
}

// sequenceConnectKind роль i-го из n соединений цепочки
func sequenceConnectKind(i, n int) ConnectPosition {
	switch {
	case n == 1:
		return ConnectPositionOne
	case i == 0:
		return ConnectPositionBegin
	case i == n-1:
		return ConnectPositionEnd
	default:
		return ConnectPositionInside
	}
}
