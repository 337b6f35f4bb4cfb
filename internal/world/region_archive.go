package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/mmo-region/internal/protocol"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrRegionNotFound регион отсутствует
	ErrRegionNotFound = errors.New("region not found")
	// ErrArchiveMismatch архив не соответствует перегенерированному региону
	ErrArchiveMismatch = errors.New("archive does not match regenerated region")
)

// RegionArchive разобранное состояние региона
type RegionArchive struct {
	ID                uint64
	Prototype         proto.Ref
	Seed              int64
	MatchNumber       int
	CreatedAt         time.Time
	GenerationAttempt int
	Missions          []Mission
	Widgets           []UIWidget
	ObjectiveNodes    []ObjectiveNode
	ObjectiveEdges    map[uint32][]uint32
}

// MarshalArchive сериализует регион, миссии, интерфейс и граф целей
// в архив из упорядоченных подблоков
func (r *Region) MarshalArchive() ([]byte, error) {
	w := protocol.NewArchiveWriter()

	region := protocol.NewEncoder().
		Uint(1, r.id).
		String(2, string(r.PrototypeRef())).
		Int(3, r.randomSeed).
		Int(4, int64(r.settings.MatchNumber)).
		Int(5, r.createdTime.UnixNano()).
		Uint(6, uint64(r.generationAttempt))
	if err := w.WriteBlock(protocol.BlockRegion, region.Encoded()); err != nil {
		return nil, err
	}

	missions := protocol.NewEncoder()
	if r.missionManager != nil {
		for _, m := range r.missionManager.Missions() {
			missions.Message(1, func(e *protocol.Encoder) {
				e.String(1, string(m.Prototype.Name)).Uint(2, uint64(m.State)).Int(3, int64(m.Progress))
			})
		}
	}
	if err := w.WriteBlock(protocol.BlockMissions, missions.Encoded()); err != nil {
		return nil, err
	}

	ui := protocol.NewEncoder()
	if r.uiDataProvider != nil {
		for _, wd := range r.uiDataProvider.Widgets() {
			ui.Message(1, func(e *protocol.Encoder) {
				e.String(1, wd.Name).Int(2, wd.Value).String(3, wd.Text)
			})
		}
	}
	if err := w.WriteBlock(protocol.BlockUI, ui.Encoded()); err != nil {
		return nil, err
	}

	graph := protocol.NewEncoder()
	if r.objectiveGraph != nil {
		for _, n := range r.objectiveGraph.Nodes() {
			graph.Message(1, func(e *protocol.Encoder) {
				e.Uint(1, uint64(n.ID)).Uint(2, uint64(n.Areas[0])).Uint(3, uint64(n.Areas[1])).
					Double(4, n.Position.X).Double(5, n.Position.Y).Double(6, n.Position.Z).
					Uint(7, uint64(n.Kind))
			})
		}
		for _, n := range r.objectiveGraph.Nodes() {
			for _, to := range r.objectiveGraph.Neighbors(n.ID) {
				graph.Message(2, func(e *protocol.Encoder) {
					e.Uint(1, uint64(n.ID)).Uint(2, uint64(to))
				})
			}
		}
	}
	if err := w.WriteBlock(protocol.BlockObjectiveGraph, graph.Encoded()); err != nil {
		return nil, err
	}
	return w.Bytes()
}

// UnmarshalRegionArchive разбирает архив; подблоки обязаны идти по порядку
func UnmarshalRegionArchive(data []byte) (*RegionArchive, error) {
	reader, err := protocol.NewArchiveReader(data)
	if err != nil {
		return nil, err
	}
	a := &RegionArchive{ObjectiveEdges: make(map[uint32][]uint32)}

	block, err := reader.ReadBlock(protocol.BlockRegion)
	if err != nil {
		return nil, err
	}
	err = protocol.Decode(block, func(f protocol.Field) error {
		switch f.Num {
		case 1:
			a.ID = f.Uint()
		case 2:
			a.Prototype = proto.Ref(f.String())
		case 3:
			a.Seed = f.Int()
		case 4:
			a.MatchNumber = int(f.Int())
		case 5:
			a.CreatedAt = time.Unix(0, f.Int())
		case 6:
			a.GenerationAttempt = int(f.Uint())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("region block: %w", err)
	}

	if block, err = reader.ReadBlock(protocol.BlockMissions); err != nil {
		return nil, err
	}
	err = decodeRepeated(block, 1, func(msg []byte) error {
		var m Mission
		var name proto.Ref
		err := protocol.Decode(msg, func(f protocol.Field) error {
			switch f.Num {
			case 1:
				name = proto.Ref(f.String())
			case 2:
				m.State = MissionState(f.Uint())
			case 3:
				m.Progress = int32(f.Int())
			}
			return nil
		})
		m.Prototype = &proto.MissionPrototype{Name: name}
		a.Missions = append(a.Missions, m)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("missions block: %w", err)
	}

	if block, err = reader.ReadBlock(protocol.BlockUI); err != nil {
		return nil, err
	}
	err = decodeRepeated(block, 1, func(msg []byte) error {
		var wd UIWidget
		err := protocol.Decode(msg, func(f protocol.Field) error {
			switch f.Num {
			case 1:
				wd.Name = f.String()
			case 2:
				wd.Value = f.Int()
			case 3:
				wd.Text = f.String()
			}
			return nil
		})
		a.Widgets = append(a.Widgets, wd)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ui block: %w", err)
	}

	if block, err = reader.ReadBlock(protocol.BlockObjectiveGraph); err != nil {
		return nil, err
	}
	err = protocol.Decode(block, func(f protocol.Field) error {
		switch f.Num {
		case 1:
			var n ObjectiveNode
			var x, y, z float64
			err := protocol.Decode(f.Bytes(), func(nf protocol.Field) error {
				switch nf.Num {
				case 1:
					n.ID = uint32(nf.Uint())
				case 2:
					n.Areas[0] = uint32(nf.Uint())
				case 3:
					n.Areas[1] = uint32(nf.Uint())
				case 4:
					x = nf.Double()
				case 5:
					y = nf.Double()
				case 6:
					z = nf.Double()
				case 7:
					n.Kind = ConnectPosition(nf.Uint())
				}
				return nil
			})
			n.Position = vec.New(x, y, z)
			a.ObjectiveNodes = append(a.ObjectiveNodes, n)
			return err
		case 2:
			var from, to uint32
			err := protocol.Decode(f.Bytes(), func(ef protocol.Field) error {
				switch ef.Num {
				case 1:
					from = uint32(ef.Uint())
				case 2:
					to = uint32(ef.Uint())
				}
				return nil
			})
			a.ObjectiveEdges[from] = append(a.ObjectiveEdges[from], to)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("objective graph block: %w", err)
	}
	return a, nil
}

func decodeRepeated(data []byte, num protowire.Number, fn func(msg []byte) error) error {
	return protocol.Decode(data, func(f protocol.Field) error {
		if f.Num != num {
			return nil
		}
		return fn(f.Bytes())
	})
}

// applyArchive переносит состояние миссий и интерфейса в перегенерированный регион.
// Граф целей должен совпасть по форме с построенным заново.
func (r *Region) applyArchive(a *RegionArchive) error {
	if len(a.ObjectiveNodes) != len(r.objectiveGraph.Nodes()) {
		return fmt.Errorf("%w: objective nodes %d, regenerated %d",
			ErrArchiveMismatch, len(a.ObjectiveNodes), len(r.objectiveGraph.Nodes()))
	}
	for _, m := range a.Missions {
		if !r.missionManager.SetState(m.Prototype.Name, m.State, m.Progress) {
			r.log.Warn("⚠️ %s: миссия %s из архива отсутствует в прототипе", r, m.Prototype.Name)
		}
	}
	for _, wd := range a.Widgets {
		r.uiDataProvider.SetWidget(wd)
	}
	r.createdTime = a.CreatedAt
	return nil
}

// ResumeRegion восстанавливает регион из архива: регенерирует его тем же seed
// по тому же адресу и применяет сохраненное состояние
func (m *RegionManager) ResumeRegion(ctx context.Context, data []byte) (*Region, error) {
	a, err := UnmarshalRegionArchive(data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.idGen.Observe(a.ID)
	region := m.createRegionLocked(ctx, RegionSettings{
		InstanceAddress: a.ID,
		Prototype:       a.Prototype,
		Seed:            a.Seed,
		MatchNumber:     a.MatchNumber,
		GenerateAreas:   true,
	}, 1)
	if region == nil {
		return nil, fmt.Errorf("resume region 0x%X (%s): generation failed", a.ID, a.Prototype)
	}
	if err := region.applyArchive(a); err != nil {
		m.destroyRegionLocked(ctx, region.id, false)
		return nil, err
	}
	if p := region.prototype; p != nil && !p.Private {
		if _, exists := m.publicRegions[p.Name]; !exists {
			m.publicRegions[p.Name] = region
		}
	}
	m.log.Info("♻️ Регион %s восстановлен из архива", region)
	return region, nil
}

// ResumeRegionByID загружает архив из хранилища и восстанавливает регион
func (m *RegionManager) ResumeRegionByID(ctx context.Context, id uint64) (*Region, error) {
	if m.archives == nil {
		return nil, fmt.Errorf("resume region 0x%X: %w", id, ErrRegionNotFound)
	}
	data, err := m.archives.LoadArchive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resume region 0x%X: %w", id, err)
	}
	return m.ResumeRegion(ctx, data)
}
