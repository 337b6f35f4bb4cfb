package world

import (
	"context"
	"testing"

	"github.com/annel0/mmo-region/internal/entity"
	"github.com/annel0/mmo-region/internal/navi"
	"github.com/annel0/mmo-region/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegion_GenerateTown(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)

	assert.True(t, r.IsGenerated(), "регион должен быть помечен сгенерированным")
	assert.Equal(t, 1, r.AreaCount())
	require.NotNil(t, r.StartArea())
	assert.Equal(t, "plaza", string(r.StartArea().PrototypeRef()))
	assert.Equal(t, 10, r.StartArea().Level())
	assert.True(t, r.StartArea().IsGenerated(GenerateFlagAll), "все этапы области должны быть завершены")
	assert.True(t, r.NaviMesh().IsMeshValid())
	assert.Equal(t, 1, r.CellPartitionLen())

	cell := r.GetCellAtPosition(vec.New(10, 10, 0))
	require.NotNil(t, cell)
	assert.Same(t, r.StartArea(), cell.Area())
	assert.Same(t, cell, m.GetCell(cell.ID()), "ячейка должна быть в реестре менеджера")
	assert.Equal(t, 512.0*512.0-20*40, cell.SpawnableNavArea(), "площадь измеряется по сетке за вычетом препятствий")

	// маркер entity создает статую на этапе PostInitialize
	assert.Equal(t, 1, r.EntityCount())
	assert.Equal(t, "statue", string(r.Entities()[0].PrototypeRef()))
	assert.Equal(t, vec.New(-100, 150, 0), r.Entities()[0].Position())
}

func TestRegion_AreaAtPosition(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)

	assert.Same(t, r.StartArea(), r.GetAreaAtPosition(vec.New(0, 0, 0)))
	assert.Nil(t, r.GetAreaAtPosition(vec.New(1000, 0, 0)))
	assert.Nil(t, r.GetCellAtPosition(vec.New(1000, 0, 0)))
	assert.Equal(t, 0.0, r.GetDistanceToClosestAreaBounds(vec.New(5, 5, 0)))
	assert.InDelta(t, 44.0, r.GetDistanceToClosestAreaBounds(vec.New(300, 0, 0)), 1e-9)
}

func TestRegion_GenerateAreasTwice(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)

	assert.False(t, r.GenerateAreas(), "повторная генерация должна быть отклонена")
	assert.Equal(t, 1, r.AreaCount(), "повторная генерация не должна создавать области")
}

func TestArea_PhaseOrdering(t *testing.T) {
	m := newTestManager(t)
	r := newBlankRegion(t, m)

	area := r.CreateArea("plaza", vec.Zero, nil)
	require.NotNil(t, area)
	ids := r.areaIDs()

	assert.False(t, area.Generate(nil, ids, GenerateFlagPathCollection), "PathCollection требует Navi")
	assert.False(t, area.Generate(nil, ids, GenerateFlagPostInitialize), "PostInitialize требует Background")
	assert.False(t, area.Generate(nil, ids, GenerateFlagNavi), "Navi требует Background")
	assert.False(t, area.Generate(nil, ids, GenerateFlagPopulation), "Population требует Background")
	assert.Equal(t, GenerateFlagNone, area.Status())

	require.True(t, area.Generate(nil, ids, GenerateFlagBackground))
	assert.Equal(t, 1, area.CellCount())
	require.True(t, area.Generate(nil, ids, GenerateFlagBackground), "повторный этап должен быть успешным без работы")
	assert.Equal(t, 1, area.CellCount(), "повторный Background не должен создавать ячейки")

	assert.False(t, area.Generate(nil, ids, GenerateFlagPostGenerate), "PostGenerate требует Population")
	require.True(t, area.Generate(nil, ids, GenerateFlagPostInitialize|GenerateFlagNavi))
	require.True(t, area.Generate(nil, ids, GenerateFlagPathCollection))
	assert.True(t, area.IsGenerated(GenerateFlagBackground|GenerateFlagPostInitialize|GenerateFlagNavi|GenerateFlagPathCollection))
	assert.False(t, area.IsGenerated(GenerateFlagPopulation))
}

func TestArea_SetOriginMovesConnections(t *testing.T) {
	m := newTestManager(t)
	r := newBlankRegion(t, m)

	a := r.CreateArea("room", vec.Zero, nil)
	b := r.CreateArea("room", vec.New(256, 0, 0), nil)
	require.NotNil(t, a)
	require.NotNil(t, b)

	CreateConnection(a, b, vec.New(128, 0, 0), ConnectPositionOne)
	assert.True(t, a.IsConnectedTo(b))
	assert.True(t, b.IsConnectedTo(a), "соединение должно быть симметричным")

	b.SetOrigin(vec.New(300, 0, 0))
	assert.Equal(t, vec.New(172, 0, 0), b.Connections()[0].Position)
	assert.Equal(t, vec.New(172, 0, 0), a.Connections()[0].Position, "точка соседа сдвигается вместе с областью")

	b.DestroyAllConnections()
	assert.False(t, a.IsConnectedTo(b))
	assert.Empty(t, b.Connections())
}

func TestArea_SetOriginReindexesCells(t *testing.T) {
	m := newTestManager(t)
	r := newBlankRegion(t, m)

	area := r.CreateArea("room", vec.Zero, nil)
	require.NotNil(t, area)
	require.True(t, area.Generate(nil, r.areaIDs(), GenerateFlagBackground))
	require.NotNil(t, r.GetCellAtPosition(vec.New(-100, 0, 0)))

	area.SetOrigin(vec.New(300, 0, 0))
	assert.Nil(t, r.GetCellAtPosition(vec.New(-100, 0, 0)), "старое место ячейки должно освободиться")
	cell := r.GetCellAtPosition(vec.New(350, 0, 0))
	require.NotNil(t, cell, "ячейка должна находиться по новым координатам")
	assert.Same(t, area, cell.Area())
	assert.Equal(t, 172.0, cell.RegionBounds().Min.X)
	assert.Equal(t, 1, r.CellPartitionLen(), "перемещение не должно дублировать ячейку в индексе")
}

func TestRegion_SubAreasInsideRegionBounds(t *testing.T) {
	m := newTestManager(t)
	r := m.CreateRegion(context.Background(), RegionSettings{
		InstanceAddress: m.AllocateRegionId(),
		Prototype:       "hub",
		Seed:            5,
		GenerateAreas:   true,
	})
	require.NotNil(t, r, "регион с подобластью должен генерироваться")
	require.Equal(t, 2, r.AreaCount())

	parent := r.StartArea()
	require.NotNil(t, parent)
	require.Len(t, parent.SubAreas(), 1)
	sub := parent.SubAreas()[0]
	assert.Equal(t, vec.New(600, 0, 0), sub.Origin())
	assert.True(t, sub.IsGenerated(GenerateFlagAll), "подобласть проходит все этапы")

	assert.True(t, r.Bounds().FullyContains(sub.RegionBounds()), "границы региона должны охватывать подобласть")
	assert.Equal(t, 728.0, r.Bounds().Max.X)
	assert.Equal(t, 2, r.CellPartitionLen(), "ячейка подобласти должна попасть в индекс")

	cell := r.GetCellAtPosition(vec.New(600, 0, 0))
	require.NotNil(t, cell)
	assert.Same(t, sub, cell.Area())
}

func TestCellGrid_SkipsInvalidCell(t *testing.T) {
	m := newTestManager(t)
	r := m.CreateRegion(context.Background(), RegionSettings{
		InstanceAddress: m.AllocateRegionId(),
		Prototype:       "warren",
		Seed:            9,
		GenerateAreas:   true,
	})
	require.NotNil(t, r, "одна неудачная ячейка не должна срывать генерацию")
	assert.Equal(t, 1, r.GenerationAttempt())

	area := r.StartArea()
	require.NotNil(t, area)
	assert.Equal(t, 2, area.CellCount(), "средний слот пропускается")
	assert.Equal(t, 2, r.CellPartitionLen())
	assert.Nil(t, r.GetCellAtPosition(vec.New(384, 128, 0)))
	assert.NotNil(t, r.GetCellAtPosition(vec.New(128, 128, 0)))
	assert.NotNil(t, r.GetCellAtPosition(vec.New(640, 128, 0)))
}

func TestRegion_SequenceGraphs(t *testing.T) {
	m := newTestManager(t)
	r := m.CreateRegion(context.Background(), RegionSettings{
		InstanceAddress: m.AllocateRegionId(),
		Prototype:       "dungeon",
		Seed:            3,
		GenerateAreas:   true,
	})
	require.NotNil(t, r)
	require.Equal(t, 3, r.AreaCount())

	areas := r.Areas()
	assert.Same(t, areas[0], r.StartArea())
	assert.Equal(t, areas[0].RegionBounds().Max.X, areas[1].RegionBounds().Min.X, "комнаты стоят вплотную")

	graph := r.ProgressionGraph()
	assert.Equal(t, areas[0].ID(), graph.Root())
	prev, ok := graph.PreviousArea(areas[2].ID())
	require.True(t, ok)
	assert.Equal(t, areas[1].ID(), prev)

	nodes := r.ObjectiveGraph().Nodes()
	require.Len(t, nodes, 2, "по узлу на каждое соединение")
	assert.Equal(t, ConnectPositionBegin, nodes[0].Kind)
	assert.Equal(t, ConnectPositionEnd, nodes[1].Kind)
	assert.Equal(t, 1, r.ObjectiveGraph().Hops(nodes[0].ID, nodes[1].ID))
	assert.Equal(t, -1, r.ObjectiveGraph().Hops(nodes[0].ID, 99))

	assert.Equal(t, 4, r.PathCache().Len(), "каждая сторона соединения дает узел пути")
	assert.Len(t, r.PathCache().NodesFrom(areas[1].ID()), 2)
}

func TestRegion_SameSeedSameLayout(t *testing.T) {
	m := newTestManager(t)
	create := func() *Region {
		r := m.CreateRegion(context.Background(), RegionSettings{
			InstanceAddress: m.AllocateRegionId(),
			Prototype:       "dungeon",
			Seed:            99,
			GenerateAreas:   true,
		})
		require.NotNil(t, r)
		return r
	}
	a, b := create(), create()

	require.Equal(t, a.AreaCount(), b.AreaCount())
	assert.Equal(t, a.Bounds(), b.Bounds(), "одинаковый seed дает одинаковые границы")
	for i := range a.Areas() {
		assert.Equal(t, a.Areas()[i].RegionBounds(), b.Areas()[i].RegionBounds())
	}
}

func TestRegion_SetBoundRejectedAfterIndexing(t *testing.T) {
	m := newTestManager(t)
	r := newBlankRegion(t, m)
	require.NotNil(t, r.CreateArea("room", vec.Zero, nil))

	area := r.Areas()[0]
	require.True(t, area.Generate(nil, r.areaIDs(), GenerateFlagBackground))
	require.Equal(t, 1, r.CellPartitionLen())

	assert.True(t, r.SetBound(testBounds), "те же границы принимаются")
	assert.False(t, r.SetBound(testBounds.Expand(10)), "границы нельзя менять после индексации")
}

func TestRegion_ShutdownOrderAndIdempotence(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)

	hero := r.CreateEntity(entity.Settings{Prototype: "hero", Position: vec.New(0, 0, 0)})
	require.NotNil(t, hero)
	cell := r.GetCellAtPosition(vec.Zero)
	require.True(t, cell.OnHotspotEnter(77, hero))
	hotspot, ok := cell.Hotspot(77)
	require.True(t, ok)

	cellsBefore := m.CellCount()
	r.Shutdown()

	assert.True(t, r.IsShuttingDown())
	assert.Equal(t, 0, r.EntityCount())
	assert.False(t, hero.IsInWorld(), "аватар выводится из мира")
	_, alive := m.Entities().Get(hero.ID())
	assert.True(t, alive, "сущность игрока не уничтожается вместе с регионом")
	_, alive = m.Entities().Get(hotspot.ID())
	assert.False(t, alive, "хотспот уничтожается вместе с ячейкой")
	assert.Equal(t, cellsBefore-1, m.CellCount(), "ячейки убираются из реестра")
	assert.Equal(t, 0, r.AreaCount())
	assert.Nil(t, r.StartArea())
	assert.False(t, r.NaviMesh().IsMeshValid())
	assert.Equal(t, 0, r.PathCache().Len())

	assert.NotPanics(t, r.Shutdown, "повторный Shutdown ничего не делает")
	assert.Nil(t, cell.getOrCreateHotspot(78), "хотспоты не создаются при остановке")
}

func TestCell_Hotspots(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)
	cell := r.GetCellAtPosition(vec.Zero)
	require.NotNil(t, cell)

	visitor := r.CreateEntity(entity.Settings{Prototype: "citizen", Position: vec.New(-190, -190, 0)})
	require.NotNil(t, visitor)

	_, ok := cell.Hotspot(77)
	assert.False(t, ok, "хотспот создается лениво")
	require.True(t, cell.OnHotspotEnter(77, visitor))
	h, ok := cell.Hotspot(77)
	require.True(t, ok)
	assert.True(t, h.IsHotspot())
	assert.False(t, h.CanCollide(), "хотспот не участвует в коллизиях")
	assert.Equal(t, vec.New(-200, -200, 0), h.Position())
	assert.Equal(t, 1, cell.HotspotOccupants(77))

	require.True(t, cell.OnHotspotEnter(77, visitor))
	h2, _ := cell.Hotspot(77)
	assert.Same(t, h, h2, "хотспот создается один раз")

	assert.True(t, cell.OnHotspotLeave(77, visitor))
	assert.False(t, cell.OnHotspotLeave(77, visitor), "повторный выход не учитывается")
	assert.Equal(t, 0, cell.HotspotOccupants(77))

	assert.False(t, cell.OnHotspotEnter(12345, visitor), "неизвестный guid")
}

func TestCell_AOIAndSimulation(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)
	cell := r.GetCellAtPosition(vec.Zero)
	require.NotNil(t, cell)

	statue := r.Entities()[0]
	assert.False(t, statue.IsSimulated(), "без игроков сущность не симулируется")

	hero := r.CreateEntity(entity.Settings{Prototype: "hero", Position: vec.New(0, -100, 0)})
	require.NotNil(t, hero)
	assert.True(t, hero.IsSimulated(), "аватар симулируется всегда")

	pending := r.PopulationManager().PendingSpawns()
	assert.Equal(t, 6, pending, "3 из таблицы, 2 от миссии, 1 маркер")

	cell.OnAddedToAOI()
	assert.Equal(t, 1, cell.NumInterestedPlayers())
	assert.True(t, statue.IsSimulated())
	assert.Equal(t, 0, r.PopulationManager().PendingSpawns(), "первый игрок запускает спавны")
	spawned := r.PopulationManager().SchedulerForCell(cell).Spawned()
	assert.Len(t, spawned, 6)
	for _, id := range spawned {
		e := r.GetEntity(id)
		require.NotNil(t, e)
		assert.True(t, e.IsSimulated())
		assert.True(t, r.NaviMesh().Contains(e.Position(), 0, navi.PathFlagsWalk), "спавн стоит на сетке")
	}

	cell.OnAddedToAOI()
	assert.Len(t, r.PopulationManager().SchedulerForCell(cell).Spawned(), 6, "повторный интерес не спавнит заново")

	cell.OnRemovedFromAOI()
	assert.True(t, statue.IsSimulated(), "остался один игрок")
	cell.OnRemovedFromAOI()
	assert.False(t, statue.IsSimulated())
	assert.True(t, hero.IsSimulated())

	cell.OnRemovedFromAOI()
	assert.Equal(t, 0, cell.NumInterestedPlayers(), "счетчик не уходит в минус")
}

func TestRegion_MoveEntityUpdatesSimulation(t *testing.T) {
	m := newTestManager(t)
	r := newBlankRegion(t, m)
	a := r.CreateArea("room", vec.Zero, nil)
	require.NotNil(t, a)
	require.True(t, a.Generate(nil, r.areaIDs(), GenerateFlagBackground))
	a.Cells()[0].OnAddedToAOI()

	crate := r.CreateEntity(entity.Settings{Prototype: "crate", Position: vec.New(400, 400, 0)})
	require.NotNil(t, crate)
	assert.False(t, crate.IsSimulated(), "вне ячеек с игроками")

	require.True(t, r.MoveEntity(crate, vec.New(0, 0, 0)))
	assert.True(t, crate.IsSimulated())
	assert.Equal(t, vec.New(0, 0, 0), crate.Position())

	require.True(t, r.ExitWorld(crate))
	assert.False(t, crate.IsSimulated())
	assert.False(t, r.MoveEntity(crate, vec.New(1, 1, 0)), "сущность вне мира не перемещается")
}
