package world

import (
	"testing"

	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulationManager_PickEntry(t *testing.T) {
	m := newTestManager(t)
	pm := newTownRegion(t, m).PopulationManager()

	entries := []proto.PopulationEntry{
		{Entity: "statue", Weight: 0},
		{Entity: "citizen", Weight: 2},
		{Entity: "crate", Weight: -1},
	}
	for i := 0; i < 50; i++ {
		e, ok := pm.pickEntry(entries)
		require.True(t, ok)
		assert.Equal(t, proto.Ref("citizen"), e.Entity, "записи без веса не выбираются")
	}

	_, ok := pm.pickEntry([]proto.PopulationEntry{{Entity: "citizen"}})
	assert.False(t, ok)
	_, ok = pm.pickEntry(nil)
	assert.False(t, ok)
}

func TestPopulationManager_DensityAt(t *testing.T) {
	m := newTestManager(t)
	pm := newTownRegion(t, m).PopulationManager()

	for x := -500.0; x <= 500; x += 125 {
		for y := -500.0; y <= 500; y += 125 {
			d := pm.DensityAt(vec.New(x, y, 0))
			assert.GreaterOrEqual(t, d, 0.0)
			assert.Less(t, d, 1.0)
		}
	}

	other := newTownRegion(t, m).PopulationManager()
	p := vec.New(130, -70, 0)
	assert.Equal(t, pm.DensityAt(p), other.DensityAt(p), "одинаковый seed дает одинаковую плотность")
}

func TestPopulationManager_MarkerSpawnFromAreaTable(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)
	pm := r.PopulationManager()
	c := r.StartArea().Cells()[0]

	before := pm.SchedulerForCell(c).Pending()
	require.True(t, pm.AddMarkerSpawn(c, proto.MarkerPrototype{Kind: proto.MarkerSpawn, Position: vec.New(10, 10, 0)}))
	assert.Equal(t, before+1, pm.SchedulerForCell(c).Pending(), "маркер без сущности берет ее из таблицы области")
	assert.Equal(t, before+1, pm.PendingSpawns())

	blank := newBlankRegion(t, m)
	assert.Equal(t, 0, blank.PopulationManager().PendingSpawns())
}

func TestMissionManager_GenerateMissionPopulation(t *testing.T) {
	m := newTestManager(t)
	r := newTownRegion(t, m)
	mm := r.MissionManager()

	missions := mm.Missions()
	require.Len(t, missions, 2)
	assert.Equal(t, proto.Ref("escort"), missions[0].Prototype.Name)
	assert.Equal(t, MissionStateActive, missions[0].State, "область миссии есть в регионе")
	assert.Equal(t, MissionStateInactive, missions[1].State, "область room в town отсутствует")
	assert.Equal(t, "Inactive", missions[1].State.String())

	assert.False(t, mm.SetState("nowhere", MissionStateActive, 0))
	assert.Equal(t, "Unknown", MissionState(99).String())
}

func TestUIDataProvider_Widgets(t *testing.T) {
	m := newTestManager(t)
	ui := newBlankRegion(t, m).UIDataProvider()

	ui.SetWidget(UIWidget{Name: "timer", Value: 60})
	ui.SetWidget(UIWidget{Name: "score", Value: 1})
	ui.SetWidget(UIWidget{Name: "timer", Value: 30})

	widgets := ui.Widgets()
	require.Len(t, widgets, 2)
	assert.Equal(t, "score", widgets[0].Name)
	assert.Equal(t, int64(30), widgets[1].Value, "виджет обновляется по имени")

	ui.Shutdown()
	assert.Empty(t, ui.Widgets())
}
