package proto

import (
	"fmt"
	"strings"

	"github.com/annel0/mmo-region/internal/navi"
	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/vec"
	"gopkg.in/yaml.v3"
)

// Ref ссылка на прототип по имени
type Ref string

// Invalid пустая ссылка
const Invalid Ref = ""

// IsValid true для непустой ссылки
func (r Ref) IsValid() bool { return r != Invalid }

// RegionPrototype описание региона
type RegionPrototype struct {
	Name      Ref                      `yaml:"name"`
	Level     int                      `yaml:"level"`
	Private   bool                     `yaml:"private"`
	Generator RegionGeneratorPrototype `yaml:"generator"`
	Missions  []MissionPrototype       `yaml:"missions"`
}

// RegionGeneratorKind закрытый набор генераторов регионов
type RegionGeneratorKind string

const (
	RegionGeneratorStaticArea RegionGeneratorKind = "static_area"
	RegionGeneratorSequence   RegionGeneratorKind = "sequence"
)

// StaticAreaEntry область, размещаемая в фиксированной точке
type StaticAreaEntry struct {
	Area   Ref      `yaml:"area"`
	Origin vec.Vec3 `yaml:"origin"`
}

// AreaLink пара соединяемых областей
type AreaLink struct {
	From Ref `yaml:"from"`
	To   Ref `yaml:"to"`
}

// RegionGeneratorPrototype параметры генератора региона
type RegionGeneratorPrototype struct {
	Kind RegionGeneratorKind `yaml:"kind"`

	// static_area
	Areas     []StaticAreaEntry `yaml:"areas"`
	StartArea Ref               `yaml:"start_area"`
	// Connections пары областей, соединяемые точкой посередине между их центрами
	Connections []AreaLink `yaml:"connections"`

	// sequence
	Sequence []Ref   `yaml:"sequence"`
	Spacing  float64 `yaml:"spacing"`
}

// AreaPrototype описание области
type AreaPrototype struct {
	Name        Ref                    `yaml:"name"`
	LevelOffset int                    `yaml:"level_offset"`
	Generator   AreaGeneratorPrototype `yaml:"generator"`
	Population  Ref                    `yaml:"population"`
	SubAreas    []StaticAreaEntry      `yaml:"sub_areas"`
}

// AreaGeneratorKind закрытый набор генераторов областей
type AreaGeneratorKind string

const (
	AreaGeneratorSingleCell AreaGeneratorKind = "single_cell"
	AreaGeneratorCellGrid   AreaGeneratorKind = "cell_grid"
)

// AreaGeneratorPrototype параметры генератора области
type AreaGeneratorPrototype struct {
	Kind AreaGeneratorKind `yaml:"kind"`

	// single_cell
	Cell Ref `yaml:"cell"`

	// cell_grid
	CellSet       []Ref   `yaml:"cell_set"`
	CellSize      float64 `yaml:"cell_size"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	FillThreshold float64 `yaml:"fill_threshold"`
	Alpha         float64 `yaml:"alpha"`
	Beta          float64 `yaml:"beta"`
	Octaves       int32   `yaml:"octaves"`
}

// MarkerKind тип маркера ячейки
type MarkerKind string

const (
	// MarkerEntity сущность создается на этапе PostInitialize
	MarkerEntity MarkerKind = "entity"
	// MarkerSpawn точка спавна популяции
	MarkerSpawn MarkerKind = "spawn"
	// MarkerHotspot хотспот, создаваемый лениво
	MarkerHotspot MarkerKind = "hotspot"
)

// MarkerPrototype маркер в локальных координатах ячейки
type MarkerPrototype struct {
	Kind        MarkerKind      `yaml:"kind"`
	Entity      Ref             `yaml:"entity"`
	Position    vec.Vec3        `yaml:"position"`
	Orientation vec.Orientation `yaml:"orientation"`
	Guid        uint64          `yaml:"guid"`
}

// CellPrototype описание ячейки
type CellPrototype struct {
	Name          Ref               `yaml:"name"`
	Bounds        physics.Aabb      `yaml:"bounds"`
	Walls         Walls             `yaml:"walls"`
	NaviPatch     navi.Patch        `yaml:"navi_patch"`
	PropPatch     navi.Patch        `yaml:"prop_patch"`
	PlayableArea  float64           `yaml:"playable_area"`
	SpawnableArea float64           `yaml:"spawnable_area"`
	Markers       []MarkerPrototype `yaml:"markers"`
}

// UnmarshalYAML заполняет значения по умолчанию: площади не заданы (-1)
func (c *CellPrototype) UnmarshalYAML(value *yaml.Node) error {
	type raw CellPrototype
	r := raw{PlayableArea: -1, SpawnableArea: -1}
	if err := value.Decode(&r); err != nil {
		return err
	}
	*c = CellPrototype(r)
	return nil
}

// BoundsPrototype форма границ сущности
type BoundsPrototype struct {
	Shape                string  `yaml:"shape"`
	Radius               float64 `yaml:"radius"`
	HalfHeight           float64 `yaml:"half_height"`
	HalfWidth            float64 `yaml:"half_width"`
	HalfLength           float64 `yaml:"half_length"`
	Collision            string  `yaml:"collision"`
	BlocksSpawns         bool    `yaml:"blocks_spawns"`
	BlocksLanding        bool    `yaml:"blocks_landing"`
	BlocksLineOfSight    bool    `yaml:"blocks_line_of_sight"`
	BlocksMovementPowers string  `yaml:"blocks_movement_powers"`
}

// Build строит границы в точке center
func (b BoundsPrototype) Build(center vec.Vec3) (physics.Bounds, error) {
	var bounds physics.Bounds
	switch strings.ToLower(b.Shape) {
	case "", "sphere":
		bounds = physics.NewSphereBounds(center, b.Radius)
	case "capsule":
		bounds = physics.NewCapsuleBounds(center, b.Radius, b.HalfHeight)
	case "box":
		bounds = physics.NewBoxBounds(center, b.HalfWidth, b.HalfLength, b.HalfHeight)
	default:
		return bounds, fmt.Errorf("неизвестная форма границ %q", b.Shape)
	}

	switch strings.ToLower(b.Collision) {
	case "", "overlapping":
		bounds.Collision = physics.CollisionOverlapping
	case "blocking":
		bounds.Collision = physics.CollisionBlocking
	case "none":
		bounds.Collision = physics.CollisionNone
	default:
		return bounds, fmt.Errorf("неизвестный тип коллизии %q", b.Collision)
	}

	switch strings.ToLower(b.BlocksMovementPowers) {
	case "", "none":
		bounds.BlocksMovementPowers = physics.MovementPowerBlockNone
	case "ground":
		bounds.BlocksMovementPowers = physics.MovementPowerBlockGround
	case "all":
		bounds.BlocksMovementPowers = physics.MovementPowerBlockAll
	default:
		return bounds, fmt.Errorf("неизвестная блокировка сил %q", b.BlocksMovementPowers)
	}

	bounds.BlocksSpawns = b.BlocksSpawns
	bounds.BlocksLanding = b.BlocksLanding
	bounds.BlocksLineOfSight = b.BlocksLineOfSight
	return bounds, nil
}

// EntityPrototype описание сущности
type EntityPrototype struct {
	Name                Ref             `yaml:"name"`
	Bounds              BoundsPrototype `yaml:"bounds"`
	NotAffectedByPowers bool            `yaml:"not_affected_by_powers"`
	PlayerRestricted    bool            `yaml:"player_restricted"`
	Avatar              bool            `yaml:"avatar"`
}

// PopulationEntry одна позиция таблицы популяции
type PopulationEntry struct {
	Entity Ref     `yaml:"entity"`
	Weight float64 `yaml:"weight"`
	// Count базовое число спавнов на область
	Count int `yaml:"count"`
	// Radius разброс вокруг маркера спавна
	Radius float64 `yaml:"radius"`
}

// PopulationPrototype таблица популяции области
type PopulationPrototype struct {
	Name    Ref               `yaml:"name"`
	Entries []PopulationEntry `yaml:"entries"`
	// Density спавнов на 10000 единиц пешеходной площади
	Density float64 `yaml:"density"`
}

// MissionPrototype миссия региона, добавляющая популяцию в области
type MissionPrototype struct {
	Name       Ref               `yaml:"name"`
	Area       Ref               `yaml:"area"`
	Population []PopulationEntry `yaml:"population"`
}
