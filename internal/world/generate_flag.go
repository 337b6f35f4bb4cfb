package world

import "strings"

// GenerateFlag этапы генерации области. Статус области хранит завершенные этапы.
type GenerateFlag uint32

const (
	GenerateFlagBackground GenerateFlag = 1 << iota
	GenerateFlagPopulation
	GenerateFlagNavi
	GenerateFlagPathCollection
	GenerateFlagPostInitialize
	GenerateFlagPostGenerate

	GenerateFlagNone GenerateFlag = 0
	GenerateFlagAll               = GenerateFlagBackground | GenerateFlagPopulation | GenerateFlagNavi |
		GenerateFlagPathCollection | GenerateFlagPostInitialize | GenerateFlagPostGenerate
)

var generateFlagNames = []struct {
	flag GenerateFlag
	name string
}{
	{GenerateFlagBackground, "Background"},
	{GenerateFlagPostInitialize, "PostInitialize"},
	{GenerateFlagNavi, "Navi"},
	{GenerateFlagPathCollection, "PathCollection"},
	{GenerateFlagPopulation, "Population"},
	{GenerateFlagPostGenerate, "PostGenerate"},
}

// Has проверяет, что установлены все биты other
func (f GenerateFlag) Has(other GenerateFlag) bool {
	return f&other == other
}

func (f GenerateFlag) String() string {
	if f == GenerateFlagNone {
		return "None"
	}
	var parts []string
	for _, n := range generateFlagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// phasePredecessor этап, который должен завершиться раньше
func phasePredecessor(phase GenerateFlag) GenerateFlag {
	switch phase {
	case GenerateFlagPostInitialize, GenerateFlagNavi, GenerateFlagPopulation:
		return GenerateFlagBackground
	case GenerateFlagPathCollection:
		return GenerateFlagNavi
	case GenerateFlagPostGenerate:
		return GenerateFlagPopulation
	default:
		return GenerateFlagNone
	}
}

// RegionStatus монотонные флаги состояния региона
type RegionStatus uint32

const (
	RegionStatusGenerateAreas RegionStatus = 1 << iota
	RegionStatusShutdown
)
