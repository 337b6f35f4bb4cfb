package world

import (
	"math"

	"github.com/annel0/mmo-region/internal/proto"
)

// CellType открытые стороны ячейки (выходы)
type CellType uint8

const (
	CellTypeNone CellType = 0
	CellTypeN    CellType = 1 << 0
	CellTypeE    CellType = 1 << 1
	CellTypeS    CellType = 1 << 2
	CellTypeW    CellType = 1 << 3
)

// CellShape форма ячейки по числу и расположению выходов
type CellShape int

const (
	CellShapeClosed CellShape = iota
	CellShapeDeadEnd
	CellShapeCorner
	CellShapeStraight
	CellShapeTee
	CellShapeCross
)

func (s CellShape) String() string {
	switch s {
	case CellShapeClosed:
		return "Closed"
	case CellShapeDeadEnd:
		return "DeadEnd"
	case CellShapeCorner:
		return "Corner"
	case CellShapeStraight:
		return "Straight"
	case CellShapeTee:
		return "Tee"
	case CellShapeCross:
		return "Cross"
	default:
		return "Unknown"
	}
}

// BuildTypeFromWalls выходы ячейки: все стороны без стены
func BuildTypeFromWalls(walls proto.Walls) CellType {
	return CellType(^walls & proto.WallsAll)
}

// WallsRotate поворачивает стены на steps четвертей оборота против часовой стрелки
// (N -> E -> S -> W), что соответствует yaw = steps * pi/2.
func WallsRotate(walls proto.Walls, steps int) proto.Walls {
	steps = ((steps % 4) + 4) % 4
	w := walls & proto.WallsAll
	for i := 0; i < steps; i++ {
		w = ((w << 1) | (w >> 3)) & proto.WallsAll
	}
	return w
}

// DetermineType классифицирует ячейку по выходам
func DetermineType(t CellType) CellShape {
	switch n := popCount4(uint8(t)); n {
	case 0:
		return CellShapeClosed
	case 1:
		return CellShapeDeadEnd
	case 2:
		if t == CellTypeN|CellTypeS || t == CellTypeE|CellTypeW {
			return CellShapeStraight
		}
		return CellShapeCorner
	case 3:
		return CellShapeTee
	default:
		return CellShapeCross
	}
}

func popCount4(v uint8) int {
	n := 0
	for i := 0; i < 4; i++ {
		if v&(1<<i) != 0 {
			n++
		}
	}
	return n
}

// yawSteps переводит yaw в число четвертей оборота
func yawSteps(yaw float64) int {
	return int(math.Round(yaw / (math.Pi / 2)))
}
