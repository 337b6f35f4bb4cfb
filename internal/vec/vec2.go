package vec

// Vec2 представляет целочисленные координаты слота в сетке ячеек
type Vec2 struct {
	X, Y int
}

// InBounds проверяет попадание в сетку width x height
func (v Vec2) InBounds(width, height int) bool {
	return v.X >= 0 && v.Y >= 0 && v.X < width && v.Y < height
}

// Index линейный индекс в сетке шириной width
func (v Vec2) Index(width int) int {
	return v.Y*width + v.X
}

// Neighbors4 соседние слоты: +X, +Y, -X, -Y
func (v Vec2) Neighbors4() [4]Vec2 {
	return [4]Vec2{
		{X: v.X + 1, Y: v.Y},
		{X: v.X, Y: v.Y + 1},
		{X: v.X - 1, Y: v.Y},
		{X: v.X, Y: v.Y - 1},
	}
}
