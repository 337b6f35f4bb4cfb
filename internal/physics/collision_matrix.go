package physics

// InvalidCollisionId идентификатор, не участвующий в дедупликации
const InvalidCollisionId = -1

const minMatrixDim = 64

// CollisionIdAllocator выдает минимальный свободный идентификатор коллизии
type CollisionIdAllocator struct {
	used Bitset
	live int
}

// Acquire возвращает наименьший свободный идентификатор
func (a *CollisionIdAllocator) Acquire() int {
	id := a.used.FirstUnset()
	a.used.Set(id)
	a.live++
	return id
}

// Release освобождает идентификатор; false если он не был занят
func (a *CollisionIdAllocator) Release(id int) bool {
	if !a.used.Test(id) {
		return false
	}
	a.used.Reset(id)
	a.live--
	return true
}

// IsLive проверяет, занят ли идентификатор
func (a *CollisionIdAllocator) IsLive(id int) bool {
	return a.used.Test(id)
}

// Live число занятых идентификаторов
func (a *CollisionIdAllocator) Live() int {
	return a.live
}

// HighWater максимальный занятый идентификатор + 1
func (a *CollisionIdAllocator) HighWater() int {
	return a.used.LastSet() + 1
}

// CollisionMatrix квадратная битовая матрица уже обработанных пар.
// Пара (a,b) хранится в строке min(a,b), поэтому матрица симметрична.
type CollisionMatrix struct {
	dim     int
	bits    Bitset
	touched int // число строк, затронутых с последней очистки
}

// NewCollisionMatrix создает матрицу минимального размера
func NewCollisionMatrix() *CollisionMatrix {
	m := &CollisionMatrix{dim: minMatrixDim}
	m.bits.Grow(minMatrixDim * minMatrixDim)
	return m
}

// Dim текущая размерность матрицы
func (m *CollisionMatrix) Dim() int {
	return m.dim
}

// Collide отмечает пару и возвращает true, если в текущем поколении она встречается впервые
func (m *CollisionMatrix) Collide(a, b int) bool {
	if a < 0 || b < 0 || a == b {
		return false
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi >= m.dim {
		m.resize(hi + 1)
	}

	idx := lo*m.dim + hi
	if m.bits.Test(idx) {
		return false
	}
	m.bits.Set(idx)
	if lo+1 > m.touched {
		m.touched = lo + 1
	}
	return true
}

// Clear начинает новое поколение. liveHighWater текущая верхняя граница живых идентификаторов.
// Если матрица сильно больше нужного, она перевыделяется, иначе очищаются только затронутые строки.
func (m *CollisionMatrix) Clear(liveHighWater int) {
	if m.dim > minMatrixDim && liveHighWater*2 < m.dim {
		dim := nextDim(liveHighWater)
		m.dim = dim
		m.bits = Bitset{}
		m.bits.Grow(dim * dim)
		m.touched = 0
		return
	}
	if m.touched == 0 {
		return
	}
	if m.touched*2 >= m.dim {
		m.bits.ClearAll()
	} else {
		m.bits.ClearRange(m.touched * m.dim)
	}
	m.touched = 0
}

// resize увеличивает матрицу с переносом установленных битов
func (m *CollisionMatrix) resize(need int) {
	dim := nextDim(need)
	var grown Bitset
	grown.Grow(dim * dim)
	for row := 0; row < m.touched; row++ {
		for col := row + 1; col < m.dim; col++ {
			if m.bits.Test(row*m.dim + col) {
				grown.Set(row*dim + col)
			}
		}
	}
	m.dim = dim
	m.bits = grown
}

func nextDim(n int) int {
	dim := minMatrixDim
	for dim < n {
		dim *= 2
	}
	return dim
}
