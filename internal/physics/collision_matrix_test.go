package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollisionIdAllocatorReusesLowest(t *testing.T) {
	var alloc CollisionIdAllocator

	a := alloc.Acquire()
	b := alloc.Acquire()
	c := alloc.Acquire()
	assert.Equal(t, []int{0, 1, 2}, []int{a, b, c}, "идентификаторы выдаются по возрастанию")

	require.True(t, alloc.Release(b))
	assert.False(t, alloc.Release(b), "повторное освобождение должно провалиться")
	assert.Equal(t, 1, alloc.Acquire(), "должен вернуться минимальный свободный идентификатор")
	assert.Equal(t, 3, alloc.Live())
	assert.Equal(t, 3, alloc.HighWater())
}

func TestCollisionIdAllocatorGrowsPastWord(t *testing.T) {
	var alloc CollisionIdAllocator
	for i := 0; i < 130; i++ {
		require.Equal(t, i, alloc.Acquire())
	}
	require.True(t, alloc.Release(70))
	assert.Equal(t, 70, alloc.Acquire())
	assert.Equal(t, 130, alloc.HighWater())
}

func TestCollisionMatrixDedupAndSymmetry(t *testing.T) {
	m := NewCollisionMatrix()

	assert.True(t, m.Collide(3, 7), "первая проверка пары должна вернуть true")
	assert.False(t, m.Collide(3, 7), "повтор должен вернуть false")
	assert.False(t, m.Collide(7, 3), "пара симметрична")
	assert.True(t, m.Collide(3, 8), "другая пара независима")

	m.Clear(9)
	assert.True(t, m.Collide(7, 3), "после очистки пара снова доступна")
}

func TestCollisionMatrixRejectsInvalidIds(t *testing.T) {
	m := NewCollisionMatrix()
	assert.False(t, m.Collide(InvalidCollisionId, 2))
	assert.False(t, m.Collide(4, 4))
}

func TestCollisionMatrixGrowKeepsGeneration(t *testing.T) {
	m := NewCollisionMatrix()
	require.True(t, m.Collide(1, 2))

	require.True(t, m.Collide(5, 200), "пара за пределами матрицы расширяет ее")
	assert.GreaterOrEqual(t, m.Dim(), 201)
	assert.False(t, m.Collide(2, 1), "после роста старые пары сохраняются")
	assert.False(t, m.Collide(200, 5))
}

func TestCollisionMatrixShrinksOnFullClear(t *testing.T) {
	m := NewCollisionMatrix()
	require.True(t, m.Collide(0, 500))
	grown := m.Dim()
	require.Greater(t, grown, minMatrixDim)

	m.Clear(10)
	assert.Equal(t, minMatrixDim, m.Dim(), "при малом числе живых идентификаторов матрица сжимается")
	assert.True(t, m.Collide(0, 5))
}

func TestCollisionMatrixPartialClear(t *testing.T) {
	m := NewCollisionMatrix()
	for i := 1; i < 40; i++ {
		require.True(t, m.Collide(0, i))
	}
	require.True(t, m.Collide(2, 3))

	m.Clear(40)
	for i := 1; i < 40; i++ {
		assert.True(t, m.Collide(0, i), "пара (0,%d) должна быть сброшена", i)
	}
	assert.True(t, m.Collide(2, 3))
}
