package spatial

import (
	"iter"
	"math"

	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/vec"
)

const (
	// Loose коэффициент "рыхлости": узел принимает элементы в радиусе Loose*radius
	Loose = 2.0
	// TargetThreshold сколько элементов лист держит до спуска на уровень ниже
	TargetThreshold = 6
)

// Quadtree рыхлое квадродерево над AABB элементов.
// Элемент хранится ровно в одном узле; кэш его границ обновляется только через Update.
// Дерево не потокобезопасно: все изменения сериализует вызывающий код.
type Quadtree[T comparable] struct {
	root      *node[T]
	boundsOf  func(T) physics.Aabb
	minRadius float64
	locations map[T]*node[T]
}

type entry[T comparable] struct {
	elem   T
	bounds physics.Aabb
}

type node[T comparable] struct {
	parent   *node[T]
	quadrant int
	center   vec.Vec3
	radius   float64
	loose    physics.Aabb
	children [4]*node[T]
	entries  []entry[T]
	total    int // элементов во всем поддереве
}

// NewQuadtree создает дерево над bounds. minRadius ограничивает глубину,
// boundsOf возвращает текущие границы элемента.
func NewQuadtree[T comparable](bounds physics.Aabb, minRadius float64, boundsOf func(T) physics.Aabb) *Quadtree[T] {
	radius := math.Max(bounds.Width(), bounds.Length()) / 2
	if radius < minRadius {
		radius = minRadius
	}
	return &Quadtree[T]{
		root:      newNode[T](nil, 0, bounds.Center(), radius),
		boundsOf:  boundsOf,
		minRadius: minRadius,
		locations: make(map[T]*node[T]),
	}
}

func newNode[T comparable](parent *node[T], quadrant int, center vec.Vec3, radius float64) *node[T] {
	lr := radius * Loose
	return &node[T]{
		parent:   parent,
		quadrant: quadrant,
		center:   center,
		radius:   radius,
		loose: physics.Aabb{
			Min: vec.New(center.X-lr, center.Y-lr, -math.MaxFloat64),
			Max: vec.New(center.X+lr, center.Y+lr, math.MaxFloat64),
		},
	}
}

// Bounds границы корня дерева
func (q *Quadtree[T]) Bounds() physics.Aabb {
	r := q.root.radius
	c := q.root.center
	return physics.Aabb{Min: vec.New(c.X-r, c.Y-r, c.Z), Max: vec.New(c.X+r, c.Y+r, c.Z)}
}

// Len число элементов в дереве
func (q *Quadtree[T]) Len() int {
	return q.root.total
}

// Contains проверяет наличие элемента
func (q *Quadtree[T]) Contains(e T) bool {
	_, ok := q.locations[e]
	return ok
}

// Insert добавляет элемент. Возвращает false, если он уже в дереве или его границы вырождены.
func (q *Quadtree[T]) Insert(e T) bool {
	if _, ok := q.locations[e]; ok {
		return false
	}
	b := q.boundsOf(e)
	if !b.IsValid() {
		return false
	}

	n := q.findNode(b)
	n.entries = append(n.entries, entry[T]{elem: e, bounds: b})
	for p := n; p != nil; p = p.parent {
		p.total++
	}
	q.locations[e] = n
	return true
}

// Remove удаляет элемент. Возвращает false, если его нет в дереве.
func (q *Quadtree[T]) Remove(e T) bool {
	n, ok := q.locations[e]
	if !ok {
		return false
	}
	for i := range n.entries {
		if n.entries[i].elem == e {
			last := len(n.entries) - 1
			n.entries[i] = n.entries[last]
			var zero entry[T]
			n.entries[last] = zero
			n.entries = n.entries[:last]
			break
		}
	}
	delete(q.locations, e)

	for p := n; p != nil; p = p.parent {
		p.total--
	}
	q.prune(n)
	return true
}

// Update переиндексирует элемент по его текущим границам
func (q *Quadtree[T]) Update(e T) bool {
	if !q.Remove(e) {
		return false
	}
	return q.Insert(e)
}

// Clear удаляет все элементы
func (q *Quadtree[T]) Clear() {
	q.root = newNode[T](nil, 0, q.root.center, q.root.radius)
	clear(q.locations)
}

// IterateInVolume ленивая последовательность элементов, пересекающих объем.
// Порядок не определен; изменять дерево во время обхода нельзя.
func (q *Quadtree[T]) IterateInVolume(v physics.Volume) iter.Seq[T] {
	box := v.BoundingBox()
	return func(yield func(T) bool) {
		q.visit(q.root, box, v, yield)
	}
}

// IterateAll ленивая последовательность всех элементов
func (q *Quadtree[T]) IterateAll() iter.Seq[T] {
	return func(yield func(T) bool) {
		q.visitAll(q.root, yield)
	}
}

func (q *Quadtree[T]) visit(n *node[T], box physics.Aabb, v physics.Volume, yield func(T) bool) bool {
	if n == nil || n.total == 0 {
		return true
	}
	// корень хранит и элементы за пределами дерева, поэтому не отсекается
	if n != q.root && !n.loose.Intersects2D(box) {
		return true
	}
	for _, en := range n.entries {
		if v.IntersectsAabb(en.bounds) {
			if !yield(en.elem) {
				return false
			}
		}
	}
	for _, child := range n.children {
		if !q.visit(child, box, v, yield) {
			return false
		}
	}
	return true
}

func (q *Quadtree[T]) visitAll(n *node[T], yield func(T) bool) bool {
	if n == nil || n.total == 0 {
		return true
	}
	for _, en := range n.entries {
		if !yield(en.elem) {
			return false
		}
	}
	for _, child := range n.children {
		if !q.visitAll(child, yield) {
			return false
		}
	}
	return true
}

// findNode спускается до узла, в который ложится элемент с границами b
func (q *Quadtree[T]) findNode(b physics.Aabb) *node[T] {
	center := b.Center()
	elemRadius := math.Max(b.Width(), b.Length()) / 2

	n := q.root
	for {
		if n.radius <= q.minRadius || elemRadius >= n.radius*0.5 {
			return n
		}
		if math.Abs(center.X-n.center.X) > n.radius || math.Abs(center.Y-n.center.Y) > n.radius {
			return n
		}
		if n.isLeaf() && len(n.entries) < TargetThreshold {
			return n
		}
		n = n.child(center)
	}
}

func (n *node[T]) isLeaf() bool {
	return n.children == [4]*node[T]{}
}

// child возвращает (создавая при необходимости) дочерний узел для точки
func (n *node[T]) child(p vec.Vec3) *node[T] {
	idx := 0
	half := n.radius / 2
	c := vec.New(n.center.X-half, n.center.Y-half, n.center.Z)
	if p.X >= n.center.X {
		idx |= 1
		c.X = n.center.X + half
	}
	if p.Y >= n.center.Y {
		idx |= 2
		c.Y = n.center.Y + half
	}
	if n.children[idx] == nil {
		n.children[idx] = newNode(n, idx, c, half)
	}
	return n.children[idx]
}

// prune удаляет опустевшие узлы снизу вверх
func (q *Quadtree[T]) prune(n *node[T]) {
	for n != q.root && n.total == 0 {
		parent := n.parent
		parent.children[n.quadrant] = nil
		n = parent
	}
}
