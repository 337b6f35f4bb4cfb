package physics

import "math/bits"

// Bitset растущий набор битов
type Bitset struct {
	words []uint64
}

// NewBitset создает набор емкостью не менее n бит
func NewBitset(n int) *Bitset {
	return &Bitset{words: make([]uint64, wordsFor(n))}
}

func wordsFor(n int) int {
	return (n + 63) / 64
}

// Cap емкость набора в битах
func (b *Bitset) Cap() int {
	return len(b.words) * 64
}

// Grow увеличивает емкость до n бит
func (b *Bitset) Grow(n int) {
	if need := wordsFor(n); need > len(b.words) {
		words := make([]uint64, need)
		copy(words, b.words)
		b.words = words
	}
}

// Set устанавливает бит i, расширяя набор при необходимости
func (b *Bitset) Set(i int) {
	if i >= b.Cap() {
		b.Grow(i + 1)
	}
	b.words[i/64] |= 1 << (uint(i) % 64)
}

// Reset сбрасывает бит i
func (b *Bitset) Reset(i int) {
	if i < 0 || i >= b.Cap() {
		return
	}
	b.words[i/64] &^= 1 << (uint(i) % 64)
}

// Test проверяет бит i
func (b *Bitset) Test(i int) bool {
	if i < 0 || i >= b.Cap() {
		return false
	}
	return b.words[i/64]&(1<<(uint(i)%64)) != 0
}

// FirstUnset индекс первого сброшенного бита; Cap(), если все установлены
func (b *Bitset) FirstUnset() int {
	for wi, w := range b.words {
		if w != ^uint64(0) {
			return wi*64 + bits.TrailingZeros64(^w)
		}
	}
	return b.Cap()
}

// LastSet индекс последнего установленного бита или -1
func (b *Bitset) LastSet() int {
	for wi := len(b.words) - 1; wi >= 0; wi-- {
		if w := b.words[wi]; w != 0 {
			return wi*64 + 63 - bits.LeadingZeros64(w)
		}
	}
	return -1
}

// Count число установленных битов
func (b *Bitset) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// ClearAll сбрасывает все биты
func (b *Bitset) ClearAll() {
	clear(b.words)
}

// ClearRange сбрасывает биты [0, n)
func (b *Bitset) ClearRange(n int) {
	full := n / 64
	if full > len(b.words) {
		full = len(b.words)
	}
	clear(b.words[:full])
	if rem := n % 64; rem != 0 && full < len(b.words) {
		b.words[full] &^= (1 << uint(rem)) - 1
	}
}
