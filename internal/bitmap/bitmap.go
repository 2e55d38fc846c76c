package bitmap

import (
	"fmt"
	"math/bits"
)

const wordBits = 64

// full is a low or high word with every bit set.
const full = ^uint64(0)

// Map is a two-level bitmap of a fixed logical length that can grow.
type Map struct {
	lo []uint64
	hi []uint64
	n  int
}

// New returns a Map with n clear bits.
// Panics if n is negative.
func New(n int) *Map {
	if n < 0 {
		panic(fmt.Sprintf("bitmap: length must not be negative, got %d", n))
	}
	m := &Map{}
	m.alloc(n)
	return m
}

func wordsFor(n int) int {
	return (n + wordBits - 1) / wordBits
}

func (m *Map) alloc(n int) {
	loWords := wordsFor(n)
	lo := make([]uint64, loWords)
	hi := make([]uint64, wordsFor(loWords))
	copy(lo, m.lo)
	copy(hi, m.hi)
	m.lo, m.hi, m.n = lo, hi, n
}

// Len returns the number of addressable bits.
func (m *Map) Len() int {
	return m.n
}

// Grow extends the map to n bits, keeping every existing bit. The backing
// words are only reallocated when n crosses a word boundary. Shrinking is not
// supported; a smaller n is ignored.
func (m *Map) Grow(n int) {
	if n <= m.n {
		return
	}
	if wordsFor(n) > len(m.lo) {
		m.alloc(n)
		return
	}
	m.n = n
}

func (m *Map) check(i int) {
	if i < 0 || i >= m.n {
		panic(fmt.Sprintf("bitmap: index %d out of range [0, %d)", i, m.n))
	}
}

// IsSet reports whether bit i is set.
func (m *Map) IsSet(i int) bool {
	m.check(i)
	return m.lo[i/wordBits]&(1<<(uint(i)%wordBits)) != 0
}

// Set marks bit i as used. Panics if it is already set.
func (m *Map) Set(i int) {
	m.check(i)
	wi, mask := i/wordBits, uint64(1)<<(uint(i)%wordBits)
	if m.lo[wi]&mask != 0 {
		panic(fmt.Sprintf("bitmap: bit %d already set", i))
	}
	m.lo[wi] |= mask
	if m.lo[wi] == full {
		m.hi[wi/wordBits] |= 1 << (uint(wi) % wordBits)
	}
}

// Clear marks bit i as free. Panics if it is already clear.
func (m *Map) Clear(i int) {
	m.check(i)
	wi, mask := i/wordBits, uint64(1)<<(uint(i)%wordBits)
	if m.lo[wi]&mask == 0 {
		panic(fmt.Sprintf("bitmap: bit %d already clear", i))
	}
	if m.lo[wi] == full {
		m.hi[wi/wordBits] &^= 1 << (uint(wi) % wordBits)
	}
	m.lo[wi] &^= mask
}

// NextClear returns the lowest clear bit in [from, limit), or -1 if there is
// none. limit is clamped to Len.
func (m *Map) NextClear(from, limit int) int {
	if limit > m.n {
		limit = m.n
	}
	if from < 0 {
		from = 0
	}
	if from >= limit {
		return -1
	}

	wi := from / wordBits
	w := m.lo[wi] | (uint64(1)<<(uint(from)%wordBits) - 1)
	if w != full {
		return within(wi*wordBits+bits.TrailingZeros64(^w), limit)
	}

	for wi++; wi < len(m.lo); {
		hw := wi / wordBits
		h := m.hi[hw] | (uint64(1)<<(uint(wi)%wordBits) - 1)
		if h == full {
			wi = (hw + 1) * wordBits
			continue
		}
		wi = hw*wordBits + bits.TrailingZeros64(^h)
		if wi >= len(m.lo) {
			return -1
		}
		return within(wi*wordBits+bits.TrailingZeros64(^m.lo[wi]), limit)
	}
	return -1
}

func within(i, limit int) int {
	if i >= limit {
		return -1
	}
	return i
}

// LastSetBelow returns the highest set bit strictly below n, or -1 if no bit
// below n is set. n is clamped to Len.
func (m *Map) LastSetBelow(n int) int {
	if n > m.n {
		n = m.n
	}
	if n <= 0 {
		return -1
	}
	i := n - 1
	wi := i / wordBits
	w := m.lo[wi] & (full >> (wordBits - 1 - uint(i)%wordBits))
	for {
		if w != 0 {
			return wi*wordBits + wordBits - 1 - bits.LeadingZeros64(w)
		}
		wi--
		if wi < 0 {
			return -1
		}
		w = m.lo[wi]
	}
}

// Count returns the number of set bits.
func (m *Map) Count() int {
	total := 0
	for _, w := range m.lo {
		total += bits.OnesCount64(w)
	}
	return total
}
