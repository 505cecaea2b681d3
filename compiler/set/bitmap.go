package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Bitmap is a growable set of small non-negative ints.
	// The zero value is an empty set.
	Bitmap struct {
		b  []uint64
		b0 [1]uint64
	}
)

func MakeBitmap(size int) Bitmap {
	var s Bitmap

	s.grow((size - 1) / 64)

	return s
}

func (s *Bitmap) Set(i int) {
	w, j := split(i)

	s.grow(w)

	s.b[w] |= 1 << j
}

func (s *Bitmap) Clear(i int) {
	w, j := split(i)

	if w >= len(s.b) {
		return
	}

	s.b[w] &^= 1 << j
}

func (s *Bitmap) IsSet(i int) bool {
	if i < 0 {
		return false
	}

	w, j := split(i)

	if w >= len(s.b) {
		return false
	}

	return s.b[w]&(1<<j) != 0
}

// Size is the number of elements.
func (s *Bitmap) Size() (r int) {
	if s == nil {
		return 0
	}

	for _, x := range s.b {
		r += bits.OnesCount64(x)
	}

	return r
}

// Range calls f for elements in increasing order until it returns false.
func (s *Bitmap) Range(f func(i int) bool) {
	for w, x := range s.b {
		for x != 0 {
			j := bits.TrailingZeros64(x)

			if !f(w*64 + j) {
				return
			}

			x &^= 1 << j
		}
	}
}

// Len is one past the largest element.
func (s *Bitmap) Len() int {
	for w := len(s.b) - 1; w >= 0; w-- {
		if s.b[w] != 0 {
			return w*64 + bits.Len64(s.b[w])
		}
	}

	return 0
}

func (s *Bitmap) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s == nil || s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(i int) bool {
		b = e.AppendInt(b, i)

		return true
	})

	return e.AppendBreak(b)
}

func (s *Bitmap) grow(w int) {
	if s.b == nil {
		s.b = s.b0[:]
	}

	for w >= len(s.b) {
		s.b = append(s.b, 0)
	}
}

func split(i int) (w, j int) {
	return i / 64, i % 64
}
