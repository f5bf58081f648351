// Package regset provides a growable bitset keyed by small integer
// indices, used for internal/interfere's adjacency sets in place of
// map[string]struct{} (the liveness passes use internal/strset). Intersection, union, and membership are all
// word-at-a-time.
package regset

import (
	"math/bits"
	"sort"

	"tlog.app/go/tlog/tlwire"
)

type Bitmap struct {
	b  []uint64
	b0 [1]uint64
}

func New(len int) *Bitmap {
	s := Make(len)
	return &s
}

func Make(n int) Bitmap {
	s := Bitmap{}
	s.b = s.b0[:]

	n = (n + 63) / 64

	if n > len(s.b) {
		s.b = make([]uint64, n)
	}

	return s
}

func (s *Bitmap) Set(i int) {
	w, bit := s.ij(i)
	s.grow(w)
	s.b[w] |= 1 << bit
}

func (s *Bitmap) Clear(i int) {
	w, bit := s.ij(i)
	if w >= len(s.b) {
		return
	}
	s.b[w] &^= 1 << bit
}

func (s *Bitmap) IsSet(i int) bool {
	w, bit := s.ij(i)
	if w >= len(s.b) {
		return false
	}
	return s.b[w]&(1<<bit) != 0
}

func (s *Bitmap) Or(x Bitmap) {
	s.grow(len(x.b) - 1)
	for i, w := range x.b {
		s.b[i] |= w
	}
}

func (s *Bitmap) And(x Bitmap) {
	for i := range s.b {
		if i >= len(x.b) {
			s.b[i] = 0
			continue
		}
		s.b[i] &= x.b[i]
	}
}

func (s *Bitmap) AndNot(x Bitmap) {
	for i, w := range x.b {
		if i == len(s.b) {
			break
		}
		s.b[i] &^= w
	}
}

func (s *Bitmap) Equal(x Bitmap) bool {
	n := len(s.b)
	if len(x.b) > n {
		n = len(x.b)
	}
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(s.b) {
			a = s.b[i]
		}
		if i < len(x.b) {
			b = x.b[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

func (s *Bitmap) Copy() Bitmap {
	r := Make(s.bitLen())
	r.Or(*s)
	return r
}

func (s *Bitmap) Reset() {
	for i := range s.b {
		s.b[i] = 0
	}
}

func (s *Bitmap) Size() (n int) {
	if s == nil {
		return 0
	}
	for _, w := range s.b {
		n += bits.OnesCount64(w)
	}
	return n
}

func (s *Bitmap) Range(f func(i int) bool) {
	for wi, w := range s.b {
		if w == 0 {
			continue
		}
		for bi := 0; bi < 64; bi++ {
			if w&(1<<bi) == 0 {
				continue
			}
			if !f(wi*64 + bi) {
				return
			}
		}
	}
}

func (s *Bitmap) Slice() []int {
	out := make([]int, 0, s.Size())
	s.Range(func(i int) bool {
		out = append(out, i)
		return true
	})
	sort.Ints(out)
	return out
}

func (s Bitmap) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(i int) bool {
		b = e.AppendInt(b, i)
		return true
	})

	return e.AppendBreak(b)
}

func (s *Bitmap) ij(pos int) (word, bit int) {
	return pos / 64, pos % 64
}

func (s *Bitmap) grow(word int) {
	for word >= len(s.b) {
		s.b = append(s.b, 0)
	}
}

func (s *Bitmap) bitLen() int {
	for i := len(s.b) - 1; i >= 0; i-- {
		if s.b[i] == 0 {
			continue
		}
		return (i+1)*64 - bits.LeadingZeros64(s.b[i])
	}
	return 0
}
